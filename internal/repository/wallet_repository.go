package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avdeyev/dexflow-bot/internal/domain"
)

// WalletRepository defines persistence operations for user wallets.
type WalletRepository interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*domain.Wallet, error)
	Save(ctx context.Context, wallet *domain.Wallet) error
}

type walletRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewWalletRepository creates a new SQL-backed wallet repository.
func NewWalletRepository(db *sql.DB, log *slog.Logger) WalletRepository {
	return &walletRepository{
		db:  db,
		log: log,
	}
}

// FindByTelegramID retrieves the wallet bound to the given Telegram user.
func (r *walletRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*domain.Wallet, error) {
	const query = `
		SELECT id, telegram_id, address, encrypted_key, created_at
		FROM wallets
		WHERE telegram_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, telegramID)

	var wallet domain.Wallet
	if err := row.Scan(
		&wallet.ID,
		&wallet.TelegramID,
		&wallet.Address,
		&wallet.EncryptedKey,
		&wallet.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		if r.log != nil {
			r.log.Error("failed to fetch wallet", slog.Int64("telegram_id", telegramID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select wallet by telegram id: %w", err)
	}

	return &wallet, nil
}

// Save upserts the wallet for its Telegram user. Importing a key
// replaces the previous wallet in place.
func (r *walletRepository) Save(ctx context.Context, wallet *domain.Wallet) error {
	const query = `
		INSERT INTO wallets (telegram_id, address, encrypted_key, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_id)
		DO UPDATE SET address = EXCLUDED.address,
		              encrypted_key = EXCLUDED.encrypted_key
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		wallet.TelegramID,
		wallet.Address,
		wallet.EncryptedKey,
		wallet.CreatedAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to save wallet", slog.Int64("telegram_id", wallet.TelegramID), slog.Any("error", err))
		}
		return fmt.Errorf("upsert wallet: %w", err)
	}

	return nil
}
