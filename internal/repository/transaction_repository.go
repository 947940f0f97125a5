package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/avdeyev/dexflow-bot/internal/domain"
)

// TransactionRepository records executed transactions. Records are
// written once per receipt and never updated.
type TransactionRepository interface {
	Save(ctx context.Context, tx *domain.Transaction) error
	RecentByTelegramID(ctx context.Context, telegramID int64, limit int) ([]domain.Transaction, error)
	// BoughtTokensByTelegramID returns the distinct ERC-20 addresses the
	// user ever received in a successful swap. The sell flow intersects
	// this history with live balances.
	BoughtTokensByTelegramID(ctx context.Context, telegramID int64) ([]string, error)
	// DistinctTradedTokens returns every ERC-20 address that appears in
	// any successful swap, across all users. The metadata warm job uses
	// it to keep the token cache hot.
	DistinctTradedTokens(ctx context.Context) ([]string, error)
}

type transactionRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewTransactionRepository creates a new SQL-backed transaction repository.
func NewTransactionRepository(db *sql.DB, log *slog.Logger) TransactionRepository {
	return &transactionRepository{
		db:  db,
		log: log,
	}
}

// Save inserts one transaction record.
func (r *transactionRepository) Save(ctx context.Context, tx *domain.Transaction) error {
	const query = `
		INSERT INTO transactions
			(hash, telegram_id, from_address, token_in, token_out, amount_in, amount_out, status, gas_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		tx.Hash,
		tx.TelegramID,
		tx.FromAddress,
		tx.TokenIn,
		tx.TokenOut,
		tx.AmountIn,
		tx.AmountOut,
		tx.Status,
		tx.GasUsed,
		tx.CreatedAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to save transaction", slog.String("hash", tx.Hash), slog.Any("error", err))
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

// RecentByTelegramID returns the user's latest transactions, newest first.
func (r *transactionRepository) RecentByTelegramID(ctx context.Context, telegramID int64, limit int) ([]domain.Transaction, error) {
	const query = `
		SELECT id, hash, telegram_id, from_address, token_in, token_out, amount_in, amount_out, status, gas_used, created_at
		FROM transactions
		WHERE telegram_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, telegramID, limit)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to list transactions", slog.Int64("telegram_id", telegramID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select recent transactions: %w", err)
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID,
			&tx.Hash,
			&tx.TelegramID,
			&tx.FromAddress,
			&tx.TokenIn,
			&tx.TokenOut,
			&tx.AmountIn,
			&tx.AmountOut,
			&tx.Status,
			&tx.GasUsed,
			&tx.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return result, nil
}

// BoughtTokensByTelegramID lists distinct token addresses from
// successful buys, excluding the native pseudo-address.
func (r *transactionRepository) BoughtTokensByTelegramID(ctx context.Context, telegramID int64) ([]string, error) {
	const query = `
		SELECT DISTINCT token_out
		FROM transactions
		WHERE telegram_id = $1
		  AND status = $2
		  AND token_out <> $3
	`

	rows, err := r.db.QueryContext(ctx, query, telegramID, domain.TransactionStatusSuccess, domain.NativeTokenAddress)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to list bought tokens", slog.Int64("telegram_id", telegramID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select bought tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("scan token address: %w", err)
		}
		tokens = append(tokens, address)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token addresses: %w", err)
	}

	return tokens, nil
}

// DistinctTradedTokens lists every token address ever received in a
// successful swap, across all users.
func (r *transactionRepository) DistinctTradedTokens(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT token_out
		FROM transactions
		WHERE status = $1
		  AND token_out <> $2
	`

	rows, err := r.db.QueryContext(ctx, query, domain.TransactionStatusSuccess, domain.NativeTokenAddress)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to list traded tokens", slog.Any("error", err))
		}
		return nil, fmt.Errorf("select traded tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("scan token address: %w", err)
		}
		tokens = append(tokens, address)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token addresses: %w", err)
	}

	return tokens, nil
}
