package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avdeyev/dexflow-bot/internal/domain"
)

// UserRepository defines persistence operations for users and their
// trading settings.
type UserRepository interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	TouchLastActive(ctx context.Context, telegramID int64) error
	GetSettings(ctx context.Context, telegramID int64) (*domain.UserSettings, error)
	SaveSettings(ctx context.Context, telegramID int64, settings *domain.UserSettings) error
}

type userRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewUserRepository creates a new SQL-backed user repository.
func NewUserRepository(db *sql.DB, log *slog.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log,
	}
}

// FindByTelegramID retrieves a user by their Telegram identifier.
func (r *userRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	const query = `
		SELECT id, telegram_id, first_name, last_name, username, last_active_at, created_at
		FROM users
		WHERE telegram_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, telegramID)

	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.TelegramID,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.LastActiveAt,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		if r.log != nil {
			r.log.Error("failed to fetch user by telegram id", slog.Int64("telegram_id", telegramID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select user by telegram id: %w", err)
	}

	return &user, nil
}

// Create persists a new user record.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
		INSERT INTO users (telegram_id, first_name, last_name, username, last_active_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.TelegramID,
		user.FirstName,
		user.LastName,
		user.Username,
		user.LastActiveAt,
		user.CreatedAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to create user", slog.Int64("telegram_id", user.TelegramID), slog.Any("error", err))
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// TouchLastActive bumps the user's last activity timestamp.
func (r *userRepository) TouchLastActive(ctx context.Context, telegramID int64) error {
	const query = `UPDATE users SET last_active_at = NOW() WHERE telegram_id = $1`

	if _, err := r.db.ExecContext(ctx, query, telegramID); err != nil {
		return fmt.Errorf("touch last active: %w", err)
	}

	return nil
}

// GetSettings returns the user's trading preferences, or sql.ErrNoRows
// when they never changed the defaults.
func (r *userRepository) GetSettings(ctx context.Context, telegramID int64) (*domain.UserSettings, error) {
	const query = `
		SELECT slippage_percent, gas_priority
		FROM user_settings
		WHERE telegram_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, telegramID)

	var settings domain.UserSettings
	if err := row.Scan(&settings.SlippagePercent, &settings.GasPriority); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		if r.log != nil {
			r.log.Error("failed to fetch user settings", slog.Int64("telegram_id", telegramID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select user settings: %w", err)
	}

	return &settings, nil
}

// SaveSettings upserts the user's trading preferences.
func (r *userRepository) SaveSettings(ctx context.Context, telegramID int64, settings *domain.UserSettings) error {
	const query = `
		INSERT INTO user_settings (telegram_id, slippage_percent, gas_priority, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (telegram_id)
		DO UPDATE SET slippage_percent = EXCLUDED.slippage_percent,
		              gas_priority = EXCLUDED.gas_priority,
		              updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, telegramID, settings.SlippagePercent, settings.GasPriority); err != nil {
		if r.log != nil {
			r.log.Error("failed to save user settings", slog.Int64("telegram_id", telegramID), slog.Any("error", err))
		}
		return fmt.Errorf("upsert user settings: %w", err)
	}

	return nil
}
