package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/avdeyev/dexflow-bot/internal/chain"
	"github.com/avdeyev/dexflow-bot/internal/domain"
	apperrors "github.com/avdeyev/dexflow-bot/internal/errors"
	"github.com/avdeyev/dexflow-bot/internal/repository"
	"github.com/avdeyev/dexflow-bot/internal/validate"
)

// ErrWalletNotFound indicates the user has no wallet yet.
var ErrWalletNotFound = errors.New("wallet not found")

// Service manages per-user wallets: creation, key import and signer
// construction. Keys rest encrypted in Postgres and are only decrypted
// into process memory for the duration of a signing operation.
type Service struct {
	repo   repository.WalletRepository
	cipher *keyCipher
	log    *slog.Logger
}

// NewService builds the wallet service. encryptionKeyHex must decode to
// 32 bytes.
func NewService(repo repository.WalletRepository, encryptionKeyHex string, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}

	cipher, err := newKeyCipher(encryptionKeyHex)
	if err != nil {
		return nil, fmt.Errorf("init wallet cipher: %w", err)
	}

	return &Service{
		repo:   repo,
		cipher: cipher,
		log:    log,
	}, nil
}

// Get returns the user's wallet or ErrWalletNotFound.
func (s *Service) Get(ctx context.Context, telegramID int64) (*domain.Wallet, error) {
	wallet, err := s.repo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	return wallet, nil
}

// GetOrCreate returns the user's wallet, generating and persisting a
// fresh key pair on first use.
func (s *Service) GetOrCreate(ctx context.Context, telegramID int64) (*domain.Wallet, error) {
	wallet, err := s.Get(ctx, telegramID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	pk, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate wallet key: %w", err)
	}

	sealed, err := s.cipher.seal(crypto.FromECDSA(pk))
	if err != nil {
		return nil, fmt.Errorf("seal wallet key: %w", err)
	}

	wallet = &domain.Wallet{
		TelegramID:   telegramID,
		Address:      crypto.PubkeyToAddress(pk.PublicKey).Hex(),
		EncryptedKey: sealed,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, wallet); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	s.log.Info("created wallet", "telegram_id", telegramID, "address", wallet.Address)
	return wallet, nil
}

// Import replaces the user's wallet with one derived from the provided
// private key. The key string is validated before any parsing.
func (s *Service) Import(ctx context.Context, telegramID int64, privateKeyHex string) (*domain.Wallet, error) {
	if !validate.IsPrivateKey(privateKeyHex) {
		return nil, apperrors.NewValidationError("That does not look like a valid private key.")
	}

	parsed, err := crypto.HexToECDSA(normalizeKeyHex(privateKeyHex))
	if err != nil {
		return nil, apperrors.NewValidationError("That does not look like a valid private key.")
	}

	sealed, err := s.cipher.seal(crypto.FromECDSA(parsed))
	if err != nil {
		return nil, fmt.Errorf("seal wallet key: %w", err)
	}

	wallet := &domain.Wallet{
		TelegramID:   telegramID,
		Address:      crypto.PubkeyToAddress(parsed.PublicKey).Hex(),
		EncryptedKey: sealed,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, wallet); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	s.log.Info("imported wallet", "telegram_id", telegramID, "address", wallet.Address)
	return wallet, nil
}

// SignerFor decrypts the user's key and returns a signer bound to it.
func (s *Service) SignerFor(ctx context.Context, telegramID int64) (*chain.LocalSigner, error) {
	wallet, err := s.Get(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	raw, err := s.cipher.open(wallet.EncryptedKey)
	if err != nil {
		s.log.Error("failed to unseal wallet key", "telegram_id", telegramID, "error", err)
		return nil, fmt.Errorf("unseal wallet key: %w", err)
	}

	pk, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parse wallet key: %w", err)
	}

	return chain.NewLocalSignerFromKey(pk), nil
}

// Address returns the user's wallet address.
func (s *Service) Address(ctx context.Context, telegramID int64) (common.Address, error) {
	wallet, err := s.Get(ctx, telegramID)
	if err != nil {
		return common.Address{}, err
	}

	return common.HexToAddress(wallet.Address), nil
}

func normalizeKeyHex(v string) string {
	if len(v) >= 2 && (v[:2] == "0x" || v[:2] == "0X") {
		return v[2:]
	}
	return v
}
