package gateway

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/avdeyev/dexflow-bot/internal/chain"
	"github.com/avdeyev/dexflow-bot/internal/domain"
	apperrors "github.com/avdeyev/dexflow-bot/internal/errors"
	"github.com/avdeyev/dexflow-bot/internal/flow"
	"github.com/avdeyev/dexflow-bot/internal/quote"
	"github.com/avdeyev/dexflow-bot/internal/repository"
	"github.com/avdeyev/dexflow-bot/internal/wallet"
)

// ChainBalances adapts the RPC client to the engine's string-addressed
// balance reads.
type ChainBalances struct {
	client *chain.Client
}

func NewChainBalances(client *chain.Client) *ChainBalances {
	return &ChainBalances{client: client}
}

func (b *ChainBalances) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	var balance *big.Int
	err := apperrors.WithRetry(ctx, func() error {
		var err error
		balance, err = b.client.NativeBalance(ctx, common.HexToAddress(address))
		return err
	})
	return balance, err
}

func (b *ChainBalances) TokenBalance(ctx context.Context, token, address string) (*big.Int, error) {
	var balance *big.Int
	err := apperrors.WithRetry(ctx, func() error {
		var err error
		balance, err = b.client.TokenBalance(ctx, common.HexToAddress(token), common.HexToAddress(address))
		return err
	})
	return balance, err
}

// ChainTokens adapts on-chain metadata lookups to the engine's resolver.
type ChainTokens struct {
	client *chain.Client
}

func NewChainTokens(client *chain.Client) *ChainTokens {
	return &ChainTokens{client: client}
}

func (t *ChainTokens) Resolve(ctx context.Context, address string) (domain.Token, error) {
	var token domain.Token
	err := apperrors.WithRetry(ctx, func() error {
		var err error
		token, err = t.client.TokenMetadata(ctx, common.HexToAddress(address))
		return err
	})
	return token, err
}

// GuardedQuoter fronts the aggregator with a circuit breaker so a
// degraded quote provider fails fast instead of stacking timeouts
// inside user turns.
type GuardedQuoter struct {
	next    flow.Quoter
	breaker *apperrors.CircuitBreaker
}

func NewGuardedQuoter(next flow.Quoter) *GuardedQuoter {
	return &GuardedQuoter{
		next:    next,
		breaker: apperrors.NewCircuitBreaker(),
	}
}

func (q *GuardedQuoter) Swap(ctx context.Context, src, dst, from string, amount *big.Int, slippagePercent float64) (*quote.SwapQuote, error) {
	var result *quote.SwapQuote
	err := q.breaker.Call(func() error {
		var err error
		result, err = q.next.Swap(ctx, src, dst, from, amount, slippagePercent)
		return err
	})
	if err != nil {
		if result == nil {
			// Breaker rejections never reached the provider; surface
			// them with the same abort semantics as a provider failure.
			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) {
				return nil, apperrors.NewExternalServiceError("quote", err)
			}
		}
		return nil, err
	}
	return result, nil
}

// WalletAddresses adapts the wallet service to the engine's
// string-addressed wallet lookups.
type WalletAddresses struct {
	svc *wallet.Service
}

func NewWalletAddresses(svc *wallet.Service) *WalletAddresses {
	return &WalletAddresses{svc: svc}
}

func (w *WalletAddresses) EnsureWallet(ctx context.Context, telegramID int64) (string, error) {
	wlt, err := w.svc.GetOrCreate(ctx, telegramID)
	if err != nil {
		return "", err
	}
	return wlt.Address, nil
}

func (w *WalletAddresses) Address(ctx context.Context, telegramID int64) (string, error) {
	addr, err := w.svc.Address(ctx, telegramID)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

// TransactionRecords adapts the SQL repository to the engine's store.
type TransactionRecords struct {
	repo repository.TransactionRepository
}

func NewTransactionRecords(repo repository.TransactionRepository) *TransactionRecords {
	return &TransactionRecords{repo: repo}
}

func (r *TransactionRecords) Save(ctx context.Context, tx *domain.Transaction) error {
	return r.repo.Save(ctx, tx)
}

func (r *TransactionRecords) BoughtTokens(ctx context.Context, telegramID int64) ([]string, error) {
	return r.repo.BoughtTokensByTelegramID(ctx, telegramID)
}

func (r *TransactionRecords) Recent(ctx context.Context, telegramID int64, limit int) ([]domain.Transaction, error) {
	return r.repo.RecentByTelegramID(ctx, telegramID, limit)
}

// compile-time interface checks
var (
	_ flow.BalanceReader    = (*ChainBalances)(nil)
	_ flow.Quoter           = (*GuardedQuoter)(nil)
	_ flow.TokenResolver    = (*ChainTokens)(nil)
	_ flow.WalletProvider   = (*WalletAddresses)(nil)
	_ flow.TransactionStore = (*TransactionRecords)(nil)
	_ flow.GatewayProvider  = (*Provider)(nil)
)
