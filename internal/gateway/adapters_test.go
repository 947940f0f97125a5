package gateway

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeyev/dexflow-bot/internal/chain"
	apperrors "github.com/avdeyev/dexflow-bot/internal/errors"
	"github.com/avdeyev/dexflow-bot/internal/quote"
)

type fakeQuoter struct {
	calls int
	quote *quote.SwapQuote
	err   error
}

func (f *fakeQuoter) Swap(ctx context.Context, src, dst, from string, amount *big.Int, slippagePercent float64) (*quote.SwapQuote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.quote, nil
}

func TestGuardedQuoterPassesQuotesThrough(t *testing.T) {
	inner := &fakeQuoter{quote: &quote.SwapQuote{OutAmount: big.NewInt(42)}}
	q := NewGuardedQuoter(inner)

	result, err := q.Swap(context.Background(), "0xaa", "0xbb", "0xcc", big.NewInt(100), 1.0)

	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), result.OutAmount)
	assert.Equal(t, 1, inner.calls)
}

func TestGuardedQuoterFailsFastWhenProviderKeepsFailing(t *testing.T) {
	inner := &fakeQuoter{err: apperrors.NewExternalServiceError("quote", assert.AnError)}
	q := NewGuardedQuoter(inner)

	for i := 0; i < 10; i++ {
		_, err := q.Swap(context.Background(), "0xaa", "0xbb", "0xcc", big.NewInt(100), 1.0)
		require.Error(t, err)
	}
	require.Equal(t, 10, inner.calls)

	// Breaker is open now; the provider must not see this call.
	_, err := q.Swap(context.Background(), "0xaa", "0xbb", "0xcc", big.NewInt(100), 1.0)
	require.Error(t, err)
	assert.Equal(t, 10, inner.calls)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "E300", appErr.Code)
}

// flakyBackend fails BalanceAt a fixed number of times before
// succeeding. The other backend methods are unused by balance reads.
type flakyBackend struct {
	failures int
	attempts int
	balance  *big.Int
}

func (f *flakyBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.attempts++
	if f.attempts <= f.failures {
		return nil, assert.AnError
	}
	return f.balance, nil
}

func (f *flakyBackend) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }
func (f *flakyBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}
func (f *flakyBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 0, nil
}
func (f *flakyBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (f *flakyBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{}, nil
}
func (f *flakyBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}
func (f *flakyBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error { return nil }
func (f *flakyBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, nil
}

func TestChainBalancesRetriesTransientRPCFailures(t *testing.T) {
	backend := &flakyBackend{failures: 2, balance: big.NewInt(5000)}
	balances := NewChainBalances(chain.NewClient(backend, nil, nil))

	got, err := balances.NativeBalance(context.Background(), "0x1111111111111111111111111111111111111111")

	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5000), got)
	assert.Equal(t, 3, backend.attempts)
}

func TestChainBalancesGivesUpAfterBoundedRetries(t *testing.T) {
	backend := &flakyBackend{failures: 100, balance: big.NewInt(5000)}
	balances := NewChainBalances(chain.NewClient(backend, nil, nil))

	_, err := balances.NativeBalance(context.Background(), "0x1111111111111111111111111111111111111111")

	require.Error(t, err)
	assert.Equal(t, 4, backend.attempts)
}
