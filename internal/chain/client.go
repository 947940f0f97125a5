package chain

import (
	"context"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/avdeyev/dexflow-bot/internal/domain"
	apperrors "github.com/avdeyev/dexflow-bot/internal/errors"
)

// Backend is the slice of the JSON-RPC client surface the bot needs.
// *ethclient.Client satisfies it; tests substitute a fake.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// MetadataCache stores resolved ERC-20 metadata so repeat token lookups
// skip two RPC round trips.
type MetadataCache interface {
	Get(ctx context.Context, address string) (domain.Token, bool)
	Set(ctx context.Context, token domain.Token)
}

// Client exposes the read-side chain operations the flows depend on.
type Client struct {
	backend Backend
	cache   MetadataCache
	log     *slog.Logger
}

// NewClient wraps a backend. The metadata cache may be nil.
func NewClient(backend Backend, cache MetadataCache, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		backend: backend,
		cache:   cache,
		log:     log,
	}
}

// NativeBalance returns the account's native coin balance in wei.
func (c *Client) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		c.log.Error("failed to read native balance", "account", account.Hex(), "error", err)
		return nil, apperrors.NewExternalServiceError("rpc", err)
	}

	return balance, nil
}

// TokenBalance returns the account's ERC-20 balance in base units.
func (c *Client) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	data, err := packBalanceOf(account)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("rpc", err)
	}

	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		c.log.Error("failed to read token balance", "token", token.Hex(), "account", account.Hex(), "error", err)
		return nil, apperrors.NewExternalServiceError("rpc", err)
	}

	balance, err := unpackUint256("balanceOf", output)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("rpc", err)
	}

	return balance, nil
}

// Allowance returns how much the spender may move on the owner's behalf.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := packAllowance(owner, spender)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("rpc", err)
	}

	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		c.log.Error("failed to read allowance", "token", token.Hex(), "owner", owner.Hex(), "error", err)
		return nil, apperrors.NewExternalServiceError("rpc", err)
	}

	allowance, err := unpackUint256("allowance", output)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("rpc", err)
	}

	return allowance, nil
}

// TokenMetadata resolves symbol and decimals for an ERC-20 contract,
// consulting the cache first.
func (c *Client) TokenMetadata(ctx context.Context, token common.Address) (domain.Token, error) {
	address := strings.ToLower(token.Hex())
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, address); ok {
			return cached, nil
		}
	}

	symbolData, err := erc20ABI.Pack("symbol")
	if err != nil {
		return domain.Token{}, apperrors.NewExternalServiceError("rpc", err)
	}
	symbolOut, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: symbolData}, nil)
	if err != nil {
		c.log.Error("failed to read token symbol", "token", token.Hex(), "error", err)
		return domain.Token{}, apperrors.NewExternalServiceError("rpc", err)
	}
	symbol, err := unpackSymbol(symbolOut)
	if err != nil {
		return domain.Token{}, apperrors.NewExternalServiceError("rpc", err)
	}

	decimalsData, err := erc20ABI.Pack("decimals")
	if err != nil {
		return domain.Token{}, apperrors.NewExternalServiceError("rpc", err)
	}
	decimalsOut, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: decimalsData}, nil)
	if err != nil {
		c.log.Error("failed to read token decimals", "token", token.Hex(), "error", err)
		return domain.Token{}, apperrors.NewExternalServiceError("rpc", err)
	}
	decimals, err := unpackDecimals(decimalsOut)
	if err != nil {
		return domain.Token{}, apperrors.NewExternalServiceError("rpc", err)
	}

	resolved := domain.Token{
		Address:  address,
		Symbol:   symbol,
		Decimals: decimals,
	}
	if c.cache != nil {
		c.cache.Set(ctx, resolved)
	}

	return resolved, nil
}
