package flow

import (
	"context"
	"math/big"

	"github.com/avdeyev/dexflow-bot/internal/domain"
	"github.com/avdeyev/dexflow-bot/internal/gasoracle"
	"github.com/avdeyev/dexflow-bot/internal/quote"
	"github.com/avdeyev/dexflow-bot/internal/state"
)

// Input is one user turn: free text or a callback token, per the shape
// the current state expects.
type Input struct {
	Kind  state.InputKind
	Value string
}

// Button is one inline keyboard option.
type Button struct {
	Label string
	Data  string
}

// Response is what a turn sends back to the user.
type Response struct {
	Text     string
	Keyboard [][]Button
}

// TxPlan is the executor gateway request: where to send, what calldata
// and value to carry, and the fee parameters fixed at confirmation.
type TxPlan struct {
	To                   string
	Data                 []byte
	Value                *big.Int
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Receipt is the settled outcome the gateway reports back.
type Receipt struct {
	Hash    string
	Status  domain.TransactionStatus
	GasUsed uint64
}

// BalanceReader reads live on-chain balances.
type BalanceReader interface {
	NativeBalance(ctx context.Context, address string) (*big.Int, error)
	TokenBalance(ctx context.Context, token, address string) (*big.Int, error)
}

// TokenResolver resolves ERC-20 metadata by contract address.
type TokenResolver interface {
	Resolve(ctx context.Context, address string) (domain.Token, error)
}

// Quoter fetches executable swap quotes.
type Quoter interface {
	Swap(ctx context.Context, src, dst, from string, amount *big.Int, slippagePercent float64) (*quote.SwapQuote, error)
}

// FeeSource supplies gas fee tiers by priority.
type FeeSource interface {
	Fee(ctx context.Context, priority domain.GasPriority) gasoracle.FeeTier
}

// Gateway submits transactions for one user's signer and runs the
// allowance sub-protocol. Submit blocks until a receipt arrives; a
// mined-but-reverted transaction is a Receipt with failed status, not
// an error. The engine never retries a Submit.
type Gateway interface {
	Submit(ctx context.Context, plan TxPlan) (*Receipt, error)
	EnsureAllowance(ctx context.Context, token, spender string, required *big.Int) error
}

// GatewayProvider binds a gateway to a user's signer capability. The
// engine never sees private keys.
type GatewayProvider interface {
	GatewayFor(ctx context.Context, telegramID int64) (Gateway, error)
}

// WalletProvider exposes wallet existence and addresses.
type WalletProvider interface {
	EnsureWallet(ctx context.Context, telegramID int64) (address string, err error)
	Address(ctx context.Context, telegramID int64) (string, error)
}

// SettingsStore reads and writes per-user trading preferences.
type SettingsStore interface {
	Settings(ctx context.Context, telegramID int64) (*domain.UserSettings, error)
	UpdateSettings(ctx context.Context, telegramID int64, settings *domain.UserSettings) error
}

// TransactionStore persists executed transactions and serves the
// history queries the sell flow needs.
type TransactionStore interface {
	Save(ctx context.Context, tx *domain.Transaction) error
	BoughtTokens(ctx context.Context, telegramID int64) ([]string, error)
	Recent(ctx context.Context, telegramID int64, limit int) ([]domain.Transaction, error)
}

// Deps bundles every capability the engine needs. All calls go through
// these interfaces so turns are unit-testable without a node, an
// aggregator or a database.
type Deps struct {
	Balances BalanceReader
	Tokens   TokenResolver
	Quotes   Quoter
	Fees     FeeSource
	Gateways GatewayProvider
	Wallets  WalletProvider
	Settings SettingsStore
	Records  TransactionStore
}
