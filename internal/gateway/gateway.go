// Package gateway bridges the flow engine's capability interfaces to
// the chain, wallet, and storage services.
package gateway

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/avdeyev/dexflow-bot/internal/chain"
	"github.com/avdeyev/dexflow-bot/internal/flow"
	"github.com/avdeyev/dexflow-bot/internal/wallet"
)

// Provider builds per-user transaction gateways. Each gateway is bound
// to the user's signing key for the duration of one confirm step; keys
// never travel through the flow engine itself.
type Provider struct {
	backend chain.Backend
	client  *chain.Client
	wallets *wallet.Service
	opts    []chain.ExecutorOption
	log     *slog.Logger
}

// NewProvider builds the gateway factory.
func NewProvider(backend chain.Backend, client *chain.Client, wallets *wallet.Service, log *slog.Logger, opts ...chain.ExecutorOption) *Provider {
	if log == nil {
		log = slog.Default()
	}

	return &Provider{
		backend: backend,
		client:  client,
		wallets: wallets,
		opts:    opts,
		log:     log,
	}
}

// GatewayFor assembles the executor and approver for one user.
func (p *Provider) GatewayFor(ctx context.Context, telegramID int64) (flow.Gateway, error) {
	signer, err := p.wallets.SignerFor(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	executor := chain.NewTxExecutor(p.backend, signer, p.log, p.opts...)
	approver := chain.NewApprover(p.client, executor, signer.Address(), p.log)

	return &userGateway{executor: executor, approver: approver}, nil
}

type userGateway struct {
	executor chain.Executor
	approver *chain.Approver
}

func (g *userGateway) Submit(ctx context.Context, plan flow.TxPlan) (*flow.Receipt, error) {
	receipt, err := g.executor.Submit(ctx, chain.TxRequest{
		To:                   common.HexToAddress(plan.To),
		Data:                 plan.Data,
		Value:                plan.Value,
		GasLimit:             plan.GasLimit,
		MaxFeePerGas:         plan.MaxFeePerGas,
		MaxPriorityFeePerGas: plan.MaxPriorityFeePerGas,
	})
	if err != nil {
		return nil, err
	}

	return &flow.Receipt{
		Hash:    receipt.Hash,
		Status:  receipt.Status,
		GasUsed: receipt.GasUsed,
	}, nil
}

func (g *userGateway) EnsureAllowance(ctx context.Context, token, spender string, required *big.Int) error {
	return g.approver.EnsureAllowance(ctx, common.HexToAddress(token), common.HexToAddress(spender), required)
}
