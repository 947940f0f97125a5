package handlers

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hibiken/asynq"

	"github.com/avdeyev/dexflow-bot/internal/chain"
	"github.com/avdeyev/dexflow-bot/internal/repository"
)

// MetadataWarmHandler re-resolves metadata for every token that appears
// in trade history, repopulating the token cache before entries expire.
type MetadataWarmHandler struct {
	chainClient *chain.Client
	txRepo      repository.TransactionRepository
	log         *slog.Logger
}

func NewMetadataWarmHandler(chainClient *chain.Client, txRepo repository.TransactionRepository, log *slog.Logger) *MetadataWarmHandler {
	return &MetadataWarmHandler{
		chainClient: chainClient,
		txRepo:      txRepo,
		log:         log,
	}
}

func (h *MetadataWarmHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	addresses, err := h.txRepo.DistinctTradedTokens(ctx)
	if err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "metadata warm: failed to list traded tokens",
				slog.String("task_type", t.Type()),
				slog.String("error", err.Error()))
		}
		return err
	}

	var failed int
	for _, address := range addresses {
		if _, err := h.chainClient.TokenMetadata(ctx, common.HexToAddress(address)); err != nil {
			failed++
			if h.log != nil {
				h.log.WarnContext(ctx, "metadata warm: token resolution failed",
					slog.String("token", address),
					slog.String("error", err.Error()))
			}
		}
	}

	if h.log != nil {
		h.log.InfoContext(ctx, "metadata warm: cache refreshed",
			slog.String("task_type", t.Type()),
			slog.Int("tokens", len(addresses)),
			slog.Int("failed", failed))
	}

	return nil
}
