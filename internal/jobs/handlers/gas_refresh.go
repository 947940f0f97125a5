package handlers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/avdeyev/dexflow-bot/internal/gasoracle"
)

// GasRefreshHandler keeps the gas fee cache warm so confirm screens
// never block on the oracle HTTP call.
type GasRefreshHandler struct {
	oracle *gasoracle.Oracle
	log    *slog.Logger
}

func NewGasRefreshHandler(oracle *gasoracle.Oracle, log *slog.Logger) *GasRefreshHandler {
	return &GasRefreshHandler{oracle: oracle, log: log}
}

func (h *GasRefreshHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if err := h.oracle.Refresh(ctx); err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "gas refresh: oracle fetch failed",
				slog.String("task_type", t.Type()),
				slog.String("error", err.Error()))
		}
		return err
	}

	if h.log != nil {
		h.log.InfoContext(ctx, "gas refresh: fee tiers updated", slog.String("task_type", t.Type()))
	}

	return nil
}
