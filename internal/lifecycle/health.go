package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// ReadinessCheck reports whether the process can take traffic.
type ReadinessCheck func(ctx context.Context) error

// Probes implements the liveness and readiness endpoints. Liveness is
// true while the process runs; readiness delegates to the supplied
// check and can be forced off during shutdown so load balancers drain
// before hooks run.
type Probes struct {
	log      *slog.Logger
	ready    ReadinessCheck
	draining atomic.Bool
}

// NewProbes creates probes backed by the given readiness check. A nil
// check makes readiness mirror liveness.
func NewProbes(log *slog.Logger, ready ReadinessCheck) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{log: log, ready: ready}
}

// Liveness reports success while the process is running.
func (p *Probes) Liveness(ctx context.Context) error {
	return nil
}

// Readiness reports whether the process should receive traffic.
func (p *Probes) Readiness(ctx context.Context) error {
	if p.draining.Load() {
		return errors.New("draining")
	}

	if p.ready == nil {
		return nil
	}

	if err := p.ready(ctx); err != nil {
		p.log.Warn("readiness check failed", slog.Any("error", err))
		return err
	}

	return nil
}

// StartDraining marks the process not ready ahead of shutdown.
func (p *Probes) StartDraining() {
	p.draining.Store(true)
}
