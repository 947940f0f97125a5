package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	gasCron        string
	metadataCron   string
	log            *slog.Logger
}

// NewScheduler builds a cron scheduler for the periodic maintenance
// tasks. Cron expressions come from configuration.
func NewScheduler(redisOpt asynq.RedisConnOpt, gasCron, metadataCron string, log *slog.Logger) Scheduler {
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		gasCron:        gasCron,
		metadataCron:   metadataCron,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	if _, err := s.asynqScheduler.Register(s.gasCron, NewGasRefreshTask()); err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(s.metadataCron, NewMetadataWarmTask()); err != nil {
		return err
	}

	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: registered maintenance tasks",
			"gas_cron", s.gasCron, "metadata_cron", s.metadataCron)
	}

	return nil
}

func (s *scheduler) Run() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: starting")
	}

	go func() {
		if err := s.asynqScheduler.Run(); err != nil && s.log != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", "error", err)
		}
	}()
}

func (s *scheduler) Shutdown() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: shutting down")
	}

	s.asynqScheduler.Shutdown()
}
