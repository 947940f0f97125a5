package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// TaskTypeGasRefresh re-fetches the gas oracle fee tiers.
	TaskTypeGasRefresh = "gas:refresh"
	// TaskTypeMetadataWarm re-resolves metadata for traded tokens into
	// the cache.
	TaskTypeMetadataWarm = "token:metadata_warm"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

func NewGasRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskTypeGasRefresh, nil, asynq.Queue(QueueDefault))
}

func NewMetadataWarmTask() *asynq.Task {
	return asynq.NewTask(TaskTypeMetadataWarm, nil, asynq.Queue(QueueLow))
}
