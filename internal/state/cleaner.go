package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateScanBatchCount = 100

// Cleaner expires abandoned flows back to idle on a schedule. Redis TTL
// already drops untouched sessions after an hour; the cleaner enforces
// the shorter application-level timeout for half-finished flows.
type Cleaner struct {
	redisClient *redis.Client
	storage     Storage
	log         *slog.Logger
	ttl         time.Duration
	interval    time.Duration
}

// NewCleaner constructs a Cleaner instance.
func NewCleaner(redisClient *redis.Client, storage Storage, log *slog.Logger, ttl, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		redisClient: redisClient,
		storage:     storage,
		log:         log,
		ttl:         ttl,
		interval:    interval,
	}
}

// Run starts the cleanup loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.redisClient == nil || c.storage == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("state cleaner stopped")
			return
		case <-ticker.C:
			c.Cleanup(ctx)
		}
	}
}

// Cleanup scans stored sessions once and expires stale active flows.
func (c *Cleaner) Cleanup(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	var cursor uint64
	for {
		keys, nextCursor, err := c.redisClient.Scan(ctx, cursor, userStateScanPattern, stateScanBatchCount).Result()
		if err != nil {
			c.log.Error("state cleaner scan failed", slog.Any("error", err))
			return
		}

		for _, key := range keys {
			c.expireIfStale(ctx, key)
		}

		if ctx.Err() != nil || nextCursor == 0 {
			return
		}
		cursor = nextCursor
	}
}

func (c *Cleaner) expireIfStale(ctx context.Context, key string) {
	userID, err := extractUserID(key)
	if err != nil {
		c.log.Warn("state cleaner unable to parse user id", slog.String("key", key), slog.Any("error", err))
		return
	}

	userState, err := c.storage.GetState(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrStateNotFound) {
			c.log.Error("state cleaner failed to load state", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return
	}

	// Idle sessions carry no flow data; only active flows go stale.
	if userState == nil || userState.IsIdle() {
		return
	}

	if time.Since(userState.UpdatedAt) <= c.ttl {
		return
	}

	userState.Reset()
	if err := c.storage.SetState(ctx, userID, userState); err != nil {
		c.log.Error("state cleaner failed to reset state", slog.Int64("user_id", userID), slog.Any("error", err))
		return
	}

	c.log.Info("abandoned flow expired", slog.Int64("user_id", userID))
}

func extractUserID(key string) (int64, error) {
	segments := strings.Split(key, ":")
	if len(segments) == 0 {
		return 0, fmt.Errorf("invalid key format: %s", key)
	}

	return strconv.ParseInt(segments[len(segments)-1], 10, 64)
}
