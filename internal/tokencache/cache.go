package tokencache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/avdeyev/dexflow-bot/internal/domain"
)

const defaultTTL = 24 * time.Hour

// Cache provides Redis-backed caching for ERC-20 metadata. Symbol and
// decimals are immutable in practice, so a long TTL is safe and saves
// two eth_call round trips per token lookup.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a token metadata cache backed by the provided
// Redis client. A non-positive ttl selects the default.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Cache{client: client, ttl: ttl}
}

// Get fetches cached metadata. A miss or a cache failure both report
// false; the caller falls back to the chain.
func (c *Cache) Get(ctx context.Context, address string) (domain.Token, bool) {
	if c == nil || c.client == nil {
		return domain.Token{}, false
	}

	// A miss and cache trouble look the same to the caller: neither
	// may block a token lookup, the chain is the fallback.
	data, err := c.client.Get(ctx, cacheKey(address)).Bytes()
	if err != nil {
		return domain.Token{}, false
	}

	var token domain.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return domain.Token{}, false
	}

	return token, true
}

// Set stores the token metadata. Failures are ignored for the same
// reason Get swallows them.
func (c *Cache) Set(ctx context.Context, token domain.Token) {
	if c == nil || c.client == nil || token.Address == "" {
		return
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return
	}

	_ = c.client.Set(ctx, cacheKey(token.Address), payload, c.ttl).Err()
}

// Invalidate removes a cached entry.
func (c *Cache) Invalidate(ctx context.Context, address string) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, cacheKey(address)).Err(); err != nil {
		return fmt.Errorf("delete cached token: %w", err)
	}

	return nil
}

func cacheKey(address string) string {
	return fmt.Sprintf("token:meta:%s", address)
}
