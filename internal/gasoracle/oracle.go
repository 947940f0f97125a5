package gasoracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/avdeyev/dexflow-bot/internal/domain"
)

// FeeTier is one gas price option in wei.
type FeeTier struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Tiers maps every gas priority to its fee parameters.
type Tiers map[domain.GasPriority]FeeTier

// Fallback fees used when the oracle is unreachable and no fresh data
// is cached: 30 gwei max fee, 2 gwei tip.
var fallbackTier = FeeTier{
	MaxFeePerGas:         big.NewInt(30_000_000_000),
	MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
}

const defaultCacheTTL = 30 * time.Second

// Oracle fetches fee tiers from a gas station HTTP API and caches them
// briefly so every flow turn does not hit the endpoint.
type Oracle struct {
	client   *resty.Client
	log      *slog.Logger
	cacheTTL time.Duration

	mu        sync.RWMutex
	tiers     Tiers
	fetchedAt time.Time
}

// Config carries the gas station endpoint settings.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
	Debug    bool
}

// New builds the oracle.
func New(cfg Config, log *slog.Logger) *Oracle {
	if log == nil {
		log = slog.Default()
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	client := resty.New().
		SetDebug(cfg.Debug).
		SetTimeout(cfg.Timeout).
		SetBaseURL(cfg.BaseURL)

	return &Oracle{
		client:   client,
		log:      log,
		cacheTTL: ttl,
	}
}

type stationResponse struct {
	Low    stationTier `json:"low"`
	Medium stationTier `json:"medium"`
	High   stationTier `json:"high"`
}

type stationTier struct {
	MaxFeeGwei         string `json:"maxFeePerGas"`
	MaxPriorityFeeGwei string `json:"maxPriorityFeePerGas"`
}

// Fee returns the fee tier for the given priority. A stale cache or
// failed fetch falls back to conservative defaults rather than blocking
// the flow.
func (o *Oracle) Fee(ctx context.Context, priority domain.GasPriority) FeeTier {
	tiers, err := o.tiersCached(ctx)
	if err != nil {
		o.log.Warn("gas oracle unavailable, using fallback fees", "error", err)
		return fallbackTier
	}

	tier, ok := tiers[priority]
	if !ok {
		return fallbackTier
	}
	return tier
}

// Refresh forces a fetch, bypassing the cache. The periodic refresh job
// calls it so interactive turns mostly hit warm data.
func (o *Oracle) Refresh(ctx context.Context) error {
	tiers, err := o.fetch(ctx)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.tiers = tiers
	o.fetchedAt = time.Now()
	o.mu.Unlock()

	return nil
}

func (o *Oracle) tiersCached(ctx context.Context) (Tiers, error) {
	o.mu.RLock()
	tiers, fetchedAt := o.tiers, o.fetchedAt
	o.mu.RUnlock()

	if tiers != nil && time.Since(fetchedAt) < o.cacheTTL {
		return tiers, nil
	}

	if err := o.Refresh(ctx); err != nil {
		// Stale data beats the hardcoded fallback.
		if tiers != nil {
			return tiers, nil
		}
		return nil, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.tiers, nil
}

func (o *Oracle) fetch(ctx context.Context) (Tiers, error) {
	resp, err := o.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get("/gas-price")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gas station returned status %d", resp.StatusCode())
	}

	var raw stationResponse
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("decode gas station response: %w", err)
	}

	tiers := Tiers{}
	for priority, rawTier := range map[domain.GasPriority]stationTier{
		domain.GasPriorityLow:    raw.Low,
		domain.GasPriorityMedium: raw.Medium,
		domain.GasPriorityHigh:   raw.High,
	} {
		maxFee, err := parseGwei(rawTier.MaxFeeGwei)
		if err != nil {
			return nil, fmt.Errorf("parse %s maxFeePerGas: %w", priority, err)
		}
		tip, err := parseGwei(rawTier.MaxPriorityFeeGwei)
		if err != nil {
			return nil, fmt.Errorf("parse %s maxPriorityFeePerGas: %w", priority, err)
		}
		tiers[priority] = FeeTier{MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip}
	}

	return tiers, nil
}

// parseGwei converts a decimal gwei string to integer wei.
func parseGwei(v string) (*big.Int, error) {
	rat, ok := new(big.Rat).SetString(v)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", v)
	}
	if rat.Sign() < 0 {
		return nil, fmt.Errorf("value must be non-negative")
	}

	rat.Mul(rat, big.NewRat(1_000_000_000, 1))
	if !rat.IsInt() {
		return nil, fmt.Errorf("value %q does not resolve to integer wei", v)
	}

	return new(big.Int).Set(rat.Num()), nil
}
