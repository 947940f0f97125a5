package gasoracle

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeyev/dexflow-bot/internal/domain"
)

const stationBody = `{
	"low":    {"maxFeePerGas": "20",   "maxPriorityFeePerGas": "1"},
	"medium": {"maxFeePerGas": "30.5", "maxPriorityFeePerGas": "2"},
	"high":   {"maxFeePerGas": "50",   "maxPriorityFeePerGas": "3"}
}`

func testOracle(t *testing.T, handler http.HandlerFunc, ttl time.Duration) *Oracle {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{
		BaseURL:  srv.URL,
		Timeout:  time.Second,
		CacheTTL: ttl,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOracle_Fee(t *testing.T) {
	oracle := testOracle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gas-price", r.URL.Path)
		_, _ = w.Write([]byte(stationBody))
	}, time.Minute)

	tier := oracle.Fee(context.Background(), domain.GasPriorityMedium)
	assert.Equal(t, "30500000000", tier.MaxFeePerGas.String())
	assert.Equal(t, "2000000000", tier.MaxPriorityFeePerGas.String())

	tier = oracle.Fee(context.Background(), domain.GasPriorityHigh)
	assert.Equal(t, "50000000000", tier.MaxFeePerGas.String())
}

func TestOracle_CachesBetweenCalls(t *testing.T) {
	var hits atomic.Int64
	oracle := testOracle(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(stationBody))
	}, time.Minute)

	ctx := context.Background()
	oracle.Fee(ctx, domain.GasPriorityLow)
	oracle.Fee(ctx, domain.GasPriorityMedium)
	oracle.Fee(ctx, domain.GasPriorityHigh)

	assert.Equal(t, int64(1), hits.Load())
}

func TestOracle_FallbackWhenUnavailable(t *testing.T) {
	oracle := testOracle(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}, time.Minute)

	tier := oracle.Fee(context.Background(), domain.GasPriorityMedium)
	assert.Equal(t, "30000000000", tier.MaxFeePerGas.String())
	assert.Equal(t, "2000000000", tier.MaxPriorityFeePerGas.String())
}

func TestOracle_RefreshBypassesCache(t *testing.T) {
	var hits atomic.Int64
	oracle := testOracle(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(stationBody))
	}, time.Minute)

	ctx := context.Background()
	require.NoError(t, oracle.Refresh(ctx))
	require.NoError(t, oracle.Refresh(ctx))
	assert.Equal(t, int64(2), hits.Load())
}

func TestParseGwei(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{input: "30", expected: "30000000000"},
		{input: "1.5", expected: "1500000000"},
		{input: "0", expected: "0"},
		{input: "-1", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "0.0000000001", wantErr: true}, // sub-wei
	}

	for _, tc := range testCases {
		got, err := parseGwei(tc.input)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.input)
			continue
		}
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.expected, got.String(), "input %q", tc.input)
	}
}
