package quote

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/avdeyev/dexflow-bot/internal/errors"
)

func testQuoteClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{
		BaseURL: srv.URL,
		ChainID: 1,
		Timeout: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Swap(t *testing.T) {
	client := testQuoteClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap/v6.0/1/swap", r.URL.Path)
		assert.Equal(t, "500000000000000000", r.URL.Query().Get("amount"))
		assert.Equal(t, "1", r.URL.Query().Get("slippage"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"dstAmount": "750000000",
			"tx": {
				"to": "0x1111111254EEB25477B68fb85Ed929f73A960582",
				"data": "0x12aa3caf",
				"value": "500000000000000000",
				"gas": 210000
			}
		}`))
	})

	q, err := client.Swap(context.Background(),
		"0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee",
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		"0x9fc3da866e7df3a1c57ade1a97c9f00a70f010c8",
		big.NewInt(500000000000000000), 1.0)
	require.NoError(t, err)

	assert.Equal(t, "750000000", q.OutAmount.String())
	assert.Equal(t, "0x1111111254EEB25477B68fb85Ed929f73A960582", q.Router)
	assert.Equal(t, []byte{0x12, 0xaa, 0x3c, 0xaf}, q.CallData)
	assert.Equal(t, "500000000000000000", q.Value.String())
	assert.Equal(t, uint64(210000), q.EstimatedGas)
}

func TestClient_SwapUpstreamError(t *testing.T) {
	client := testQuoteClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"insufficient liquidity"}`, http.StatusBadRequest)
	})

	_, err := client.Swap(context.Background(), "0xaa", "0xbb", "0xcc", big.NewInt(1), 1.0)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "E300", appErr.Code)
	assert.True(t, appErr.Retryable)
}

func TestParseSwapResponse_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		raw  swapResponse
	}{
		{name: "missing dst amount", raw: swapResponse{}},
		{
			name: "zero dst amount",
			raw: func() swapResponse {
				var r swapResponse
				r.DstAmount = "0"
				r.Tx.To = "0x1111111254EEB25477B68fb85Ed929f73A960582"
				return r
			}(),
		},
		{
			name: "missing tx target",
			raw: func() swapResponse {
				var r swapResponse
				r.DstAmount = "1000"
				return r
			}(),
		},
		{
			name: "bad calldata",
			raw: func() swapResponse {
				var r swapResponse
				r.DstAmount = "1000"
				r.Tx.To = "0x1111111254EEB25477B68fb85Ed929f73A960582"
				r.Tx.Data = "0xzz"
				return r
			}(),
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseSwapResponse(tc.raw)
			assert.Error(t, err)
		})
	}
}
