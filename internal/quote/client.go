package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/avdeyev/dexflow-bot/internal/errors"
)

// SwapQuote is an executable aggregator quote: the expected output plus
// the exact transaction the router wants. Quotes go stale with the next
// block, so flows re-fetch at confirmation instead of reusing one shown
// earlier.
type SwapQuote struct {
	OutAmount    *big.Int // destination token base units
	Router       string   // spender and tx target, checksummed hex
	CallData     []byte
	Value        *big.Int // native value the swap tx must carry
	EstimatedGas uint64
}

// Client fetches swap quotes from an aggregator HTTP API.
type Client struct {
	client  *resty.Client
	chainID int64
	log     *slog.Logger
}

// Config carries the aggregator endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	ChainID int64
	Timeout time.Duration
	Debug   bool
}

// New builds the quote client.
func New(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	client := resty.New().
		SetDebug(cfg.Debug).
		SetTimeout(cfg.Timeout).
		SetBaseURL(cfg.BaseURL)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		client:  client,
		chainID: cfg.ChainID,
		log:     log,
	}
}

type swapResponse struct {
	DstAmount string `json:"dstAmount"`
	Tx        struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
		Gas   uint64 `json:"gas"`
	} `json:"tx"`
}

// Swap requests an executable quote selling amount of src for dst.
// Amounts are base units; slippage is a percentage like 1.0.
func (c *Client) Swap(ctx context.Context, src, dst, from string, amount *big.Int, slippagePercent float64) (*SwapQuote, error) {
	params := map[string]string{
		"src":      src,
		"dst":      dst,
		"from":     from,
		"amount":   amount.String(),
		"slippage": strconv.FormatFloat(slippagePercent, 'f', -1, 64),
	}

	url := fmt.Sprintf("/swap/v6.0/%d/swap", c.chainID)
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)
	if err != nil {
		c.log.Error("quote request failed", "src", src, "dst", dst, "error", err)
		return nil, apperrors.NewExternalServiceError("quote", err)
	}
	if resp.IsError() {
		c.log.Error("quote request rejected", "src", src, "dst", dst, "status", resp.StatusCode())
		return nil, apperrors.NewExternalServiceError("quote",
			fmt.Errorf("aggregator returned status %d", resp.StatusCode()))
	}

	var raw swapResponse
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		c.log.Error("can't unmarshal aggregator response", "error", err)
		return nil, apperrors.NewExternalServiceError("quote", err)
	}

	return parseSwapResponse(raw)
}

func parseSwapResponse(raw swapResponse) (*SwapQuote, error) {
	outAmount, ok := new(big.Int).SetString(raw.DstAmount, 10)
	if !ok || outAmount.Sign() <= 0 {
		return nil, apperrors.NewExternalServiceError("quote",
			fmt.Errorf("aggregator returned invalid dstAmount %q", raw.DstAmount))
	}
	if raw.Tx.To == "" {
		return nil, apperrors.NewExternalServiceError("quote",
			fmt.Errorf("aggregator response missing tx target"))
	}

	callData, err := decodeHex(raw.Tx.Data)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("quote",
			fmt.Errorf("aggregator returned invalid calldata: %w", err))
	}

	value := big.NewInt(0)
	if raw.Tx.Value != "" {
		value, ok = new(big.Int).SetString(raw.Tx.Value, 10)
		if !ok {
			return nil, apperrors.NewExternalServiceError("quote",
				fmt.Errorf("aggregator returned invalid tx value %q", raw.Tx.Value))
		}
	}

	return &SwapQuote{
		OutAmount:    outAmount,
		Router:       raw.Tx.To,
		CallData:     callData,
		Value:        value,
		EstimatedGas: raw.Tx.Gas,
	}, nil
}
