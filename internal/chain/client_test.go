package chain

import (
	"context"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"

	"github.com/avdeyev/dexflow-bot/internal/domain"
)

// callBackend dispatches eth_call by the 4-byte function selector so a
// single fake serves balance, allowance and metadata reads.
type callBackend struct {
	fakeBackend
	outputs map[string][]byte
	calls   int
}

func (b *callBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.calls++
	selector := hex.EncodeToString(msg.Data[:4])
	out, ok := b.outputs[selector]
	if !ok {
		return nil, ethereum.NotFound
	}
	return out, nil
}

func selectorOf(t *testing.T, method string) string {
	t.Helper()
	return hex.EncodeToString(erc20ABI.Methods[method].ID)
}

func encodeUint256(t *testing.T, method string, v *big.Int) []byte {
	t.Helper()
	out, err := erc20ABI.Methods[method].Outputs.Pack(v)
	if err != nil {
		t.Fatalf("pack %s output: %v", method, err)
	}
	return out
}

func TestClient_TokenBalance(t *testing.T) {
	backend := &callBackend{outputs: map[string][]byte{
		selectorOf(t, "balanceOf"): encodeUint256(t, "balanceOf", big.NewInt(1_500_000)),
	}}
	client := NewClient(backend, nil, testLogger())

	balance, err := client.TokenBalance(context.Background(), testToken, testOwner)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if balance.Cmp(big.NewInt(1_500_000)) != 0 {
		t.Errorf("expected balance 1500000, got %s", balance)
	}
}

func TestClient_Allowance(t *testing.T) {
	backend := &callBackend{outputs: map[string][]byte{
		selectorOf(t, "allowance"): encodeUint256(t, "allowance", big.NewInt(42)),
	}}
	client := NewClient(backend, nil, testLogger())

	allowance, err := client.Allowance(context.Background(), testToken, testOwner, testSpender)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if allowance.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("expected allowance 42, got %s", allowance)
	}
}

type memoryMetadataCache struct {
	mu     sync.Mutex
	tokens map[string]domain.Token
}

func (c *memoryMetadataCache) Get(ctx context.Context, address string) (domain.Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, ok := c.tokens[address]
	return tok, ok
}

func (c *memoryMetadataCache) Set(ctx context.Context, token domain.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens == nil {
		c.tokens = make(map[string]domain.Token)
	}
	c.tokens[token.Address] = token
}

func TestClient_TokenMetadataCached(t *testing.T) {
	symbolOut, err := erc20ABI.Methods["symbol"].Outputs.Pack("DAI")
	if err != nil {
		t.Fatalf("pack symbol output: %v", err)
	}
	decimalsOut, err := erc20ABI.Methods["decimals"].Outputs.Pack(uint8(18))
	if err != nil {
		t.Fatalf("pack decimals output: %v", err)
	}

	backend := &callBackend{outputs: map[string][]byte{
		selectorOf(t, "symbol"):   symbolOut,
		selectorOf(t, "decimals"): decimalsOut,
	}}
	client := NewClient(backend, &memoryMetadataCache{}, testLogger())

	token, err := client.TokenMetadata(context.Background(), testToken)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if token.Symbol != "DAI" || token.Decimals != 18 {
		t.Fatalf("unexpected metadata: %+v", token)
	}

	callsAfterFirst := backend.calls
	if _, err := client.TokenMetadata(context.Background(), testToken); err != nil {
		t.Fatalf("expected nil error on cached lookup, got %v", err)
	}
	if backend.calls != callsAfterFirst {
		t.Errorf("cached lookup must not hit the backend, calls went %d -> %d", callsAfterFirst, backend.calls)
	}
}

func TestClient_NativeBalance(t *testing.T) {
	backend := newFakeBackend()
	backend.balance = big.NewInt(2_000_000_000_000_000_000)
	client := NewClient(backend, nil, testLogger())

	balance, err := client.NativeBalance(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if balance.Cmp(backend.balance) != 0 {
		t.Errorf("expected balance %s, got %s", backend.balance, balance)
	}
}
