package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedisStorage_SetAndGet(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	log := testLogger()
	storage := NewRedisStorage(client, log)

	ctx := context.Background()
	userState := &UserState{
		UserID:       123,
		CurrentState: StateBuyConfirm,
		Flow: &FlowData{
			Kind: FlowKindBuy,
			Buy: &BuyFlow{
				TokenAddress:  "0x6b175474e89094c44da98b954eedeac495271d0f",
				TokenSymbol:   "DAI",
				TokenDecimals: 18,
				NativeBalance: "2000000000000000000",
				AmountIn:      "500000000000000000",
				QuoteOut:      "750000000000000000000",
			},
		},
	}

	err := storage.SetState(ctx, userState.UserID, userState)
	assert.NoError(t, err)

	result, err := storage.GetState(ctx, userState.UserID)
	assert.NoError(t, err)
	if assert.NotNil(t, result) {
		assert.Equal(t, userState.UserID, result.UserID)
		assert.Equal(t, userState.CurrentState, result.CurrentState)
		if assert.NotNil(t, result.Flow) && assert.NotNil(t, result.Flow.Buy) {
			assert.Equal(t, FlowKindBuy, result.Flow.Kind)
			assert.Equal(t, userState.Flow.Buy.AmountIn, result.Flow.Buy.AmountIn)
			assert.Equal(t, userState.Flow.Buy.QuoteOut, result.Flow.Buy.QuoteOut)
		}
	}
}

func TestRedisStorage_GetNotFound(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	log := testLogger()
	storage := NewRedisStorage(client, log)

	ctx := context.Background()

	state, err := storage.GetState(ctx, 999)
	assert.Nil(t, state)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStorage_ClearState(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	log := testLogger()
	storage := NewRedisStorage(client, log)

	ctx := context.Background()
	userState := &UserState{
		UserID:       456,
		CurrentState: StateWithdrawAmount,
		Flow: &FlowData{
			Kind:     FlowKindWithdraw,
			Withdraw: &WithdrawFlow{ToAddress: "0x9fc3da866e7df3a1c57ade1a97c9f00a70f010c8"},
		},
	}

	err := storage.SetState(ctx, userState.UserID, userState)
	assert.NoError(t, err)

	err = storage.ClearState(ctx, userState.UserID)
	assert.NoError(t, err)

	state, err := storage.GetState(ctx, userState.UserID)
	assert.Nil(t, state)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStorage_GetAllStates(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	log := testLogger()
	storage := NewRedisStorage(client, log)

	ctx := context.Background()
	assert.NoError(t, storage.SetState(ctx, 1, &UserState{UserID: 1, CurrentState: StateIdle}))
	assert.NoError(t, storage.SetState(ctx, 2, &UserState{UserID: 2, CurrentState: StateSellAmount}))

	all, err := (storage.(*RedisStorage)).GetAllStates(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 2)
}
