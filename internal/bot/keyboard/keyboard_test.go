package keyboard

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeyev/dexflow-bot/internal/flow"
)

func testBuilder() *Builder {
	return NewBuilder(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEncodeCallback(t *testing.T) {
	tests := []struct {
		name      string
		action    string
		payload   string
		want      string
		wantError bool
	}{
		{name: "with payload", action: "history", payload: "2", want: "history:2"},
		{name: "without payload", action: "confirm", want: "confirm"},
		{name: "over limit", action: "token", payload: strings.Repeat("f", 70), wantError: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EncodeCallback(tc.action, tc.payload)
			if tc.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeCallback(t *testing.T) {
	action, payload, err := DecodeCallback("history:3")
	require.NoError(t, err)
	assert.Equal(t, "history", action)
	assert.Equal(t, "3", payload)

	action, payload, err = DecodeCallback("confirm")
	require.NoError(t, err)
	assert.Equal(t, "confirm", action)
	assert.Empty(t, payload)

	// Token callbacks keep the address intact after the first separator.
	action, payload, err = DecodeCallback("token:0x6b175474e89094c44da98b954eedeac495271d0f")
	require.NoError(t, err)
	assert.Equal(t, "token", action)
	assert.Equal(t, "0x6b175474e89094c44da98b954eedeac495271d0f", payload)

	_, _, err = DecodeCallback("")
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	markup := testBuilder().Render([][]flow.Button{
		{{Label: "Confirm", Data: "confirm"}, {Label: "Cancel", Data: "cancel"}},
		{{Label: "DAI", Data: "token:0x6b175474e89094c44da98b954eedeac495271d0f"}},
	})

	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "confirm", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "Cancel", markup.InlineKeyboard[0][1].Text)
	assert.Equal(t, "token:0x6b175474e89094c44da98b954eedeac495271d0f", markup.InlineKeyboard[1][0].Data)
}

func TestRenderDropsOversizedButtons(t *testing.T) {
	markup := testBuilder().Render([][]flow.Button{
		{{Label: "bad", Data: strings.Repeat("x", 80)}},
	})
	assert.Nil(t, markup)
}

func TestRenderEmpty(t *testing.T) {
	assert.Nil(t, testBuilder().Render(nil))
}

func TestPaginationButtons(t *testing.T) {
	t.Run("middle page", func(t *testing.T) {
		buttons := PaginationButtons("hist", 2, 4)
		require.Len(t, buttons, 3)
		assert.Equal(t, "hist:1", buttons[0].Data)
		assert.Equal(t, "Page 2/4", buttons[1].Text)
		assert.Equal(t, "hist:3", buttons[2].Data)
	})

	t.Run("first page", func(t *testing.T) {
		buttons := PaginationButtons("hist", 1, 3)
		require.Len(t, buttons, 2)
		assert.Equal(t, "Page 1/3", buttons[0].Text)
		assert.Equal(t, "hist:2", buttons[1].Data)
	})

	t.Run("single page", func(t *testing.T) {
		buttons := PaginationButtons("hist", 1, 1)
		require.Len(t, buttons, 1)
	})

	t.Run("out of range clamps", func(t *testing.T) {
		buttons := PaginationButtons("hist", 9, 2)
		require.Len(t, buttons, 2)
		assert.Equal(t, "Page 2/2", buttons[1].Text)
	})
}
