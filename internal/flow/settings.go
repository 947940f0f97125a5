package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/avdeyev/dexflow-bot/internal/domain"
	apperrors "github.com/avdeyev/dexflow-bot/internal/errors"
	"github.com/avdeyev/dexflow-bot/internal/state"
	"github.com/avdeyev/dexflow-bot/internal/validate"
)

// StartSlippage opens the slippage entry sub-flow.
func (e *Engine) StartSlippage(ctx context.Context, st *state.UserState) (*Response, error) {
	settings, err := e.deps.Settings.Settings(ctx, st.UserID)
	if err != nil {
		return e.finish(st, nil, err)
	}

	st.CurrentState = state.StateSettingsSlippage
	st.Flow = nil

	return &Response{
		Text:     fmt.Sprintf(msgAskSlippage, settings.SlippagePercent, settings.GasPriority),
		Keyboard: gasPriorityKeyboard(),
	}, nil
}

func (e *Engine) settingsSlippage(ctx context.Context, st *state.UserState, text string) (*Response, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || !validate.IsSlippagePercent(value) {
		return nil, apperrors.NewValidationError(msgInvalidSlippage)
	}

	settings, err := e.deps.Settings.Settings(ctx, st.UserID)
	if err != nil {
		return nil, err
	}

	settings.SlippagePercent = value
	if err := e.deps.Settings.UpdateSettings(ctx, st.UserID, settings); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	st.Reset()
	return &Response{Text: fmt.Sprintf(msgSlippageSaved, value)}, nil
}

// settingsGasPriority handles the priority buttons shown on the
// settings screen.
func (e *Engine) settingsGasPriority(ctx context.Context, st *state.UserState, data string) (*Response, error) {
	tier := strings.TrimPrefix(data, cbGasPrefix)
	if !validate.IsGasPriority(tier) {
		return nil, apperrors.NewValidationError(msgInvalidGasTier)
	}

	settings, err := e.deps.Settings.Settings(ctx, st.UserID)
	if err != nil {
		return nil, err
	}

	settings.GasPriority = domain.GasPriority(tier)
	if err := e.deps.Settings.UpdateSettings(ctx, st.UserID, settings); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	st.Reset()
	return &Response{Text: fmt.Sprintf(msgGasPrioritySaved, tier)}, nil
}

func gasPriorityKeyboard() [][]Button {
	return [][]Button{{
		{Label: "Low 🐢", Data: cbGasPrefix + string(domain.GasPriorityLow)},
		{Label: "Medium ⚖️", Data: cbGasPrefix + string(domain.GasPriorityMedium)},
		{Label: "High ⚡", Data: cbGasPrefix + string(domain.GasPriorityHigh)},
	}}
}
