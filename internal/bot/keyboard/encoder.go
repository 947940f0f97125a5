package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// CallbackDataSeparator splits the action name from its payload.
	CallbackDataSeparator = ":"
	// CallbackDataLimitBytes is Telegram's hard cap on callback data.
	CallbackDataLimitBytes = 64
)

// EncodeCallback joins an action name and payload into callback data,
// enforcing the transport limit.
func EncodeCallback(action, payload string) (string, error) {
	data := action
	if payload != "" {
		data = action + CallbackDataSeparator + payload
	}

	if len(data) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(data))
	}

	return data, nil
}

// DecodeCallback splits callback data back into action and payload.
// Data without a separator decodes to a bare action.
func DecodeCallback(callbackData string) (action, payload string, err error) {
	if callbackData == "" {
		return "", "", errors.New("callback data is empty")
	}

	idx := strings.Index(callbackData, CallbackDataSeparator)
	if idx == -1 {
		return callbackData, "", nil
	}

	return callbackData[:idx], callbackData[idx+len(CallbackDataSeparator):], nil
}
