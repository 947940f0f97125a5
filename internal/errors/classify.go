package errors

import "errors"

// IsRecoverable reports whether the error re-prompts the current flow
// state instead of aborting the flow.
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}

	return false
}
