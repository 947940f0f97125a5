package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError classifies failures the flow engine can produce. Recoverable
// errors re-prompt the current state; everything else aborts the active
// flow and clears its data.
type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Recoverable bool
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// NewValidationError reports malformed user input: a bad address, amount
// or key. The flow stays in its current state and re-prompts.
func NewValidationError(userMsg string) *AppError {
	return &AppError{
		Code:        "E100",
		Message:     fmt.Sprintf("validation failed: %s", userMsg),
		UserMessage: userMsg,
		Severity:    SeverityLow,
		Recoverable: true,
	}
}

// NewInsufficientFundsError reports a balance or fee shortfall. Like
// validation errors it re-prompts the same state.
func NewInsufficientFundsError(userMsg string) *AppError {
	return &AppError{
		Code:        "E110",
		Message:     fmt.Sprintf("insufficient funds: %s", userMsg),
		UserMessage: userMsg,
		Severity:    SeverityLow,
		Recoverable: true,
	}
}

// NewSessionExpiredError reports flow data missing fields the current
// state requires, typically a stale state replayed by the client. The
// flow resets to idle.
func NewSessionExpiredError(field string) *AppError {
	return &AppError{
		Code:        "E120",
		Message:     fmt.Sprintf("session expired: missing flow field %q", field),
		UserMessage: "Your session has expired. Please start over.",
		Severity:    SeverityMedium,
		Recoverable: false,
	}
}

// NewExternalServiceError reports a quote, gas, chain or execution
// provider failure. The flow aborts; the cause is logged, never shown.
func NewExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Message:     fmt.Sprintf("external service %s failed", service),
		UserMessage: "A service we depend on is temporarily unavailable. Please try again later.",
		Severity:    SeverityHigh,
		Recoverable: false,
		Retryable:   true,
		cause:       cause,
	}
}

// NewApprovalFailedError reports that the token approval transaction
// failed or left the allowance short. The swap is never attempted.
func NewApprovalFailedError(cause error) *AppError {
	return &AppError{
		Code:        "E310",
		Message:     "token approval failed",
		UserMessage: "Token approval failed, the trade was not executed. Please try again later.",
		Severity:    SeverityHigh,
		Recoverable: false,
		cause:       cause,
	}
}

// NewDatabaseError reports a persistence failure.
func NewDatabaseError(cause error) *AppError {
	var detail string
	if cause != nil {
		detail = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Message:     fmt.Sprintf("database error: %s", detail),
		UserMessage: "A temporary problem occurred. Please try again later.",
		Severity:    SeverityHigh,
		Recoverable: false,
		Retryable:   true,
		cause:       cause,
	}
}

// NewStateError reports input that the current flow state cannot accept.
func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        "E400",
		Message:     msg,
		UserMessage: "That action is not available right now.",
		Severity:    SeverityMedium,
		Recoverable: true,
	}
}
