package execution

import "fmt"

// Rejection reasons produced by paper-order pre-validation.
const (
	ReasonTooSmall             = "order too small"
	ReasonInsufficientFunds    = "insufficient funds"
	ReasonInsufficientPosition = "insufficient position"
)

// ExecutionError is a recoverable order failure: it is logged and counted,
// no fill is applied, and the session continues to the next bar. It is the
// single kind external exchange failures are converted into.
type ExecutionError struct {
	Reason string
	Code   int // exchange error code, 0 for local pre-validation
}

func (e *ExecutionError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("execution: %s (code=%d)", e.Reason, e.Code)
	}
	return "execution: " + e.Reason
}
