package exchange

import "fmt"

// Error is an exchange-reported failure, carrying the HTTP status and the
// exchange's own error code alongside the message.
type Error struct {
	StatusCode int    `json:"status_code"`
	Code       int    `json:"code"`
	Message    string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("exchange: %s (status=%d code=%d)", e.Message, e.StatusCode, e.Code)
}
