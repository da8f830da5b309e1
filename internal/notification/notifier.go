// Package notification provides alert delivery to external channels
// (Telegram, plain logs) for trading events: fills, rejections and
// circuit-breaker exits.
package notification

import (
	"context"
	"fmt"
	"log"

	"cryptotrader/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// FillAlert describes a completed order fill.
func FillAlert(order model.Order) Alert {
	return Alert{
		Level:   AlertInfo,
		Title:   fmt.Sprintf("%s %s", order.Side, order.Symbol),
		Message: order.String(),
	}
}

// RejectionAlert describes a rejected order.
func RejectionAlert(symbol, reason string) Alert {
	return Alert{
		Level:   AlertWarning,
		Title:   "Order rejected " + symbol,
		Message: reason,
	}
}

// ExitAlert describes a circuit-breaker session exit.
func ExitAlert(reason string, returnPct float64) Alert {
	level := AlertInfo
	if reason == "Loss" {
		level = AlertCritical
	}
	return Alert{
		Level:   level,
		Title:   "Session exit: " + reason,
		Message: fmt.Sprintf("Current return: %.4f%%", returnPct),
	}
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}
