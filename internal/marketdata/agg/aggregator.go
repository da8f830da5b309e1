// Package agg maintains the bounded window of closed bars fed to the
// strategies. It deduplicates retransmitted bars and evicts the oldest bar
// once the window is full, so the window stays memory-bounded under
// indefinite streaming and idempotent under duplicate delivery.
package agg

import (
	"cryptotrader/internal/model"
)

// DefaultMaxLen bounds the window when no explicit limit is configured.
const DefaultMaxLen = 10000

// Aggregator ingests raw bar updates into a bounded closed-bar window.
type Aggregator struct {
	maxLen int

	// Metrics hooks (optional, set externally)
	OnDuplicate func()
	OnForming   func()
}

// New creates an Aggregator with the given window bound. Non-positive
// values fall back to DefaultMaxLen.
func New(maxLen int) *Aggregator {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &Aggregator{maxLen: maxLen}
}

// Ingest incorporates one bar update into the window and reports whether
// the window changed. Forming (not yet closed) bars are ignored; a closed
// bar whose open time matches the window tail is a duplicate retransmission
// and is dropped. On append past the bound the oldest bar is evicted.
func (a *Aggregator) Ingest(bar model.Bar, window []model.Bar) ([]model.Bar, bool) {
	if !bar.Closed {
		if a.OnForming != nil {
			a.OnForming()
		}
		return window, false
	}

	if n := len(window); n > 0 && window[n-1].OpenTime.Equal(bar.OpenTime) {
		if a.OnDuplicate != nil {
			a.OnDuplicate()
		}
		return window, false
	}

	window = append(window, bar)
	if len(window) > a.maxLen {
		window = window[1:]
	}
	return window, true
}
