package model

import (
	"encoding/json"
	"time"
)

// Bar represents one OHLCV candlestick for a symbol/interval pair.
// A bar is immutable once Closed is true. Bars are ordered by close time;
// the uniqueness key within a window is the open time.
type Bar struct {
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"` // base-asset volume
	Trades    int64     `json:"trades"`
	Closed    bool      `json:"closed"`
}

// Key returns a unique key for this bar's feed: "symbol:interval".
func (b *Bar) Key() string {
	return b.Symbol + ":" + b.Interval
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	data, _ := json.Marshal(b)
	return data
}

// Closes extracts the close-price series from a bar window, oldest first.
func Closes(bars []Bar) []float64 {
	prices := make([]float64, len(bars))
	for i := range bars {
		prices[i] = bars[i].Close
	}
	return prices
}
