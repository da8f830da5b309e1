// Package indicator provides technical indicator calculations over ordered
// price series (SMA, EMA, MACD, RSI).
//
// All functions are pure and deterministic: the output slice is aligned
// index-for-index with the input, with leading positions set to NaN where
// the window is not yet filled. Callers test definedness with Defined.
package indicator

import "math"

// Undefined is the sentinel for positions where an indicator has no value.
func Undefined() float64 { return math.NaN() }

// Defined reports whether an indicator value is defined at a position.
func Defined(v float64) bool { return !math.IsNaN(v) }
