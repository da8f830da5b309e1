// Package ledger tracks the session's position, cash, commissions and
// derived wealth, and evaluates the profit/loss circuit breaker.
//
// Exactly one Ledger exists per trading or backtest session. It is mutated
// only through ApplyFill and the seeding operations; the executor receives
// a reference but does not own it. Mutation is serialized through a mutex
// to make the single-writer discipline explicit rather than incidental.
package ledger

import (
	"log"
	"sync"

	"cryptotrader/internal/model"
)

// Exit reasons reported by CheckProfitLoss.
const (
	ReasonProfit = "Profit"
	ReasonLoss   = "Loss"
)

// Ledger is the bookkeeping record of one trading session.
type Ledger struct {
	mu          sync.Mutex
	position    float64 // coin units held
	cash        float64 // quote-currency units
	commissions float64 // cumulative, monotonically non-decreasing
	initWealth  float64
	trades      []model.Order
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{trades: make([]model.Order, 0, 64)}
}

// Seed initializes the coin and cash positions. Valid only at session start
// or on explicit re-initialization.
func (l *Ledger) Seed(position, cash float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = position
	l.cash = cash
}

// ApplyFill applies a finalized order fill: BUY moves cash into position,
// SELL is the mirror. Commission accrues as qty*price*rate on both sides.
func (l *Ledger) ApplyFill(side model.Side, price, qty, commissionRate float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch side {
	case model.SideBuy:
		l.position += qty
		l.cash -= qty * price
	case model.SideSell:
		l.position -= qty
		l.cash += qty * price
	}
	l.commissions += qty * price * commissionRate
}

// RecordTrade appends a finalized order to the session trade log.
func (l *Ledger) RecordTrade(order model.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trades = append(l.trades, order)
}

// Value returns the current wealth at the given market price:
// cash + position*price - commissions.
func (l *Ledger) Value(price float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.valueLocked(price)
}

func (l *Ledger) valueLocked(price float64) float64 {
	return l.cash + l.position*price - l.commissions
}

// SnapshotInitial records the session's initial wealth at the given price.
func (l *Ledger) SnapshotInitial(price float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initWealth = l.valueLocked(price)
	return l.initWealth
}

// CheckProfitLoss evaluates the circuit breaker at the given price.
// profitPct is a positive percentage, lossPct a negative one. Returns
// whether the session should exit and the reason ("Profit" or "Loss").
func (l *Ledger) CheckProfitLoss(price, profitPct, lossPct float64) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ret := (l.valueLocked(price)/l.initWealth - 1) * 100
	if ret > profitPct {
		log.Printf("[ledger] profit target met at %.4f%%", ret)
		return true, ReasonProfit
	}
	if ret < lossPct {
		log.Printf("[ledger] stop loss met at %.4f%%", ret)
		return true, ReasonLoss
	}
	return false, ""
}

// Return reports the session return at the given price, absolute and as a
// percentage of initial wealth.
func (l *Ledger) Return(price float64) (abs, pct float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	wealth := l.valueLocked(price)
	return wealth - l.initWealth, (wealth/l.initWealth - 1) * 100
}

// Position returns the coin units held.
func (l *Ledger) Position() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

// Cash returns the quote-currency cash position.
func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// Commissions returns the cumulative commission paid.
func (l *Ledger) Commissions() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commissions
}

// InitWealth returns the initial-wealth snapshot.
func (l *Ledger) InitWealth() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initWealth
}

// Trades returns a snapshot of the session trade log, oldest first.
func (l *Ledger) Trades() []model.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make([]model.Order, len(l.trades))
	copy(cp, l.trades)
	return cp
}
