// Package execution validates and performs order fills, either against the
// exchange (live) or as simulated in-memory fills (paper trading), and
// applies the resulting fill to the session ledger.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"cryptotrader/internal/exchange"
	"cryptotrader/internal/ledger"
	"cryptotrader/internal/model"
)

// DefaultMinNotional is the smallest allowed order value in quote units.
const DefaultMinNotional = 10.0

// Venue is the slice of the exchange collaborator the executor consumes.
type Venue interface {
	// TickerPrice returns the instantaneous price (paper reference pricing).
	TickerPrice(ctx context.Context, symbol string) (float64, error)
	// NewMarketOrder submits a live market order.
	NewMarketOrder(ctx context.Context, symbol string, side model.Side, qty float64) (exchange.OrderConfirmation, error)
}

// Config configures the executor.
type Config struct {
	PaperTrade     bool
	CommissionRate float64 // taker rate applied to fills
	MinNotional    float64 // 0 uses DefaultMinNotional
}

// Executor performs fills and applies them to the ledger it references but
// does not own.
type Executor struct {
	venue   Venue
	ledger  *ledger.Ledger
	journal *Journal // optional
	cfg     Config

	// Hooks (optional, set externally) for metrics and notifications.
	OnFill   func(order model.Order)
	OnReject func(reason string)
}

// New creates an executor mutating the given ledger.
func New(venue Venue, l *ledger.Ledger, cfg Config) *Executor {
	if cfg.MinNotional == 0 {
		cfg.MinNotional = DefaultMinNotional
	}
	return &Executor{venue: venue, ledger: l, cfg: cfg}
}

// SetJournal attaches a trade journal recording every fill.
func (e *Executor) SetJournal(j *Journal) { e.journal = j }

// Execute validates and performs a market order at the configured
// commission rate. On success the fill has been applied to the ledger and
// recorded in the trade log; on an ExecutionError the ledger is untouched.
func (e *Executor) Execute(ctx context.Context, symbol string, side model.Side, qty float64) (model.Order, error) {
	return e.ExecuteWithCommission(ctx, symbol, side, qty, e.cfg.CommissionRate)
}

// ExecuteWithCommission is Execute with an explicit commission rate
// (liquidation orders are commission-free, matching the exchange crediting
// the fee elsewhere).
func (e *Executor) ExecuteWithCommission(ctx context.Context, symbol string, side model.Side, qty, commissionRate float64) (model.Order, error) {
	var (
		order model.Order
		err   error
	)
	if e.cfg.PaperTrade {
		order, err = e.paperFill(ctx, symbol, side, qty, commissionRate)
	} else {
		order, err = e.liveFill(ctx, symbol, side, qty, commissionRate)
	}
	if err != nil {
		var execErr *ExecutionError
		if errors.As(err, &execErr) {
			log.Printf("[executor] %s order rejected: %s (qty=%.6f)", side, execErr.Reason, qty)
			if e.OnReject != nil {
				e.OnReject(execErr.Reason)
			}
		}
		return model.Order{}, err
	}

	e.ledger.ApplyFill(order.Side, order.Price, order.Qty, commissionRate)
	e.ledger.RecordTrade(order)
	if e.journal != nil {
		if jerr := e.journal.Record(order); jerr != nil {
			log.Printf("[executor] journal write failed: %v", jerr)
		}
	}
	log.Printf("[executor] %s", order.String())
	if e.OnFill != nil {
		e.OnFill(order)
	}
	return order, nil
}

// paperFill simulates a fill at the current quoted price after validating
// it against the ledger. Validation happens before any state change; a
// rejected order leaves the ledger untouched.
func (e *Executor) paperFill(ctx context.Context, symbol string, side model.Side, qty, commissionRate float64) (model.Order, error) {
	price, err := e.venue.TickerPrice(ctx, symbol)
	if err != nil {
		return model.Order{}, fmt.Errorf("paper fill: %w", err)
	}

	switch {
	case price*qty <= e.cfg.MinNotional:
		return model.Order{}, &ExecutionError{Reason: ReasonTooSmall}
	case side == model.SideBuy && e.ledger.Cash() < qty*price:
		return model.Order{}, &ExecutionError{Reason: ReasonInsufficientFunds}
	case side == model.SideSell && e.ledger.Position() < qty:
		return model.Order{}, &ExecutionError{Reason: ReasonInsufficientPosition}
	}

	return model.Order{
		ID:         "PAPER-" + uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		Qty:        qty,
		Price:      price,
		Commission: qty * price * commissionRate,
		Time:       time.Now().UTC(),
	}, nil
}

// liveFill submits the order to the exchange and normalizes the
// confirmation: fill price is the filled notional over the filled quantity.
func (e *Executor) liveFill(ctx context.Context, symbol string, side model.Side, qty, commissionRate float64) (model.Order, error) {
	conf, err := e.venue.NewMarketOrder(ctx, symbol, side, qty)
	if err != nil {
		var exchErr *exchange.Error
		if errors.As(err, &exchErr) {
			return model.Order{}, &ExecutionError{Reason: exchErr.Message, Code: exchErr.Code}
		}
		return model.Order{}, fmt.Errorf("live fill: %w", err)
	}

	filledQty, err := strconv.ParseFloat(conf.ExecutedQty, 64)
	if err != nil || filledQty == 0 {
		return model.Order{}, fmt.Errorf("live fill: bad executed qty %q", conf.ExecutedQty)
	}
	notional, err := strconv.ParseFloat(conf.CummulativeQuoteQty, 64)
	if err != nil {
		return model.Order{}, fmt.Errorf("live fill: bad quote qty %q", conf.CummulativeQuoteQty)
	}
	price := notional / filledQty

	return model.Order{
		ID:         strconv.FormatInt(conf.OrderID, 10),
		Symbol:     conf.Symbol,
		Side:       side,
		Qty:        filledQty,
		Price:      price,
		Commission: filledQty * price * commissionRate,
		Time:       time.UnixMilli(conf.TransactTime).UTC(),
	}, nil
}
