package model

import (
	"fmt"
	"time"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order is a finalized market-order fill. Live fills carry the quantities
// and price confirmed by the exchange; paper fills carry the requested
// quantity and the quoted reference price. Both normalize to this record.
type Order struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Qty        float64   `json:"qty"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"` // quote units paid on this fill
	Time       time.Time `json:"time"`
}

// Notional returns the quote-currency value of the fill.
func (o *Order) Notional() float64 {
	return o.Qty * o.Price
}

func (o *Order) String() string {
	return fmt.Sprintf("Order: %s %.4f %s at %.2f (%.2f total) %s",
		o.Side, o.Qty, o.Symbol, o.Price, o.Notional(), o.Time.Format("2006-01-02 15:04"))
}
