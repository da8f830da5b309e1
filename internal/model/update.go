package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// UpdateKind discriminates decoded stream payloads. The transport boundary
// decodes raw frames into exactly one of these kinds so the trading loop
// never inspects untyped maps.
type UpdateKind int

const (
	// UpdateBar is a kline event (the bar may still be forming).
	UpdateBar UpdateKind = iota
	// UpdateKeepAlive is a subscription acknowledgement, safe to ignore.
	UpdateKeepAlive
	// UpdateUnknown is anything else; treated as a fatal transport error.
	UpdateUnknown
)

// StreamUpdate is one decoded frame from the exchange bar stream.
type StreamUpdate struct {
	Kind UpdateKind
	Bar  Bar
}

// wsKline mirrors the Binance kline payload. Prices arrive as strings.
type wsKline struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Trades    int64  `json:"n"`
	Closed    bool   `json:"x"`
}

type wsEnvelope struct {
	Event string `json:"e"`
	// EventTime exists so the numeric "E" key has an exact match; without
	// it, Go's case-insensitive field matching decodes "E" into Event and
	// fails the whole unmarshal.
	EventTime int64           `json:"E"`
	Kline     *wsKline        `json:"k"`
	Result    json.RawMessage `json:"result"`
	ID        *int64          `json:"id"`
}

// DecodeUpdate classifies one raw stream frame. Kline events become
// UpdateBar, subscription acks become UpdateKeepAlive and everything else
// (including malformed JSON) is UpdateUnknown.
func DecodeUpdate(raw []byte) StreamUpdate {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return StreamUpdate{Kind: UpdateUnknown}
	}

	if env.Event == "kline" && env.Kline != nil {
		k := env.Kline
		return StreamUpdate{
			Kind: UpdateBar,
			Bar: Bar{
				OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
				CloseTime: time.UnixMilli(k.CloseTime).UTC(),
				Symbol:    k.Symbol,
				Interval:  k.Interval,
				Open:      parsePrice(k.Open),
				High:      parsePrice(k.High),
				Low:       parsePrice(k.Low),
				Close:     parsePrice(k.Close),
				Volume:    parsePrice(k.Volume),
				Trades:    k.Trades,
				Closed:    k.Closed,
			},
		}
	}

	// Subscription ack: {"result":null,"id":1}
	if env.ID != nil {
		return StreamUpdate{Kind: UpdateKeepAlive}
	}

	return StreamUpdate{Kind: UpdateUnknown}
}

func parsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
