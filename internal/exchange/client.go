// Package exchange implements the Binance spot collaborator: REST calls
// for historic bars, prices, balances, commissions and market orders, and
// the WebSocket bar stream. The trading core only sees the interfaces it
// consumes; everything exchange-shaped stays behind this boundary.
package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cryptotrader/internal/model"
)

const (
	defaultBaseURL   = "https://api.binance.com"
	defaultStreamURL = "wss://stream.binance.com:9443/ws"
	defaultTimeout   = 7 * time.Second
)

// Config configures the REST client.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string // default: https://api.binance.com
	Timeout   time.Duration
}

// Client is a minimal Binance spot REST client. Signed endpoints use
// HMAC-SHA256 request signing over the query string.
type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a REST client. Unset fields fall back to defaults.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// OrderConfirmation is the exchange's response to a market order.
type OrderConfirmation struct {
	Symbol              string `json:"symbol"`
	OrderID             int64  `json:"orderId"`
	TransactTime        int64  `json:"transactTime"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status              string `json:"status"`
	Side                string `json:"side"`
}

// Balance is one asset's free/locked holding.
type Balance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// Klines fetches the most recent `limit` closed bars for symbol/interval,
// ending strictly before now (endTime is pulled back one minute so the
// forming bar is never included).
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]model.Bar, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("endTime", strconv.FormatInt(time.Now().UnixMilli()-60_000, 10))

	var rows [][]json.RawMessage
	if err := c.get(ctx, "/api/v3/klines", params, false, &rows); err != nil {
		return nil, fmt.Errorf("klines %s/%s: %w", symbol, interval, err)
	}

	bars := make([]model.Bar, 0, len(rows))
	for _, row := range rows {
		bar, err := klineRowToBar(row, symbol, interval)
		if err != nil {
			return nil, fmt.Errorf("klines %s/%s: %w", symbol, interval, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// TickerPrice returns the instantaneous price for a symbol.
func (c *Client) TickerPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := c.get(ctx, "/api/v3/ticker/price", params, false, &resp); err != nil {
		return 0, fmt.Errorf("ticker price %s: %w", symbol, err)
	}
	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("ticker price %s: parse %q: %w", symbol, resp.Price, err)
	}
	return price, nil
}

// NewMarketOrder submits a market order and returns the confirmation.
func (c *Client) NewMarketOrder(ctx context.Context, symbol string, side model.Side, qty float64) (OrderConfirmation, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(qty, 'f', -1, 64))

	var conf OrderConfirmation
	if err := c.post(ctx, "/api/v3/order", params, &conf); err != nil {
		return OrderConfirmation{}, err
	}
	return conf, nil
}

// AccountBalances returns all non-zero asset balances.
func (c *Client) AccountBalances(ctx context.Context) ([]Balance, error) {
	var resp struct {
		Balances []Balance `json:"balances"`
	}
	if err := c.get(ctx, "/api/v3/account", url.Values{}, true, &resp); err != nil {
		return nil, fmt.Errorf("account balances: %w", err)
	}

	nonZero := resp.Balances[:0]
	for _, b := range resp.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		if free != 0 || locked != 0 {
			nonZero = append(nonZero, b)
		}
	}
	return nonZero, nil
}

// CoinBalance returns the free balance of one asset, 0 if unheld.
func (c *Client) CoinBalance(ctx context.Context, asset string) (float64, error) {
	balances, err := c.AccountBalances(ctx)
	if err != nil {
		return 0, err
	}
	for _, b := range balances {
		if b.Asset == asset {
			free, err := strconv.ParseFloat(b.Free, 64)
			if err != nil {
				return 0, fmt.Errorf("coin balance %s: parse %q: %w", asset, b.Free, err)
			}
			return free, nil
		}
	}
	return 0, nil
}

// TakerCommission returns the taker fee rate for a symbol. The testnet has
// no trade-fee endpoint; exchange errors resolve to a zero rate.
func (c *Client) TakerCommission(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var fees []struct {
		Symbol          string `json:"symbol"`
		TakerCommission string `json:"takerCommission"`
	}
	if err := c.get(ctx, "/sapi/v1/asset/tradeFee", params, true, &fees); err != nil {
		var exchErr *Error
		if errors.As(err, &exchErr) {
			return 0, nil
		}
		return 0, fmt.Errorf("trade fee %s: %w", symbol, err)
	}
	for _, f := range fees {
		if f.Symbol == symbol {
			rate, err := strconv.ParseFloat(f.TakerCommission, 64)
			if err != nil {
				return 0, fmt.Errorf("trade fee %s: parse %q: %w", symbol, f.TakerCommission, err)
			}
			return rate, nil
		}
	}
	return 0, nil
}

// ---- request plumbing ----

func (c *Client) get(ctx context.Context, path string, params url.Values, signed bool, out any) error {
	return c.do(ctx, http.MethodGet, path, params, signed, out)
}

func (c *Client) post(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodPost, path, params, true, out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("signature", c.sign(params.Encode()))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &Error{StatusCode: resp.StatusCode, Message: string(body)}
		var payload struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Msg != "" {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Msg
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// klineRowToBar converts one REST kline row
// [openTime, open, high, low, close, volume, closeTime, quoteVol, trades, ...]
// into a closed Bar.
func klineRowToBar(row []json.RawMessage, symbol, interval string) (model.Bar, error) {
	if len(row) < 9 {
		return model.Bar{}, fmt.Errorf("kline row too short: %d fields", len(row))
	}

	var openTime, closeTime, trades int64
	var open, high, low, closePrice, volume string
	fields := []struct {
		idx int
		dst any
	}{
		{0, &openTime}, {1, &open}, {2, &high}, {3, &low},
		{4, &closePrice}, {5, &volume}, {6, &closeTime}, {8, &trades},
	}
	for _, f := range fields {
		if err := json.Unmarshal(row[f.idx], f.dst); err != nil {
			return model.Bar{}, fmt.Errorf("kline field %d: %w", f.idx, err)
		}
	}

	bar := model.Bar{
		OpenTime:  time.UnixMilli(openTime).UTC(),
		CloseTime: time.UnixMilli(closeTime).UTC(),
		Symbol:    symbol,
		Interval:  interval,
		Trades:    trades,
		Closed:    true,
	}
	for _, p := range []struct {
		s   string
		dst *float64
	}{
		{open, &bar.Open}, {high, &bar.High}, {low, &bar.Low},
		{closePrice, &bar.Close}, {volume, &bar.Volume},
	} {
		v, err := strconv.ParseFloat(p.s, 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("kline price %q: %w", p.s, err)
		}
		*p.dst = v
	}
	return bar, nil
}
