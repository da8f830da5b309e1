package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamReadDeadline     = 3 * time.Minute
	streamReconnectDelay   = 2 * time.Second
	streamMaxReconnectWait = 30 * time.Second
)

// BarStream subscribes to the exchange kline stream and hands every raw
// frame to a single consumer callback. Delivery order is chronological; a
// forming bar may be retransmitted many times before it closes.
type BarStream struct {
	url    string
	dialer *websocket.Dialer

	// OnReconnect is an optional metrics hook, fired per redial attempt.
	OnReconnect func()
}

// NewBarStream creates a stream client for the given WebSocket URL.
// An empty URL uses the production endpoint.
func NewBarStream(url string) *BarStream {
	if url == "" {
		url = defaultStreamURL
	}
	return &BarStream{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Run connects, subscribes to the symbol/interval kline stream and invokes
// handler for every incoming frame on this goroutine. Lost connections are
// redialed with capped backoff. Blocks until ctx is cancelled (returns nil)
// or the initial dial fails (returns the error).
func (s *BarStream) Run(ctx context.Context, symbol, interval string, handler func(raw []byte)) error {
	delay := streamReconnectDelay
	everConnected := false
	for {
		connected, err := s.runOnce(ctx, symbol, interval, handler)
		everConnected = everConnected || connected
		if ctx.Err() != nil {
			return nil
		}
		if !everConnected {
			// A dial that never connects is a configuration problem.
			return err
		}
		log.Printf("[stream] connection lost: %v, redialing in %v", err, delay)
		if s.OnReconnect != nil {
			s.OnReconnect()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > streamMaxReconnectWait {
			delay = streamMaxReconnectWait
		}
	}
}

func (s *BarStream) runOnce(ctx context.Context, symbol, interval string, handler func(raw []byte)) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("bar stream: dial %s: %w", s.url, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(streamReadDeadline))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(streamReadDeadline))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	sub, _ := json.Marshal(map[string]any{
		"method": "SUBSCRIBE",
		"params": []string{strings.ToLower(symbol) + "@kline_" + interval},
		"id":     1,
	})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return true, fmt.Errorf("bar stream: subscribe %s/%s: %w", symbol, interval, err)
	}
	log.Printf("[stream] subscribed to %s@kline_%s", strings.ToLower(symbol), interval)

	// Unblock the read loop when the session ends.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, fmt.Errorf("bar stream: read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(streamReadDeadline))
		handler(raw)
	}
}
