// Package redis publishes closed bars and the latest price to Redis so
// dashboards and other consumers can follow the session without touching
// the trading loop.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"cryptotrader/internal/model"
)

const (
	// Stream trimming: bounded history per symbol/interval.
	streamMaxLen     = 12000
	defaultPriceTTL  = 30 * time.Minute
	defaultOpTimeout = 2 * time.Second
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes closed bars and latest prices to Redis.
type Publisher struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a Publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// PublishBar appends a closed bar to the per-feed stream and refreshes the
// latest-price key. Failures are logged, never propagated: publishing is
// observability, not part of the trading decision path.
func (p *Publisher) PublishBar(ctx context.Context, bar model.Bar) {
	opCtx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()

	streamKey := "bars:" + bar.Key()
	err := p.client.XAdd(opCtx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"bar": string(bar.JSON())},
	}).Err()
	if err != nil {
		log.Printf("[redis] XADD %s failed: %v", streamKey, err)
		return
	}

	priceKey := "price:latest:" + bar.Symbol
	if err := p.client.Set(opCtx, priceKey, bar.Close, defaultPriceTTL).Err(); err != nil {
		log.Printf("[redis] SET %s failed: %v", priceKey, err)
	}
}

// Close releases the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
