// cmd/backtest replays a strategy over recent Binance spot history with
// paper execution to evaluate it before any live session.
//
// Usage:
//
//	go run ./cmd/backtest -coin=BTC -interval=1h -periods=500 \
//	    -ordersize=0.01 -cash=1000 -strategy=macd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cryptotrader/config"
	"cryptotrader/internal/backtest"
	"cryptotrader/internal/exchange"
	"cryptotrader/internal/logger"
	"cryptotrader/internal/strategy"
)

func main() {
	coin := flag.String("coin", "BTC", "Base asset to trade (quote is USDT)")
	interval := flag.String("interval", "1h", "Kline interval (1m, 5m, 1h, ...)")
	periods := flag.Int("periods", 500, "Number of historical bars to replay")
	orderSize := flag.Float64("ordersize", 0, "Order quantity in base asset units")
	position := flag.Float64("position", 0, "Starting position in base asset units")
	cash := flag.Float64("cash", 1000, "Starting cash in quote units")
	commission := flag.Float64("commission", 0.00075, "Taker commission rate")
	stratSpec := flag.String("strategy", "macd", "Strategy spec: macd[:long,short,signal] | tma[:long,mid,short] | random[:lower,upper]")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slogger := logger.Init("backtest", level)

	strat, err := strategy.New(*stratSpec)
	if err != nil {
		log.Fatalf("[backtest] invalid strategy: %v", err)
	}

	cfg := config.Load()
	client := exchange.NewClient(exchange.Config{
		APIKey:    cfg.BinanceAPIKey,
		APISecret: cfg.BinanceAPISecret,
		BaseURL:   cfg.BinanceBaseURL,
	})

	sim, err := backtest.New(backtest.Config{
		Coin:           *coin,
		Interval:       *interval,
		Periods:        *periods,
		OrderSize:      *orderSize,
		Position:       *position,
		Cash:           *cash,
		CommissionRate: *commission,
	}, client, strat, slogger)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	res, err := sim.Run(ctx)
	if err != nil {
		log.Fatalf("[backtest] replay failed: %v", err)
	}

	fmt.Println()
	fmt.Printf("strategy:        %s\n", strat.Name())
	fmt.Printf("symbol:          %sUSDT @ %s, %d bars\n", *coin, *interval, *periods)
	fmt.Printf("initial wealth:  %.2f\n", res.InitWealth)
	fmt.Printf("final wealth:    %.2f\n", res.FinalWealth)
	fmt.Printf("return:          %.2f (%.2f%%)\n", res.Return, res.ReturnPct)
	fmt.Printf("orders:          %d filled, %d rejected\n", len(res.Trades), res.Rejected)
	for _, trade := range res.Trades {
		fmt.Printf("  %s\n", trade.String())
	}
}
