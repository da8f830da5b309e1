// cmd/tradebot runs one live or paper trading session against Binance spot.
//
// Usage:
//
//	go run ./cmd/tradebot -coin=BTC -interval=1m -ordersize=0.001 \
//	    -strategy=macd -duration=4h -profit=25 -loss=-5 -paper
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptotrader/config"
	"cryptotrader/internal/bot"
	"cryptotrader/internal/exchange"
	"cryptotrader/internal/execution"
	"cryptotrader/internal/ledger"
	"cryptotrader/internal/logger"
	"cryptotrader/internal/metrics"
	"cryptotrader/internal/notification"
	redisstore "cryptotrader/internal/store/redis"
	"cryptotrader/internal/strategy"
)

func main() {
	coin := flag.String("coin", "BTC", "Base asset to trade (quote is USDT)")
	interval := flag.String("interval", "1m", "Kline interval (1m, 5m, 1h, ...)")
	orderSize := flag.Float64("ordersize", 0, "Order quantity in base asset units")
	duration := flag.Duration("duration", 0, "Session duration limit (0 = until interrupted)")
	profit := flag.Float64("profit", 25, "Take-profit threshold in percent")
	loss := flag.Float64("loss", -5, "Stop-loss threshold in percent (negative)")
	paper := flag.Bool("paper", true, "Paper trade (no real orders)")
	stratSpec := flag.String("strategy", "macd", "Strategy spec: macd[:long,short,signal] | tma[:long,mid,short] | random[:lower,upper]")
	paperPosition := flag.Float64("position", 0, "Paper starting position in base asset units")
	paperCash := flag.Float64("cash", 1000, "Paper starting cash in quote units")
	realBalance := flag.Bool("realbalance", false, "Seed the paper book from real account balances")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slogger := logger.Init("tradebot", level)

	if *orderSize <= 0 {
		log.Fatalf("[tradebot] -ordersize must be positive")
	}
	if *loss >= 0 {
		log.Fatalf("[tradebot] -loss must be negative, got %v", *loss)
	}

	strat, err := strategy.New(*stratSpec)
	if err != nil {
		log.Fatalf("[tradebot] invalid strategy: %v", err)
	}

	cfg := config.Load()
	if !*paper || *realBalance {
		cfg.RequireCredentials()
	}

	client := exchange.NewClient(exchange.Config{
		APIKey:    cfg.BinanceAPIKey,
		APISecret: cfg.BinanceAPISecret,
		BaseURL:   cfg.BinanceBaseURL,
	})
	stream := exchange.NewBarStream(cfg.BinanceStreamURL)

	// ---- Graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[tradebot] shutdown signal received")
		cancel()
	}()

	// ---- Metrics & health ----
	prom := metrics.New()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()
	stream.OnReconnect = prom.StreamRedials.Inc

	// ---- Commission rate from the exchange, fallback for keyless paper ----
	symbol := *coin + "USDT"
	commissionRate, err := client.TakerCommission(ctx, symbol)
	if err != nil {
		log.Printf("[tradebot] taker commission lookup failed: %v (using 0.075%%)", err)
		commissionRate = 0.00075
	}
	if commissionRate == 0 && *paper {
		// Keyless paper runs still model standard taker fees.
		commissionRate = 0.00075
	}

	book := ledger.New()
	exec := execution.New(client, book, execution.Config{
		PaperTrade:     *paper,
		CommissionRate: commissionRate,
	})

	// ---- SQLite trade journal (off hot path, best effort) ----
	os.MkdirAll("data", 0o755)
	journal, err := execution.NewJournal(cfg.JournalPath)
	if err != nil {
		log.Printf("[tradebot] WARNING: journal init failed: %v (continuing without)", err)
	} else {
		defer journal.Close()
		exec.SetJournal(journal)
		health.SetJournalOK(true)
	}

	trader := bot.New(bot.Config{
		Coin:           *coin,
		Interval:       *interval,
		OrderSize:      *orderSize,
		Duration:       *duration,
		ProfitPct:      *profit,
		LossPct:        *loss,
		PaperTrade:     *paper,
		PaperPosition:  *paperPosition,
		PaperCash:      *paperCash,
		UseRealBalance: *realBalance,
	}, client, stream, exec, book, strat, slogger)
	trader.SetMetrics(prom, health)

	// ---- Optional Redis bar publisher ----
	if cfg.RedisAddr != "" {
		publisher, err := redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[tradebot] WARNING: redis init failed: %v (continuing without)", err)
		} else {
			defer publisher.Close()
			trader.SetPublisher(publisher)
			health.SetRedisConnected(true)
		}
	}

	// ---- Optional Telegram alerts ----
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		trader.SetNotifier(notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		log.Println("[tradebot] telegram alerts enabled")
	}

	if err := trader.Run(ctx); err != nil {
		log.Printf("[tradebot] session ended with error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
	log.Println("[tradebot] shutdown complete.")
}
