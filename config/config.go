package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// Per-run trading parameters (coin, interval, order size, ...) come from flags.
type Config struct {
	// Binance credentials. Empty is fine for paper trading.
	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceBaseURL   string
	BinanceStreamURL string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	JournalPath   string
	MetricsAddr   string

	// Telegram alerts (optional)
	TelegramBotToken string
	TelegramChatID   string
}

// Load reads configuration from the environment with sensible defaults.
// A local .env file is loaded first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] skipping .env: %v", err)
	}

	return &Config{
		BinanceAPIKey:    getEnv("BINANCE_API_KEY", ""),
		BinanceAPISecret: getEnv("BINANCE_API_SECRET", ""),
		BinanceBaseURL:   getEnv("BINANCE_BASE_URL", ""),
		BinanceStreamURL: getEnv("BINANCE_STREAM_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		JournalPath:   getEnv("JOURNAL_PATH", "data/trades.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
	}
}

// RequireCredentials aborts unless Binance API credentials are present.
// Live trading and real-balance seeding need them; paper runs do not.
func (c *Config) RequireCredentials() {
	if c.BinanceAPIKey == "" || c.BinanceAPISecret == "" {
		log.Fatalf("[config] BINANCE_API_KEY and BINANCE_API_SECRET must be set for live trading")
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
