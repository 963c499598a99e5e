package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trader.
type Config struct {
	// BingX
	BingXAPIKey    string
	BingXAPISecret string
	BingXBaseURL   string
	HTTPTimeout    time.Duration
	RateLimitRPS   float64

	// Execution
	DryRun bool

	// Monitoring loop
	MonitorInterval time.Duration
	KlineInterval   string
	KlineLookback   time.Duration
	KlineLimit      int
	DepthLimit      int

	// Indicator / strategy
	MACDFast         int
	MACDSlow         int
	MACDSignal       int
	StrategyDebounce bool

	// Symbols
	SymbolsFile string

	// Journal
	DBPath        string
	EnableJournal bool

	// Operator API
	APIAddr   string
	EnableAPI bool
	JWTSecret string

	// Logging
	LogLevel string
	LogFile  string
}

// ErrMissingCredentials is returned by Validate when live trading lacks API keys.
var ErrMissingCredentials = errors.New("BINGX_API_KEY and BINGX_API_SECRET are required unless DRY_RUN=true")

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		BingXAPIKey:      os.Getenv("BINGX_API_KEY"),
		BingXAPISecret:   os.Getenv("BINGX_API_SECRET"),
		BingXBaseURL:     getEnv("BINGX_BASE_URL", "https://open-api-vst.bingx.com"),
		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		RateLimitRPS:     getEnvFloat("RATE_LIMIT_RPS", 10),
		DryRun:           getEnvBool("DRY_RUN", false),
		MonitorInterval:  getEnvDuration("MONITOR_INTERVAL", 60*time.Second),
		KlineInterval:    getEnv("KLINE_INTERVAL", "5m"),
		KlineLookback:    getEnvDuration("KLINE_LOOKBACK", 2*time.Hour),
		KlineLimit:       getEnvInt("KLINE_LIMIT", 24),
		DepthLimit:       getEnvInt("DEPTH_LIMIT", 20),
		MACDFast:         getEnvInt("MACD_FAST", 12),
		MACDSlow:         getEnvInt("MACD_SLOW", 26),
		MACDSignal:       getEnvInt("MACD_SIGNAL", 9),
		StrategyDebounce: getEnvBool("STRATEGY_DEBOUNCE", false),
		SymbolsFile:      getEnv("SYMBOLS_FILE", "symbols.yaml"),
		DBPath:           getEnv("DB_PATH", "./data/journal.db"),
		EnableJournal:    getEnvBool("ENABLE_JOURNAL", true),
		APIAddr:          getEnv("API_ADDR", ":8080"),
		EnableAPI:        getEnvBool("ENABLE_API", true),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret"),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:          getEnv("LOG_FILE", ""),
	}, nil
}

// Validate checks settings required to trade live.
func (c *Config) Validate() error {
	if !c.DryRun && (c.BingXAPIKey == "" || c.BingXAPISecret == "") {
		return ErrMissingCredentials
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
