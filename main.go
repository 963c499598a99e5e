package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"perp-trader/internal/api"
	"perp-trader/internal/engine"
	"perp-trader/internal/indicators"
	"perp-trader/internal/market"
	"perp-trader/internal/monitor"
	"perp-trader/internal/persistence"
	"perp-trader/internal/strategy"
	"perp-trader/pkg/config"
	"perp-trader/pkg/db"
	"perp-trader/pkg/exchanges/bingx"
	"perp-trader/pkg/exchanges/common"
	"perp-trader/pkg/logger"
)

var (
	flagDryRun   bool
	flagSymbols  string
	flagLogLevel string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "perp-trader",
		Short:         "Momentum trader for BingX perpetual swaps",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Trade against the in-process paper venue (overrides DRY_RUN)")
	rootCmd.PersistentFlags().StringVar(&flagSymbols, "symbols", "", "Symbol presets file (overrides SYMBOLS_FILE)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(depthCmd())
	rootCmd.AddCommand(tickerCmd())
	rootCmd.AddCommand(symbolsCmd())
	rootCmd.AddCommand(tokenCmd())
	return rootCmd
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagDryRun {
		cfg.DryRun = true
	}
	if flagSymbols != "" {
		cfg.SymbolsFile = flagSymbols
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	return logger.New(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	})
}

// venue is a gateway that can also quote latest prices.
type venue interface {
	common.Gateway
	common.PriceSource
}

// buildVenue returns the paper venue in dry-run mode and the BingX client otherwise.
// The returned start function launches background work such as clock sync.
func buildVenue(cfg *config.Config, log *logrus.Logger) (venue, func(context.Context)) {
	if cfg.DryRun {
		paper := market.NewPaperGateway(market.PaperConfig{}, logger.Component(log, "paper"))
		return paper, func(context.Context) {}
	}
	client := bingx.NewClient(bingx.Config{
		APIKey:    cfg.BingXAPIKey,
		APISecret: cfg.BingXAPISecret,
		BaseURL:   cfg.BingXBaseURL,
		Timeout:   cfg.HTTPTimeout,
		RateLimit: cfg.RateLimitRPS,
	}, logger.Component(log, "bingx"))
	return client, client.StartTimeSync
}

// loadSymbols reads the presets file, falling back to the built-in list when it does not exist.
func loadSymbols(path string) ([]common.SymbolConfig, error) {
	symbols, err := strategy.LoadSymbols(path)
	if errors.Is(err, os.ErrNotExist) {
		return strategy.DefaultSymbols(), nil
	}
	return symbols, err
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring loop and operator API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			return run(cfg, log)
		},
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, startVenue := buildVenue(cfg, log)
	startVenue(ctx)

	metrics := monitor.NewMetrics()
	engineCfg := engine.Config{
		Gateway:       gw,
		Metrics:       metrics,
		Log:           logger.Component(log, "engine"),
		Interval:      cfg.MonitorInterval,
		KlineInterval: cfg.KlineInterval,
		Lookback:      cfg.KlineLookback,
		KlineLimit:    cfg.KlineLimit,
		DepthLimit:    cfg.DepthLimit,
		Params:        indicators.Params{Fast: cfg.MACDFast, Slow: cfg.MACDSlow, Signal: cfg.MACDSignal},
		Debounce:      cfg.StrategyDebounce,
		DryRun:        cfg.DryRun,
	}

	var journalReader api.JournalReader
	if cfg.EnableJournal {
		database, err := db.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer database.Close()
		if err := db.ApplyMigrations(database); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}
		writer := persistence.NewBatchWriter(database, 100, time.Second, logger.Component(log, "journal"))
		defer writer.Close()
		engineCfg.Recorder = persistence.NewJournal(writer)
		journalReader = database.Queries()
		log.WithField("path", cfg.DBPath).Info("journal enabled")
	}

	orch, err := engine.NewOrchestrator(engineCfg)
	if err != nil {
		return err
	}

	symbols, err := loadSymbols(cfg.SymbolsFile)
	if err != nil {
		return fmt.Errorf("load symbols: %w", err)
	}
	for _, s := range symbols {
		if err := orch.AddSymbol(s); err != nil {
			log.WithError(err).WithField("symbol", s.Symbol).Warn("symbol rejected")
		}
	}

	alerts := &monitor.Monitor{
		Bus:  orch.Bus(),
		Sink: monitor.LogSink{Log: logger.Component(log, "alerts")},
		Log:  logger.Component(log, "monitor"),
	}
	alerts.Start(ctx)

	var httpSrv *http.Server
	if cfg.EnableAPI {
		server := api.NewServer(api.Options{
			Engine:    orch,
			Bus:       orch.Bus(),
			Metrics:   metrics,
			Journal:   journalReader,
			JWTSecret: cfg.JWTSecret,
			Log:       logger.Component(log, "api"),
		})
		httpSrv = &http.Server{Addr: cfg.APIAddr, Handler: server.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			log.WithField("addr", cfg.APIAddr).Info("operator api listening")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("operator api stopped")
			}
		}()
	}

	log.WithFields(logrus.Fields{
		"dry_run": cfg.DryRun,
		"symbols": len(orch.ListStatuses()),
	}).Info("perp-trader started")

	err = orch.RunMonitorLoop(ctx)

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	log.Info("perp-trader stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
