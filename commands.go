package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"perp-trader/internal/api"
	"perp-trader/internal/engine"
	"perp-trader/internal/strategy"
	"perp-trader/pkg/config"
	"perp-trader/pkg/exchanges/common"
	"perp-trader/pkg/logger"
)

// oneShot loads config and a venue for commands that make a single call.
func oneShot() (*config.Config, venue, context.Context, context.CancelFunc, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	gw, _ := buildVenue(cfg, log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout*3)
	return cfg, gw, ctx, func() { cancel(); stop() }, nil
}

func orderCmd() *cobra.Command {
	var price float64
	cmd := &cobra.Command{
		Use:   "order <symbol> <buy|sell>",
		Short: "Place a single MinQty market order with TP/SL attached",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := strings.ToUpper(args[0])
			side, ok := common.ParseSide(args[1])
			if !ok {
				return fmt.Errorf("invalid side %q (want buy or sell)", args[1])
			}

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
			gw, _ := buildVenue(cfg, log)

			presets, err := loadSymbols(cfg.SymbolsFile)
			if err != nil {
				return fmt.Errorf("load symbols: %w", err)
			}
			var preset *common.SymbolConfig
			for i := range presets {
				if presets[i].Symbol == symbol {
					preset = &presets[i]
					break
				}
			}
			if preset == nil {
				return fmt.Errorf("%s: %w", symbol, common.ErrUnknownSymbol)
			}

			orch, err := engine.NewOrchestrator(engine.Config{
				Gateway: gw,
				Log:     logger.Component(log, "engine"),
				DryRun:  cfg.DryRun,
			})
			if err != nil {
				return err
			}
			if err := orch.AddSymbol(*preset); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout*3)
			defer cancel()
			if price <= 0 {
				if price, err = orch.ResolvePrice(ctx, symbol); err != nil {
					return err
				}
			}
			out, err := orch.PlaceOrder(ctx, symbol, side, price)
			if err != nil {
				return err
			}

			fmt.Printf("order %s %s %s\n", out.Result.OrderID, side, symbol)
			fmt.Printf("  status:      %s\n", out.Result.Status)
			fmt.Printf("  qty:         %g\n", preset.MinQty)
			fmt.Printf("  ref price:   %g\n", price)
			fmt.Printf("  take profit: %g\n", out.Bounds.TakeProfit)
			fmt.Printf("  stop loss:   %g\n", out.Bounds.StopLoss)
			return nil
		},
	}
	cmd.Flags().Float64Var(&price, "price", 0, "Reference price (default: venue latest price)")
	return cmd
}

func depthCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "depth <symbol>",
		Short: "Show the top of the order book and near-price pressure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := strings.ToUpper(args[0])
			cfg, gw, ctx, done, err := oneShot()
			if err != nil {
				return err
			}
			defer done()

			book, err := gw.GetDepth(ctx, symbol, cfg.DepthLimit)
			if err != nil {
				return err
			}
			ref, err := gw.GetLatestPrice(ctx, symbol)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s depth @ %g\n", symbol, ref)
			fmt.Fprintln(w, "ASK PRICE\tQTY")
			asks := book.Asks
			if len(asks) > limit {
				asks = asks[:limit]
			}
			for i := len(asks) - 1; i >= 0; i-- {
				fmt.Fprintf(w, "%g\t%g\n", asks[i].Price, asks[i].Qty)
			}
			fmt.Fprintln(w, "BID PRICE\tQTY")
			for i, lv := range book.Bids {
				if i >= limit {
					break
				}
				fmt.Fprintf(w, "%g\t%g\n", lv.Price, lv.Qty)
			}
			w.Flush()

			p := strategy.MeasureDepth(book, ref)
			buy, sell := strategy.AnalyzeDepth(book, ref)
			fmt.Printf("near-price bids %.4f asks %.4f (buy ratio %.2f, sell ratio %.2f)\n",
				p.BidVolume, p.AskVolume, p.BuyRatio, p.SellRatio)
			fmt.Printf("strong buy: %t  strong sell: %t\n", buy, sell)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "Levels to print per side")
	return cmd
}

func tickerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ticker <symbol>",
		Short: "Show 24h statistics and the ticker confirmation verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := strings.ToUpper(args[0])
			_, gw, ctx, done, err := oneShot()
			if err != nil {
				return err
			}
			defer done()

			ts, err := gw.GetTicker(ctx, symbol)
			if err != nil {
				return err
			}
			if len(ts) == 0 {
				return fmt.Errorf("%s: empty ticker response", symbol)
			}
			t := ts[0]
			for _, cand := range ts {
				if cand.Symbol == symbol {
					t = cand
					break
				}
			}

			st := strategy.MeasureTicker(t)
			bull, bear := strategy.AnalyzeTicker(t)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "symbol\t%s\n", t.Symbol)
			fmt.Fprintf(w, "last\t%g\n", t.Last)
			fmt.Fprintf(w, "high / low\t%g / %g\n", t.High, t.Low)
			fmt.Fprintf(w, "bid / ask\t%g / %g\n", t.Bid, t.Ask)
			fmt.Fprintf(w, "change 24h\t%.3f%%\n", st.ChangePercent)
			fmt.Fprintf(w, "spread\t%.4f%%\n", st.Spread)
			fmt.Fprintf(w, "range position\t%.2f%%\n", st.Position)
			fmt.Fprintf(w, "volatility\t%.3f%%\n", st.Volatility)
			fmt.Fprintf(w, "average price\t%g\n", st.AveragePrice)
			fmt.Fprintf(w, "volume\t%g\n", t.Volume)
			fmt.Fprintf(w, "bullish / bearish\t%t / %t\n", bull, bear)
			return w.Flush()
		},
	}
}

func symbolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List symbol presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			symbols, err := loadSymbols(cfg.SymbolsFile)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOL\tBASE\tQUOTE\tMIN QTY\tPRICE PREC\tQTY PREC\tMIN NOTIONAL\tLEVERAGE")
			for _, s := range symbols {
				fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%d\t%d\t%g\t%d\n",
					s.Symbol, s.BaseAsset, s.QuoteAsset, s.MinQty, s.PricePrecision, s.QtyPrecision, s.MinNotional, s.Leverage)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the built-in presets to the symbols file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.SymbolsFile); err == nil {
				return fmt.Errorf("%s already exists", cfg.SymbolsFile)
			}
			if err := strategy.WriteSymbols(cfg.SymbolsFile, strategy.DefaultSymbols()); err != nil {
				return err
			}
			fmt.Printf("wrote %d presets to %s\n", len(strategy.DefaultSymbols()), cfg.SymbolsFile)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <symbol,base,quote,minQty,pricePrec,qtyPrec,minNotional,leverage>",
		Short: "Add or replace a preset in the symbols file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := strategy.ParseSymbolConfig(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			symbols, err := loadSymbols(cfg.SymbolsFile)
			if err != nil {
				return err
			}
			replaced := false
			for i := range symbols {
				if symbols[i].Symbol == entry.Symbol {
					symbols[i] = entry
					replaced = true
				}
			}
			if !replaced {
				symbols = append(symbols, entry)
			}
			if err := strategy.WriteSymbols(cfg.SymbolsFile, symbols); err != nil {
				return err
			}
			fmt.Printf("saved %s to %s\n", entry.Symbol, cfg.SymbolsFile)
			return nil
		},
	})
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		operator string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator API token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is empty")
			}
			token, exp, err := api.GenerateToken(operator, cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "admin", "Operator name embedded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 72*time.Hour, "Token lifetime")
	return cmd
}
