// Auction House — a distributed economic simulation: a central matcher
// runs a per-commodity double-sided order book, settles trades atomically
// against Fabric-held trader inventories, steps production once a tick,
// and assigns new traders to roles by market-driven weighted sampling
// (spec §4).
//
// Architecture:
//
//	main.go                    — entry point: loads config, wires Fabric, starts the house
//	auctionhouse/house.go      — tick loop: resolves every commodity's book each period
//	auctionhouse/resolve.go    — validate, match, settle, publish per commodity
//	auctionhouse/registration.go — Register/RequestShutdown handshake, role assignment
//	auctionhouse/production.go — per-trader recipe evaluation
//	trader/agent.go            — AI trader's per-tick offer generation and belief update
//	market/history.go          — bounded price/supply/volume series per commodity
//	fabric/                    — Fabric interface + in-memory and HTTP implementations
//	dashboard/                 — read-only HTTP/WebSocket market snapshot server
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/auctionhouse"
	"auctionhouse/internal/config"
	"auctionhouse/internal/dashboard"
	"auctionhouse/internal/fabric"
	"auctionhouse/internal/fabric/httpfabric"
	"auctionhouse/internal/fabric/inmemory"
	"auctionhouse/internal/trader"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("AUCTION_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	fab, inv, runFabric := buildFabric(*cfg, logger)

	house := auctionhouse.NewHouse(cfg, fab, inv, logger)
	for _, c := range trader.DefaultCommodities() {
		house.RegisterCommodity(c)
	}

	var dashServer *dashboard.Server
	if cfg.Dashboard.Enabled {
		dashServer = dashboard.NewServer(cfg.Dashboard, house, *cfg, logger)
		house.SetDashboardPublisher(dashboard.NewHubPublisher(dashServer.Hub()))
		go func() {
			if err := dashServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := runFabric(ctx); err != nil && ctx.Err() == nil {
			logger.Error("fabric event stream stopped", "error", err)
		}
	}()

	go func() {
		if err := house.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("auction house tick loop stopped", "error", err)
		}
	}()

	if cfg.Fabric.BaseURL == "" {
		spawnDemoFleet(ctx, fab, inv, house, cfg.Traders, cfg.Market, logger)
		logger.Info("demo fleet spawned", "size", cfg.Traders.FleetSize)
	}

	logger.Info("auction house started",
		"tick_period", cfg.Market.TickPeriod,
		"commodities", len(trader.DefaultCommodities()),
		"fabric", fabricKind(cfg.Fabric),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if dashServer != nil {
		if err := dashServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}
	cancel()
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildFabric selects the in-memory Fabric (no base_url configured — demo/
// dry-run mode) or the HTTP gateway client, and returns the event-stream
// runner appropriate to each (in-memory has nothing to run; HTTP runs its
// WebSocket command feed).
func buildFabric(cfg config.Config, logger *slog.Logger) (fabric.Fabric, fabric.InventoryStore, func(context.Context) error) {
	if cfg.Fabric.BaseURL == "" {
		f := inmemory.New()
		return f, f, func(ctx context.Context) error { <-ctx.Done(); return nil }
	}

	wsURL := cfg.Fabric.WSURL
	if wsURL == "" {
		wsURL = strings.Replace(strings.Replace(cfg.Fabric.BaseURL, "https://", "wss://", 1), "http://", "ws://", 1)
	}
	client := httpfabric.NewClient(cfg.Fabric.BaseURL, wsURL, cfg.Fabric.DryRun, logger)
	return client, client, client.RunEvents
}

func fabricKind(cfg config.FabricConfig) string {
	if cfg.BaseURL == "" {
		return "in-memory"
	}
	return "http"
}

// spawnDemoFleet registers FleetSize AI traders against the in-memory
// Fabric and runs each one's tick loop, letting the house's market-driven
// weighted role assignment populate the population from scratch (spec
// §4.5.1) — the bundled proof that the house and a real trader fleet
// interoperate without a network hop. Each agent is wired with the same
// InventoryStore and house the Fabric itself uses, so it mirrors its own
// inventory and the latest market snapshot once per tick (Agent.
// syncFromFabric) instead of trading blind.
func spawnDemoFleet(ctx context.Context, fab fabric.Fabric, inv fabric.InventoryStore, house *auctionhouse.House, tc config.TradersConfig, mc config.MarketConfig, logger *slog.Logger) {
	minPrice := decimal.NewFromFloat(mc.MinPrice)
	for i := 0; i < tc.FleetSize; i++ {
		agent := trader.NewAgent(fab, 0, inv, house, tc, minPrice, mc.TickPeriod, logger)
		go func(a *trader.Agent, n int) {
			if err := a.Register(ctx, ""); err != nil {
				logger.Error("demo trader registration failed", "index", n, "error", err)
				return
			}
			if err := a.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("demo trader stopped", "index", n, "error", err)
			}
		}(agent, i)
	}
}
