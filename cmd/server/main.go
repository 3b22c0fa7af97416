package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/web3-frozen/pair-dashboard/internal/archive"
	"github.com/web3-frozen/pair-dashboard/internal/config"
	"github.com/web3-frozen/pair-dashboard/internal/dedup"
	"github.com/web3-frozen/pair-dashboard/internal/handler"
	"github.com/web3-frozen/pair-dashboard/internal/middleware"
	"github.com/web3-frozen/pair-dashboard/internal/monitor"
	"github.com/web3-frozen/pair-dashboard/internal/monitor/sources"
	"github.com/web3-frozen/pair-dashboard/internal/push"
	"github.com/web3-frozen/pair-dashboard/internal/record"
	"github.com/web3-frozen/pair-dashboard/internal/runconfig"
	"github.com/web3-frozen/pair-dashboard/internal/telegram"
	"github.com/web3-frozen/pair-dashboard/internal/tickstore"
)

const runConfigFile = "dashboard_config.json"

func main() {
	bootTime := time.Now()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.ParseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run configuration saved by a previous process. Reloading it only
	// restores GET /api/config; polling waits for a new configuration call.
	holder := &runconfig.Holder{}
	savePath := filepath.Join(cfg.DataDir, runConfigFile)
	var target string
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	if saved, err := runconfig.LoadFile(savePath); err != nil {
		logger.Warn("ignoring saved run config", "path", savePath, "error", err)
	} else if saved != nil {
		holder.Store(*saved)
		target = saved.PairAddress
		logger.Info("restored run config", "pair", saved.PairAddress, "x_data_type", saved.Social.Kind)
	}

	// Tick log
	st, err := tickstore.Open(cfg.DataDir, target, cfg.Pipeline.Retention, logger)
	if err != nil {
		logger.Error("failed to open tick store", "error", err)
		os.Exit(1)
	}

	// Redis dedup (retry up to 30s for ExternalSecret to sync)
	var dd *dedup.Deduplicator
	if cfg.RedisURL != "" {
		for i := 0; i < 6; i++ {
			dd, err = dedup.New(cfg.RedisURL, cfg.RedisPassword, 24*time.Hour)
			if err == nil {
				break
			}
			logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
			time.Sleep(5 * time.Second)
		}
		if err != nil {
			logger.Error("failed to connect to redis after retries", "error", err)
			os.Exit(1)
		}
		defer dd.Close()
		logger.Info("redis connected for alert dedup")
	}

	// Optional Postgres mirror
	var arch *archive.Store
	if cfg.ArchiveURL != "" {
		arch, err = archive.New(ctx, cfg.ArchiveURL)
		if err != nil {
			logger.Error("failed to connect to archive database", "error", err)
			os.Exit(1)
		}
		defer arch.Close()
		if err := arch.Migrate(ctx); err != nil {
			logger.Error("failed to run archive migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("archive database connected and migrated")
	}

	// Upstream clients
	clients, err := upstreamClients(cfg)
	if err != nil {
		logger.Error("invalid upstream headers", "error", err)
		os.Exit(1)
	}

	prices := monitor.NewPriceCache(sources.NewCoinGecko(), logger)
	hub := push.NewHub(cfg.FrontendOrigin, logger)

	// Telegram bot
	var bot *telegram.Bot
	var alert monitor.AlertFunc
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		bot = telegram.NewBot(cfg.TelegramToken, cfg.TelegramChatID, statusReply(holder, st), logger)
		alert = bot.Notify
	} else {
		logger.Warn("telegram not configured, exit warnings will only be logged")
	}

	var deduper monitor.Deduper
	if dd != nil {
		deduper = dd
	}
	exit := monitor.NewExitMonitor(monitor.ExitThresholds{
		AbsFloor:  cfg.Pipeline.ExitAbsFloor,
		PeakRatio: cfg.Pipeline.ExitPeakRatio,
		Sustain:   cfg.Pipeline.ExitSustain,
	}, logger, alert, deduper)

	deps := monitor.Deps{
		Config:    holder,
		Social:    sources.NewX(clients.x),
		Search:    sources.NewXSearch(clients.x),
		Prices:    prices,
		Store:     st,
		Exit:      exit,
		Publisher: hub,
	}
	if arch != nil {
		deps.Archive = arch
	}
	sched := monitor.NewScheduler(deps, monitor.Options{
		FetchInterval:  cfg.Pipeline.FetchInterval,
		SearchInterval: cfg.Pipeline.SearchInterval,
		RetryDelay:     cfg.Pipeline.RetryDelay,
		FibFloor:       cfg.Pipeline.FibFloor,
	}, logger)
	sched.Register(record.VendorAxiom, sources.NewAxiom(clients.axiom))
	sched.Register(record.VendorAlpha, sources.NewAlpha(clients.alpha))

	if bot != nil {
		go bot.Run(ctx)
	}

	cfgDeps := handler.ConfigDeps{
		Holder:        holder,
		Pipeline:      sched,
		Prices:        prices,
		PriceInterval: cfg.Pipeline.PriceInterval,
		SavePath:      savePath,
		Run:           ctx,
		Logger:        logger,
	}
	ready := map[string]handler.Pinger{}
	if dd != nil {
		cfgDeps.Alerts = dd
		ready["redis"] = dd
	}
	if arch != nil {
		ready["archive"] = arch
	}

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(ready))
	r.Get("/ws", hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Post("/config", handler.PostConfig(cfgDeps))
		r.Get("/config", handler.GetConfig(holder))
		r.Get("/status", handler.Status(sched, holder, bootTime))
		r.Post("/toggle-search", handler.ToggleSearch(sched))
		r.Get("/x-data", handler.XData(holder))

		r.Get("/marketcap", handler.MarketCap(st, logger))
		r.Get("/buys-sells", handler.BuysSells(st, logger))
		r.Get("/holders", handler.Holders(st, logger))
		r.Get("/wallet-age", handler.WalletAge(st))
		r.Get("/social", handler.Social(st, logger))
		r.Get("/twitter-search", handler.TwitterSearch(st, logger))
		r.Get("/metrics", handler.Metrics(st))
		r.Get("/tokeninfo", handler.TokenInfo(st))
		r.Get("/data", handler.Latest(st))
		r.Get("/history", handler.History(st, logger))
		r.Get("/download", handler.Download(st, logger))
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Config calls run one upstream fetch; downloads stream whole logs.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "data_dir", cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	cancel()
	hub.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

type upstream struct {
	x, axiom, alpha *http.Client
}

func upstreamClients(cfg config.Config) (upstream, error) {
	var u upstream
	for _, c := range []struct {
		name string
		raw  string
		dst  **http.Client
	}{
		{"X_AUTH_HEADERS", cfg.XAuthHeaders, &u.x},
		{"AXIOM_AUTH_HEADERS", cfg.AxiomAuthHeaders, &u.axiom},
		{"ALPHA_AUTH_HEADERS", cfg.AlphaAuthHeaders, &u.alpha},
	} {
		h, err := config.ParseHeaders(c.raw)
		if err != nil {
			return upstream{}, fmt.Errorf("%s: %w", c.name, err)
		}
		*c.dst = sources.NewClient(h)
	}
	return u, nil
}

// statusReply renders the Telegram /status answer from the newest record.
func statusReply(holder *runconfig.Holder, st *tickstore.Store) telegram.StatusFunc {
	return func(context.Context) string {
		rc := holder.Load()
		if rc == nil {
			return "Not configured yet."
		}
		rec, ok := st.Tail()
		if !ok {
			return fmt.Sprintf("Pair %s (%s): no data yet.", rc.PairAddress, rc.MarketVendor)
		}
		p := rec.Platform
		return fmt.Sprintf("Pair %s (%s)\nMarket cap: $%s\nHolders: %d\nUpdated: %s",
			rc.PairAddress, rc.MarketVendor, monitor.FormatUSD(p.MarketCapUSD), p.NumHolders,
			rec.Timestamp.UTC().Format(time.RFC3339))
	}
}
