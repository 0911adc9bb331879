package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BranchManager69/degenduel-realtime/internal/auth"
	"github.com/BranchManager69/degenduel-realtime/internal/config"
	"github.com/BranchManager69/degenduel-realtime/internal/database"
	"github.com/BranchManager69/degenduel-realtime/internal/protocol"
	"github.com/BranchManager69/degenduel-realtime/internal/realtime"
	"github.com/BranchManager69/degenduel-realtime/internal/telemetry"
	"github.com/BranchManager69/degenduel-realtime/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/realtime.local.yaml", "path to config file")
	healthPort := flag.Int("health-port", 8080, "health endpoint port")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting feedd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"environment", cfg.Endpoint.Environment,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Telemetry: events always go to the log; with a Postgres host
	// configured they are batched into realtime_events as well.
	sink := telemetry.Sink(telemetry.NewLogSink(logger))
	var store *telemetry.Store
	if cfg.Telemetry.Postgres.Host != "" {
		logger.Info("connecting to telemetry database",
			"host", cfg.Telemetry.Postgres.Host,
			"database", cfg.Telemetry.Postgres.Name,
		)

		pool, err := database.Connect(ctx, cfg.Telemetry.Postgres)
		if err != nil {
			logger.Error("failed to connect to telemetry database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		storeCfg := telemetry.DefaultStoreConfig()
		storeCfg.InstanceID = cfg.Instance.ID
		if cfg.Telemetry.BatchSize > 0 {
			storeCfg.BatchSize = cfg.Telemetry.BatchSize
		}
		if cfg.Telemetry.FlushInterval > 0 {
			storeCfg.FlushInterval = cfg.Telemetry.FlushInterval
		}

		store = telemetry.NewStore(storeCfg, pool, logger)
		if err := store.Start(ctx); err != nil {
			logger.Error("failed to start telemetry store", "error", err)
			os.Exit(1)
		}
		sink = telemetry.MultiSink{telemetry.NewLogSink(logger), store}

		logger.Info("telemetry store started")
	}

	// Credentials: the session key comes from config (usually an env var);
	// the realtime token is minted over REST when a token URL is set.
	provider := auth.NewHTTPProvider(cfg.Auth.TokenURL, cfg.Auth.SessionKey,
		auth.WithLogger(logger),
		auth.WithTimeout(cfg.Auth.Timeout),
		auth.WithRetries(cfg.Auth.MaxRetries, time.Second),
	)
	resolver := auth.NewResolver(provider, logger)
	identity := auth.StaticIdentity{Logged: cfg.Auth.SessionKey != ""}

	// Connection manager
	mgr := realtime.NewManager(realtime.FromConfig(cfg), resolver, identity, sink, logger)
	defer mgr.Close()

	mgr.Subscribe(protocol.TopicPortfolio, protocol.TopicWallet, protocol.TopicNotification)

	mgr.RegisterListener("feedd-data",
		[]protocol.MessageType{protocol.TypeData},
		nil,
		func(env protocol.Envelope) {
			logger.Debug("data",
				"topic", string(env.Topic),
				"bytes", len(env.Data),
				"request_id", env.RequestID,
			)
		},
	)
	mgr.RegisterListener("feedd-system",
		[]protocol.MessageType{protocol.TypeSystem, protocol.TypeError},
		nil,
		func(env protocol.Envelope) {
			logger.Info("system message",
				"type", string(env.Type),
				"action", env.Action,
				"code", env.Code,
				"reason", env.Reason,
			)
		},
	)

	if err := mgr.Connect(); err != nil {
		// The scheduler keeps retrying; a failed first dial is not fatal.
		logger.Warn("initial connect failed, retrying", "error", err)
	}

	// Periodic stats reporting
	reportInterval := cfg.Telemetry.ReportInterval
	if reportInterval == 0 {
		reportInterval = 60 * time.Second
	}
	reporter := telemetry.NewReporter(reportInterval, mgr.StatsEvent, sink, logger)
	if err := reporter.Start(ctx); err != nil {
		logger.Error("failed to start stats reporter", "error", err)
		os.Exit(1)
	}

	// Health server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *healthPort),
		Handler: createHealthHandler(mgr, store),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting health server", "port", *healthPort)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	logger.Info("feedd running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", *healthPort),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	reporter.Stop()
	mgr.Close()
	if store != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := store.Stop(stopCtx); err != nil {
			logger.Warn("telemetry store stop", "error", err)
		}
		stopCancel()
	}
	if err := g.Wait(); err != nil {
		logger.Warn("shutdown error", "error", err)
	}

	logger.Info("feedd stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(mgr *realtime.Manager, store *telemetry.Store) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := mgr.Stats()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		conn := map[string]any{
			"state":        stats.State.String(),
			"messages_in":  stats.MessagesIn,
			"messages_out": stats.MessagesOut,
			"listeners":    stats.Listeners,
			"topics":       stats.DesiredTopics,
		}
		if err := mgr.ConnectionError(); err != nil {
			conn["error"] = err.Error()
		}
		health.Components["connection"] = conn

		switch stats.State {
		case realtime.StateError:
			health.Status = "unhealthy"
		case realtime.StateConnected, realtime.StateAuthenticating, realtime.StateAuthenticated:
		default:
			health.Status = "degraded"
		}

		if store != nil {
			health.Components["telemetry_store"] = map[string]any{
				"written": store.Written(),
				"dropped": store.Dropped(),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := mgr.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"state":              stats.State.String(),
			"reconnect_attempts": stats.ReconnectAttempts,
			"missed_heartbeats":  stats.MissedHeartbeats,
			"desired_topics":     stats.DesiredTopics,
			"listeners":          stats.Listeners,
			"messages_in":        stats.MessagesIn,
			"messages_out":       stats.MessagesOut,
			"parse_errors":       stats.ParseErrors,
		})
	})

	return mux
}
