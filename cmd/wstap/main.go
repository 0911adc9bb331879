// wstap connects to the unified realtime socket and streams decoded
// envelopes to the console.
// Usage: go run ./cmd/wstap --env production --topics market-data,contest
//
// A session token can be supplied to exercise the authenticated topics:
//
//	DD_SESSION=... go run ./cmd/wstap --topics portfolio,wallet
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BranchManager69/degenduel-realtime/internal/auth"
	"github.com/BranchManager69/degenduel-realtime/internal/config"
	"github.com/BranchManager69/degenduel-realtime/internal/protocol"
	"github.com/BranchManager69/degenduel-realtime/internal/realtime"
	"github.com/BranchManager69/degenduel-realtime/internal/telemetry"
)

func main() {
	env := flag.String("env", "production", "target environment (production|staging|local)")
	socketURL := flag.String("url", "", "explicit socket URL, overrides --env")
	topicsFlag := flag.String("topics", "", "comma-separated topics beyond the public set")
	verbose := flag.Bool("verbose", false, "print full envelope JSON")
	admin := flag.Bool("admin", false, "treat the session as an admin session")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	mgrCfg := realtime.DefaultManagerConfig()
	mgrCfg.Endpoint = config.EndpointConfig{URL: *socketURL, Environment: *env}

	// A session key from the environment authenticates the tap.
	sessionKey := os.Getenv("DD_SESSION")
	var resolver *auth.Resolver
	identity := auth.StaticIdentity{Logged: sessionKey != "", Admin: *admin}
	if sessionKey != "" {
		resolver = auth.NewResolver(auth.StaticProvider{
			Tokens: map[auth.Kind]string{auth.KindSession: sessionKey},
		}, logger)
	}

	mgr := realtime.NewManager(mgrCfg, resolver, identity, telemetry.NewLogSink(logger), logger)
	defer mgr.Close()

	if *topicsFlag != "" {
		var topics []protocol.Topic
		for _, t := range strings.Split(*topicsFlag, ",") {
			topics = append(topics, protocol.Topic(strings.TrimSpace(t)))
		}
		mgr.Subscribe(topics...)
	} else if sessionKey != "" {
		// Authenticated tap with no explicit topics follows the whole
		// user surface.
		mgr.Subscribe(protocol.RestrictedTopics()...)
	}

	mgr.RegisterListener("wstap",
		[]protocol.MessageType{
			protocol.TypeData,
			protocol.TypeSystem,
			protocol.TypeError,
			protocol.TypeAcknowledgment,
		},
		nil,
		func(env protocol.Envelope) { printEnvelope(env, *verbose) },
	)

	if err := mgr.Connect(); err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := mgr.Stats()
			logger.Info("stats",
				"state", stats.State.String(),
				"in", stats.MessagesIn,
				"out", stats.MessagesOut,
				"topics", stats.DesiredTopics,
				"parse_errors", stats.ParseErrors,
			)
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	mgr.Close()
}

func printEnvelope(env protocol.Envelope, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(env, "", "  ")
		fmt.Printf("[%s] %s\n", env.Type, data)
		return
	}

	switch env.Type {
	case protocol.TypeData:
		fmt.Printf("[DATA] topic=%s bytes=%d\n", env.Topic, len(env.Data))
	case protocol.TypeSystem:
		fmt.Printf("[SYSTEM] action=%s topic=%s\n", env.Action, env.Topic)
	case protocol.TypeError:
		fmt.Printf("[ERROR] code=%d reason=%s\n", env.Code, env.Reason)
	case protocol.TypeAcknowledgment:
		fmt.Printf("[ACK] operation=%s message=%s\n", env.Operation, env.Message)
	default:
		fmt.Printf("[%s] topic=%s\n", env.Type, env.Topic)
	}
}
