package realtime

import (
	"fmt"
	"net/url"

	"github.com/BranchManager69/degenduel-realtime/internal/config"
)

// SocketPath is the path of the unified realtime endpoint.
const SocketPath = "/api/v69/ws"

// Canonical endpoints per environment.
var envEndpoints = map[string]string{
	"production": "wss://degenduel.me" + SocketPath,
	"staging":    "wss://dev.degenduel.me" + SocketPath,
	"local":      "ws://localhost:3004" + SocketPath,
}

// Known hostnames mapped onto environments.
var hostEnvironments = map[string]string{
	"degenduel.me":     "production",
	"www.degenduel.me": "production",
	"dev.degenduel.me": "staging",
	"localhost":        "local",
	"127.0.0.1":        "local",
}

// ResolveEndpoint computes the socket address. Resolution order: explicit
// override, hostname-based environment rule, same-origin derivation from the
// configured origin (secure origin means secure socket scheme), and finally
// the environment name alone.
func ResolveEndpoint(cfg config.EndpointConfig) (string, error) {
	if cfg.URL != "" {
		return cfg.URL, nil
	}

	if cfg.Origin != "" {
		u, err := url.Parse(cfg.Origin)
		if err != nil {
			return "", fmt.Errorf("parse origin: %w", err)
		}

		if env, ok := hostEnvironments[u.Hostname()]; ok {
			return envEndpoints[env], nil
		}

		scheme := "ws"
		if u.Scheme == "https" || u.Scheme == "wss" {
			scheme = "wss"
		}
		if u.Host == "" {
			return "", fmt.Errorf("origin %q has no host", cfg.Origin)
		}
		return scheme + "://" + u.Host + SocketPath, nil
	}

	if ep, ok := envEndpoints[cfg.Environment]; ok {
		return ep, nil
	}

	return "", ErrNoEndpoint
}
