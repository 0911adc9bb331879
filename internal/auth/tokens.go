package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Errors
var (
	ErrNoToken     = errors.New("no token available")
	ErrNotLoggedIn = errors.New("not logged in")
)

// Kind identifies a token source. Lower values are preferred.
type Kind int

const (
	// KindRealtime is the dedicated realtime token minted for socket auth.
	KindRealtime Kind = iota
	// KindSession is the general session/identity token.
	KindSession
	// KindFallback is the last-resort session credential.
	KindFallback
)

func (k Kind) String() string {
	switch k {
	case KindRealtime:
		return "realtime"
	case KindSession:
		return "session"
	case KindFallback:
		return "fallback"
	}
	return "unknown"
}

// kindOrder is the resolution priority.
var kindOrder = []Kind{KindRealtime, KindSession, KindFallback}

// Provider is the external credential capability. Token returns the current
// token of a kind if one exists; Refresh forces re-acquisition. Both may
// block on I/O and must honor ctx.
type Provider interface {
	Token(ctx context.Context, kind Kind) (string, error)
	Refresh(ctx context.Context, kind Kind) (string, error)
}

// Identity reports who the process is acting as. It is consulted before the
// handshake and when gating admin-only topics.
type Identity interface {
	LoggedIn() bool
	IsAdmin() bool
}

// Resolver walks the token priority chain and caches the winning token until
// Clear is called. It never persists tokens.
type Resolver struct {
	provider Provider
	logger   *slog.Logger

	mu     sync.Mutex
	cached string
	kind   Kind
	hasTok bool
}

// NewResolver creates a Resolver over a Provider.
func NewResolver(provider Provider, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{provider: provider, logger: logger}
}

// Resolve returns the highest-priority token available. With force set, the
// provider is asked to refresh before the cache or the plain chain is
// consulted. Returns ErrNoToken when the whole chain comes up empty.
func (r *Resolver) Resolve(ctx context.Context, force bool) (string, error) {
	if force {
		for _, kind := range kindOrder {
			tok, err := r.provider.Refresh(ctx, kind)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				r.logger.Debug("token refresh failed", "kind", kind.String(), "error", err)
				continue
			}
			if tok != "" {
				r.store(tok, kind)
				return tok, nil
			}
		}
		return "", ErrNoToken
	}

	r.mu.Lock()
	if r.hasTok {
		tok := r.cached
		r.mu.Unlock()
		return tok, nil
	}
	r.mu.Unlock()

	for _, kind := range kindOrder {
		tok, err := r.provider.Token(ctx, kind)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			r.logger.Debug("token lookup failed", "kind", kind.String(), "error", err)
			continue
		}
		if tok != "" {
			r.store(tok, kind)
			return tok, nil
		}
	}
	return "", ErrNoToken
}

// Clear drops the cached token. Called when the server reports expiry so the
// next handshake re-acquires credentials.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = ""
	r.hasTok = false
}

// Cached returns the cached token without touching the provider.
func (r *Resolver) Cached() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cached, r.hasTok
}

func (r *Resolver) store(tok string, kind Kind) {
	r.mu.Lock()
	r.cached = tok
	r.kind = kind
	r.hasTok = true
	r.mu.Unlock()
	r.logger.Debug("token resolved", "kind", kind.String())
}

// StaticProvider serves fixed tokens, used by the debug CLI and tests.
type StaticProvider struct {
	Tokens map[Kind]string
}

func (p StaticProvider) Token(_ context.Context, kind Kind) (string, error) {
	return p.Tokens[kind], nil
}

func (p StaticProvider) Refresh(_ context.Context, kind Kind) (string, error) {
	return p.Tokens[kind], nil
}

// StaticIdentity is a fixed identity, used by the debug CLI and tests.
type StaticIdentity struct {
	Logged bool
	Admin  bool
}

func (i StaticIdentity) LoggedIn() bool { return i.Logged }
func (i StaticIdentity) IsAdmin() bool  { return i.Admin }
