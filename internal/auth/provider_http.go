package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// HTTPProvider acquires tokens from the platform's token endpoint. The
// session credential authenticates the request; the response carries the
// dedicated realtime token.
type HTTPProvider struct {
	tokenURL   string
	sessionKey string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ProviderOption configures an HTTPProvider.
type ProviderOption func(*HTTPProvider)

// NewHTTPProvider creates a token provider against the given endpoint.
func NewHTTPProvider(tokenURL, sessionKey string, opts ...ProviderOption) *HTTPProvider {
	p := &HTTPProvider{
		tokenURL:   tokenURL,
		sessionKey: sessionKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   2,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ProviderOption {
	return func(p *HTTPProvider) {
		p.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ProviderOption {
	return func(p *HTTPProvider) {
		p.maxRetries = max
		p.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *HTTPProvider) {
		p.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ProviderOption {
	return func(p *HTTPProvider) {
		p.httpClient = hc
	}
}

// tokenResponse is the token endpoint payload.
type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

// Token returns the current token of a kind. The session and fallback kinds
// are served locally from the session credential; the realtime kind hits the
// token endpoint.
func (p *HTTPProvider) Token(ctx context.Context, kind Kind) (string, error) {
	switch kind {
	case KindSession, KindFallback:
		return p.sessionKey, nil
	case KindRealtime:
		return p.fetch(ctx)
	}
	return "", nil
}

// Refresh forces re-acquisition. For the realtime kind this is the same
// round trip as Token; session credentials have no refresh path here.
func (p *HTTPProvider) Refresh(ctx context.Context, kind Kind) (string, error) {
	if kind != KindRealtime {
		return p.sessionKey, nil
	}
	return p.fetch(ctx)
}

// fetch performs the token request with bounded retries.
func (p *HTTPProvider) fetch(ctx context.Context) (string, error) {
	if p.tokenURL == "" {
		return "", nil
	}

	var lastErr error
	backoff := p.retryBackoff

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			p.logger.Debug("retrying token request", "attempt", attempt, "backoff", jitter)

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		tok, err := p.doFetch(ctx)
		if err == nil {
			return tok, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (p *HTTPProvider) doFetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.sessionKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.sessionKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", &tokenError{StatusCode: resp.StatusCode, Body: body}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}
	return tr.Token, nil
}

// tokenError is an HTTP failure from the token endpoint.
type tokenError struct {
	StatusCode int
	Body       []byte
}

func (e *tokenError) Error() string {
	return fmt.Sprintf("token endpoint error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func isRetryable(err error) bool {
	te, ok := err.(*tokenError)
	if !ok {
		// Network-level failures are retryable.
		return true
	}
	return te.StatusCode >= 500 || te.StatusCode == 429
}
