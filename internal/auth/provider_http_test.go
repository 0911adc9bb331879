package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPProvider_RealtimeToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"token":"rt-abc","expiresAt":"2026-01-10T13:00:00Z"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "sess-key")

	tok, err := p.Token(context.Background(), KindRealtime)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok != "rt-abc" {
		t.Errorf("token = %s, want rt-abc", tok)
	}
	if gotAuth != "Bearer sess-key" {
		t.Errorf("Authorization = %s, want Bearer sess-key", gotAuth)
	}
}

func TestHTTPProvider_SessionKindsAreLocal(t *testing.T) {
	p := NewHTTPProvider("http://unused.invalid", "sess-key")

	tok, err := p.Token(context.Background(), KindSession)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok != "sess-key" {
		t.Errorf("token = %s, want sess-key", tok)
	}
}

func TestHTTPProvider_RetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"token":"rt-retry"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "sess-key", WithRetries(3, 5*time.Millisecond))

	tok, err := p.Token(context.Background(), KindRealtime)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok != "rt-retry" {
		t.Errorf("token = %s, want rt-retry", tok)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestHTTPProvider_NoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "bad-key", WithRetries(3, 5*time.Millisecond))

	if _, err := p.Token(context.Background(), KindRealtime); err == nil {
		t.Fatal("expected error for 401")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (401 is not retryable)", calls.Load())
	}
}

func TestHTTPProvider_EmptyURL(t *testing.T) {
	p := NewHTTPProvider("", "sess-key")

	tok, err := p.Token(context.Background(), KindRealtime)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok != "" {
		t.Errorf("token = %s, want empty (no endpoint configured)", tok)
	}
}
