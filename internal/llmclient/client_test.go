package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func geminiEnvelope(text string) []byte {
	body, _ := json.Marshal(generateContentResponse{
		Candidates: []candidate{{Content: content{Parts: []part{{Text: text}}}}},
	})
	return body
}

func newTestClient(url string, opts ...func(*Config)) *Client {
	cfg := Config{
		APIKey:           "test-key",
		BaseURL:          url,
		HTTPBackoffBase:  time.Millisecond,
		HTTPMaxRetries:   3,
		ParseMaxAttempts: 2,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return New(cfg)
}

func TestComplete_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(geminiEnvelope(`{"vehicle":{"make":"Volvo"},"schedule_entries":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, raw, err := c.Complete(context.Background(), "prompt", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Vehicle.Make != "Volvo" {
		t.Fatalf("expected make Volvo, got %q", resp.Vehicle.Make)
	}
	if raw == "" {
		t.Fatal("expected non-empty raw text")
	}
}

func TestComplete_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(geminiEnvelope(`{"schedule_entries":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, _, err := c.Complete(context.Background(), "prompt", 0)
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestComplete_TransportFatalDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, _, err := c.Complete(context.Background(), "prompt", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	var te *TransportError
	if !asTransportError(err, &te) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 attempt for a fatal 401, got %d", calls)
	}
}

func TestComplete_ExhaustsRetriesOn503(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, func(cfg *Config) { cfg.HTTPMaxRetries = 2 })
	_, _, err := c.Complete(context.Background(), "prompt", 0)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestComplete_OuterParseRetryReissuesRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.Write(geminiEnvelope("not json at all, sorry"))
			return
		}
		w.Write(geminiEnvelope(`{"schedule_entries":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, _, err := c.Complete(context.Background(), "prompt", 0)
	if err != nil {
		t.Fatalf("expected the outer loop to reissue and succeed, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 full requests (outer parse retry), got %d", calls)
	}
}

func asTransportError(err error, target **TransportError) bool {
	if te, ok := err.(*TransportError); ok {
		*target = te
		return true
	}
	return false
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{APIKey: "k"})
	if c.model != "gemini-2.0-flash" {
		t.Fatalf("expected default model, got %q", c.model)
	}
	if c.maxOutputTokens != 16384 {
		t.Fatalf("expected default token cap, got %d", c.maxOutputTokens)
	}
	if fmt.Sprintf("%.1f", c.temperature) != "0.1" {
		t.Fatalf("expected default temperature ~0.1, got %v", c.temperature)
	}
}
