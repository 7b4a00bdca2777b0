// Package llmclient issues a single synchronous request/response exchange
// against a Gemini-compatible generateContent endpoint, with two layered
// retry loops: an inner HTTP loop for transient transport failures, and an
// outer loop that reissues the whole request when the response could not
// be turned into valid JSON.
//
// Grounded directly on codenerd's internal/perception/client_gemini.go,
// which posts the same {contents:[{parts:[{text}]}]} body to
// "{baseURL}/models/{model}:generateContent?key=..." and retries on 429
// with `time.Sleep(1<<uint(i-1) * time.Second)`. This client keeps that
// request/response shape but splits retry responsibility into the two
// envelopes spec.md §4.C requires, since extracting JSON is a distinct
// concern from transport here (see internal/jsonrepair).
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oemforge/oemforge/internal/jsonrepair"
	"github.com/oemforge/oemforge/internal/model"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// transientStatuses are the HTTP codes that trigger the inner retry loop.
var transientStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusServiceUnavailable:  true,
}

// Config configures a Client. Zero values take the package defaults.
type Config struct {
	APIKey          string
	Model           string
	BaseURL         string
	Temperature     float64
	MaxOutputTokens int
	HTTPMaxRetries  int
	HTTPBackoffBase time.Duration
	ParseMaxAttempts int
	HTTPClient      *http.Client
}

// Client is a synchronous Gemini generateContent client.
type Client struct {
	apiKey           string
	model            string
	baseURL          string
	temperature      float64
	maxOutputTokens  int
	httpMaxRetries   int
	httpBackoffBase  time.Duration
	parseMaxAttempts int
	httpClient       *http.Client
}

// New builds a Client from cfg, applying the spec's defaults for any
// unset field (temperature ~0.1, ~16k token cap, 5 HTTP retries, 2 parse
// attempts).
func New(cfg Config) *Client {
	c := &Client{
		apiKey:           cfg.APIKey,
		model:            cfg.Model,
		baseURL:          cfg.BaseURL,
		temperature:      cfg.Temperature,
		maxOutputTokens:  cfg.MaxOutputTokens,
		httpMaxRetries:   cfg.HTTPMaxRetries,
		httpBackoffBase:  cfg.HTTPBackoffBase,
		parseMaxAttempts: cfg.ParseMaxAttempts,
		httpClient:       cfg.HTTPClient,
	}
	if c.model == "" {
		c.model = "gemini-2.0-flash"
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.temperature == 0 {
		c.temperature = 0.1
	}
	if c.maxOutputTokens == 0 {
		c.maxOutputTokens = 16384
	}
	if c.httpMaxRetries == 0 {
		c.httpMaxRetries = 5
	}
	if c.httpBackoffBase == 0 {
		c.httpBackoffBase = 1 * time.Second
	}
	if c.parseMaxAttempts == 0 {
		c.parseMaxAttempts = 2
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return c
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type candidate struct {
	Content content `json:"content"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

// TransportError wraps a non-retryable transport failure (a 4xx other than
// 429, or a non-HTTP I/O error) — spec.md §7 error kind 2.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llmclient: transport-fatal: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("llmclient: transport-fatal: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RetriesExhaustedError is returned when the inner HTTP retry loop gives up
// after repeated 429/500/503 responses.
type RetriesExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("llmclient: exhausted %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.LastErr }

// Complete sends prompt to the model and returns the parsed
// model.LLMResponse alongside the raw response text. maxTokensOverride, if > 0,
// replaces the client's default token cap for this call only.
//
// Two retry envelopes apply: an inner HTTP loop (up to HTTPMaxRetries
// attempts) on 429/500/503 with base*2^attempt backoff, and an outer loop
// (up to ParseMaxAttempts attempts) that reissues the whole request when
// the response text could not be extracted/repaired into valid JSON.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokensOverride int) (*model.LLMResponse, string, error) {
	maxTokens := c.maxOutputTokens
	if maxTokensOverride > 0 {
		maxTokens = maxTokensOverride
	}

	var lastRaw string
	var lastErr error

	for parseAttempt := 0; parseAttempt < c.parseMaxAttempts; parseAttempt++ {
		raw, err := c.doWithRetry(ctx, prompt, maxTokens)
		if err != nil {
			return nil, "", err
		}
		lastRaw = raw

		msg, extractErr := jsonrepair.Extract(raw)
		if extractErr != nil {
			lastErr = extractErr
			continue
		}

		var parsed model.LLMResponse
		if err := json.Unmarshal(msg, &parsed); err != nil {
			lastErr = fmt.Errorf("llmclient: response JSON did not match expected schema: %w", err)
			continue
		}

		return &parsed, raw, nil
	}

	return nil, lastRaw, fmt.Errorf("llmclient: unparseable response after %d attempts: %w", c.parseMaxAttempts, lastErr)
}

// doWithRetry performs the inner HTTP retry loop for a single request.
func (c *Client) doWithRetry(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reqBody := generateContentRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     c.temperature,
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llmclient: failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	var lastErr error
	for attempt := 0; attempt < c.httpMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.httpBackoffBase * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, retry, err := c.doOnce(ctx, url, payload)
		if err == nil {
			return text, nil
		}
		if !retry {
			return "", err
		}
		lastErr = err
	}

	return "", &RetriesExhaustedError{Attempts: c.httpMaxRetries, LastErr: lastErr}
}

// doOnce performs a single HTTP round trip. The bool return reports whether
// the error, if any, is retryable.
func (c *Client) doOnce(ctx context.Context, url string, payload []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", false, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Non-HTTP I/O error: transport-fatal, not retried (spec.md §7 kind 2).
		return "", false, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, &TransportError{Err: err}
	}

	if transientStatuses[resp.StatusCode] {
		return "", true, &TransportError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", string(body))}
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, &TransportError{Err: fmt.Errorf("llmclient: failed to parse envelope: %w", err)}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", false, &TransportError{Err: fmt.Errorf("llmclient: no completion returned")}
	}

	var text string
	for _, p := range parsed.Candidates[0].Content.Parts {
		text += p.Text
	}
	return text, false, nil
}
