package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Envelope is the backend's uniform response shape. Non-JSON responses
// are coerced into it so callers always receive the same structure.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Config holds executor settings.
type Config struct {
	// APIKey is the tenant credential sent as X-API-Key.
	APIKey string `yaml:"api_key"`
	// DefaultAPIKey is used when no key has been set. Leaving it empty
	// disables the fallback entirely; whether a shared default is
	// acceptable is the integrator's call.
	DefaultAPIKey string        `yaml:"default_api_key"`
	UserAgent     string        `yaml:"user_agent"`
	Timeout       time.Duration `yaml:"timeout"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
}

// Executor performs a single HTTP attempt: headers, body encoding,
// timeout, response decoding. Caching and queueing happen elsewhere.
type Executor struct {
	httpClient *http.Client

	mu            sync.RWMutex
	apiKey        string
	defaultAPIKey string
	userAgent     string
	timeout       time.Duration
	probeTimeout  time.Duration
}

// NewExecutor creates an executor with a pooled transport.
func NewExecutor(cfg Config) *Executor {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout == 0 {
		probeTimeout = 15 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "storekit/1.0"
	}

	return &Executor{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:        cfg.APIKey,
		defaultAPIKey: cfg.DefaultAPIKey,
		userAgent:     userAgent,
		timeout:       timeout,
		probeTimeout:  probeTimeout,
	}
}

// SetAPIKey replaces the tenant credential at runtime.
func (e *Executor) SetAPIKey(key string) {
	e.mu.Lock()
	e.apiKey = key
	e.mu.Unlock()
}

// ClearAPIKey removes the runtime credential, restoring the fallback.
func (e *Executor) ClearAPIKey() {
	e.SetAPIKey("")
}

func (e *Executor) currentKey() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.apiKey != "" {
		return e.apiKey
	}
	return e.defaultAPIKey
}

// Do performs one attempt against baseURL+endpoint. It returns the
// decoded envelope and status code; err is the raw transport error for
// connection-level failures, or a classified *Error for non-2xx statuses.
func (e *Executor) Do(
	ctx context.Context,
	baseURL, endpoint, method string,
	body any,
) (*Envelope, int, error) {
	return e.do(ctx, baseURL, endpoint, method, body, "")
}

// DoReplay performs one attempt for a previously buffered mutation. The
// operation id rides along as X-Operation-Id so the backend can
// deduplicate a replay that already landed.
func (e *Executor) DoReplay(
	ctx context.Context,
	baseURL, endpoint, method string,
	body any,
	operationID string,
) (*Envelope, int, error) {
	return e.do(ctx, baseURL, endpoint, method, body, operationID)
}

func (e *Executor) do(
	ctx context.Context,
	baseURL, endpoint, method string,
	body any,
	operationID string,
) (*Envelope, int, error) {
	url := strings.TrimSuffix(baseURL, "/") + endpoint

	var reqBody io.Reader
	if body != nil && method != http.MethodGet {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", e.userAgent)
	if key := e.currentKey(); key != "" {
		req.Header.Set("X-API-Key", key)
	}
	if operationID != "" {
		req.Header.Set("X-Operation-Id", operationID)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	env := decodeEnvelope(raw, resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		apiErr := Classify(nil, resp.StatusCode)
		if msg != "" {
			apiErr.Message = msg
		}
		return env, resp.StatusCode, apiErr
	}

	return env, resp.StatusCode, nil
}

// decodeEnvelope attempts a JSON parse regardless of Content-Type; if
// the body is not parseable it synthesizes a failure envelope so the
// caller never sees a decode error for a reachable server.
func decodeEnvelope(raw []byte, resp *http.Response) *Envelope {
	var env Envelope
	if json.Unmarshal(raw, &env) == nil && (env.Success || env.Data != nil || env.Message != "" || env.Error != "") {
		return &env
	}

	// Plain JSON payload without the envelope wrapper.
	if json.Valid(raw) && len(bytes.TrimSpace(raw)) > 0 {
		return &Envelope{Success: resp.StatusCode < 400, Data: raw}
	}

	text := string(raw)
	if len(text) > 500 {
		text = text[:500]
	}
	return &Envelope{
		Success: false,
		Message: fmt.Sprintf("server returned non-JSON response: %d %s", resp.StatusCode, resp.Status),
		Error:   text,
	}
}

// Probe issues a lightweight GET /health against a base URL. It uses the
// short probe timeout, not the request timeout.
func (e *Executor) Probe(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()

	url := strings.TrimSuffix(baseURL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
