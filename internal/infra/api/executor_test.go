package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExecutor_Do_SendsHeaders(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		_, _ = w.Write([]byte(`{"success": true, "data": {"id": 1}}`))
	}))
	defer srv.Close()

	exec := NewExecutor(Config{APIKey: "tenant-key", UserAgent: "storekit-test/1.0"})
	env, status, err := exec.Do(context.Background(), srv.URL, "/api/products", http.MethodGet, nil)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if !env.Success {
		t.Error("expected success envelope")
	}

	if got := gotHeaders.Get("X-API-Key"); got != "tenant-key" {
		t.Errorf("X-API-Key = %q, want tenant-key", got)
	}
	if got := gotHeaders.Get("User-Agent"); got != "storekit-test/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := gotHeaders.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestExecutor_DefaultKeyFallback(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	exec := NewExecutor(Config{DefaultAPIKey: "shared-default"})

	_, _, err := exec.Do(context.Background(), srv.URL, "/api/products", http.MethodGet, nil)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if gotKey != "shared-default" {
		t.Errorf("fallback key = %q, want shared-default", gotKey)
	}

	exec.SetAPIKey("runtime-key")
	_, _, _ = exec.Do(context.Background(), srv.URL, "/api/products", http.MethodGet, nil)
	if gotKey != "runtime-key" {
		t.Errorf("runtime key = %q, want runtime-key", gotKey)
	}

	exec.ClearAPIKey()
	_, _, _ = exec.Do(context.Background(), srv.URL, "/api/products", http.MethodGet, nil)
	if gotKey != "shared-default" {
		t.Errorf("after clear, key = %q, want shared-default", gotKey)
	}
}

func TestExecutor_DoReplay_SendsOperationID(t *testing.T) {
	var gotOpID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOpID = r.Header.Get("X-Operation-Id")
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	exec := NewExecutor(Config{})
	_, _, err := exec.DoReplay(context.Background(), srv.URL, "/api/orders", http.MethodPost,
		json.RawMessage(`{"productId": 1}`), "op-123")
	if err != nil {
		t.Fatalf("DoReplay failed: %v", err)
	}
	if gotOpID != "op-123" {
		t.Errorf("X-Operation-Id = %q, want op-123", gotOpID)
	}
}

func TestExecutor_PlainJSONWrappedInEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id": 1}, {"id": 2}]`))
	}))
	defer srv.Close()

	exec := NewExecutor(Config{})
	env, _, err := exec.Do(context.Background(), srv.URL, "/api/products", http.MethodGet, nil)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !env.Success {
		t.Error("2xx plain JSON should be wrapped as success")
	}
	var items []map[string]int
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatalf("data not preserved: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("got %d items, want 2", len(items))
	}
}

func TestExecutor_NonJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>502 Bad Gateway</html>"))
	}))
	defer srv.Close()

	exec := NewExecutor(Config{})
	env, status, err := exec.Do(context.Background(), srv.URL, "/api/products", http.MethodGet, nil)
	if status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", status)
	}
	if env == nil || env.Success {
		t.Error("non-JSON error response must decode to a failure envelope")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Kind != KindServer {
		t.Errorf("kind = %s, want %s", apiErr.Kind, KindServer)
	}
}

func TestExecutor_ErrorEnvelopeMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success": false, "message": "invalid API key"}`))
	}))
	defer srv.Close()

	exec := NewExecutor(Config{})
	_, _, err := exec.Do(context.Background(), srv.URL, "/api/products", http.MethodGet, nil)

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Kind != KindUnauthorized {
		t.Errorf("kind = %s, want %s", apiErr.Kind, KindUnauthorized)
	}
	if apiErr.Message != "invalid API key" {
		t.Errorf("message = %q, want server-provided message", apiErr.Message)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	exec := NewExecutor(Config{Timeout: 20 * time.Millisecond})
	_, _, err := exec.Do(context.Background(), srv.URL, "/api/products", http.MethodGet, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if apiErr := Classify(err, 0); apiErr.Kind != KindTimeout {
		t.Errorf("kind = %s, want %s", apiErr.Kind, KindTimeout)
	}
}

func TestExecutor_Probe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	defer srv.Close()

	exec := NewExecutor(Config{})
	if !exec.Probe(context.Background(), srv.URL) {
		t.Error("probe against healthy server should succeed")
	}

	srv.Close()
	if exec.Probe(context.Background(), srv.URL) {
		t.Error("probe against closed server should fail")
	}
}
