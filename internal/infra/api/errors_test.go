package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestClassify_HTTPStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantKind  Kind
		retryable bool
	}{
		{"unauthorized", 401, KindUnauthorized, false},
		{"not found", 404, KindNotFound, false},
		{"bad request", 400, KindValidation, false},
		{"unprocessable", 422, KindValidation, false},
		{"internal error", 500, KindServer, true},
		{"bad gateway", 502, KindServer, true},
		{"service unavailable", 503, KindServer, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := Classify(nil, tt.status)
			if apiErr.Kind != tt.wantKind {
				t.Errorf("Classify(nil, %d) kind = %s, want %s", tt.status, apiErr.Kind, tt.wantKind)
			}
			if apiErr.Retryable() != tt.retryable {
				t.Errorf("Classify(nil, %d) retryable = %t, want %t", tt.status, apiErr.Retryable(), tt.retryable)
			}
			if apiErr.HTTPStatus != tt.status {
				t.Errorf("HTTPStatus = %d, want %d", apiErr.HTTPStatus, tt.status)
			}
		})
	}
}

func TestClassify_TransportErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind Kind
	}{
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "api.example.com"}, KindNetwork},
		{"connection refused", errors.New("dial tcp 10.0.0.1:443: connect: connection refused"), KindNetwork},
		{"connection reset", errors.New("read tcp: connection reset by peer"), KindNetwork},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("unreachable")}, KindNetwork},
		{"client timeout", errors.New("Client.Timeout exceeded while awaiting headers"), KindTimeout},
		{"unrelated", errors.New("something odd"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := Classify(tt.err, 0)
			if apiErr.Kind != tt.wantKind {
				t.Errorf("Classify(%v) kind = %s, want %s", tt.err, apiErr.Kind, tt.wantKind)
			}
		})
	}
}

func TestClassify_PassesThroughExistingError(t *testing.T) {
	orig := &Error{Kind: KindUnauthorized, HTTPStatus: 401, Message: "bad key"}
	wrapped := fmt.Errorf("request failed: %w", orig)

	got := Classify(wrapped, 0)
	if got != orig {
		t.Errorf("Classify did not pass through the existing *Error")
	}
}

func TestClassify_UnknownNeverRetries(t *testing.T) {
	apiErr := Classify(errors.New("mystery"), 0)
	if apiErr.Kind != KindUnknown {
		t.Fatalf("kind = %s, want %s", apiErr.Kind, KindUnknown)
	}
	if apiErr.Retryable() {
		t.Error("unknown errors must not be retryable")
	}
	if apiErr.ConnectivityRelated() {
		t.Error("unknown errors must not count as connectivity failures")
	}
}

func TestError_ConnectivityRelated(t *testing.T) {
	if !(&Error{Kind: KindNetwork}).ConnectivityRelated() {
		t.Error("network errors are connectivity related")
	}
	if !(&Error{Kind: KindTimeout}).ConnectivityRelated() {
		t.Error("timeouts are connectivity related")
	}
	if (&Error{Kind: KindServer}).ConnectivityRelated() {
		t.Error("server errors mean the server is reachable")
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	apiErr := &Error{Kind: KindNetwork, Message: "network failure", Err: inner}
	if !errors.Is(apiErr, inner) {
		t.Error("errors.Is should see the wrapped error")
	}
}
