package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a failed request attempt. The kind decides whether the
// coordinator may retry, fall back, or must surface the failure.
type Kind string

const (
	KindNetwork      Kind = "network"
	KindTimeout      Kind = "timeout"
	KindServer       Kind = "server"
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindUnknown      Kind = "unknown"
)

// Error is a typed, retryability-tagged request failure.
type Error struct {
	Kind       Kind
	HTTPStatus int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("[%s] http %d: %s", e.Kind, e.HTTPStatus, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could plausibly succeed.
// Unknown fails closed: never retried.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindServer:
		return true
	default:
		return false
	}
}

// ConnectivityRelated reports whether the failure looks like a
// reachability problem rather than a server-side decision. These are the
// failures that justify endpoint rediscovery and offline fallbacks.
func (e *Error) ConnectivityRelated() bool {
	return e.Kind == KindNetwork || e.Kind == KindTimeout
}

// Classify maps a raw transport error and/or HTTP status to an Error.
// Pure function: no side effects, stable for a given input.
func Classify(err error, httpStatus int) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if httpStatus > 0 {
		switch {
		case httpStatus == 401:
			return &Error{Kind: KindUnauthorized, HTTPStatus: httpStatus, Message: "unauthorized", Err: err}
		case httpStatus == 404:
			return &Error{Kind: KindNotFound, HTTPStatus: httpStatus, Message: "resource not found", Err: err}
		case httpStatus == 400 || httpStatus == 422:
			return &Error{Kind: KindValidation, HTTPStatus: httpStatus, Message: "invalid request", Err: err}
		case httpStatus >= 500:
			return &Error{Kind: KindServer, HTTPStatus: httpStatus, Message: "server error", Err: err}
		}
	}

	if err == nil {
		return &Error{Kind: KindUnknown, HTTPStatus: httpStatus, Message: "unclassified response"}
	}

	if isTimeout(err) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	if isTransport(err) {
		return &Error{Kind: KindNetwork, Message: "network failure", Err: err}
	}

	return &Error{Kind: KindUnknown, HTTPStatus: httpStatus, Message: err.Error(), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded")
}

func isTransport(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "no such host") ||
		strings.Contains(s, "network")
}
