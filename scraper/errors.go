package scraper

import (
	"errors"
	"fmt"
)

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Sprintf("timeout: %v", e.Err)
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Sprintf("connection: %v", e.Err)
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %v", e.Err)
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing resource (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("not_found: %v", e.Err)
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target rate-limited the request.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate_limited: %v", e.Err)
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrUnavailable indicates a server-side failure (HTTP 5xx).
type ErrUnavailable struct {
	StatusCode int
	Err        error
}

func (e ErrUnavailable) Error() string {
	return fmt.Sprintf("unavailable (%d): %v", e.StatusCode, e.Err)
}

func (e ErrUnavailable) Unwrap() error {
	return e.Err
}

// ErrBlocked indicates a request the collector refuses to send, such as a
// URL disallowed by robots.txt. Retrying cannot succeed.
type ErrBlocked struct {
	Err error
}

func (e ErrBlocked) Error() string {
	return fmt.Sprintf("blocked: %v", e.Err)
}

func (e ErrBlocked) Unwrap() error {
	return e.Err
}

// ErrUnexpectedStatus indicates any other response that is not HTTP 200.
type ErrUnexpectedStatus struct {
	StatusCode int
	Err        error
}

func (e ErrUnexpectedStatus) Error() string {
	return fmt.Sprintf("unexpected status %d: %v", e.StatusCode, e.Err)
}

func (e ErrUnexpectedStatus) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var unavailable ErrUnavailable
	if errors.As(err, &unavailable) {
		return "unavailable"
	}
	var blocked ErrBlocked
	if errors.As(err, &blocked) {
		return "blocked"
	}
	var unexpected ErrUnexpectedStatus
	if errors.As(err, &unexpected) {
		return "unexpected_status"
	}
	return "other"
}
