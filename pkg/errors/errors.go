package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// Kind represents the different classes of failure the crawler distinguishes
type Kind string

const (
	KindTransport  Kind = "transport"
	KindStatus     Kind = "status"
	KindParse      Kind = "parse"
	KindNoAssetURL Kind = "no_asset_url"
	KindIO         Kind = "io"
)

// ErrFetchFailed marks a page fetch that failed terminally, after any retries
var ErrFetchFailed = stderrors.New("fetch failed")

// ErrNoAssetURL is returned when a recording carries no downloadable file
var ErrNoAssetURL = stderrors.New("recording has no asset url")

// Error represents a classified crawler error
type Error struct {
	Kind    Kind
	Message string
	Code    int
	Err     error

	// RetryAfter is the server's requested wait, when it sent one
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport builds a transport error (DNS, connect, timeout, reset)
func Transport(err error) *Error {
	return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
}

// Status builds a status error for a non-2xx response
func Status(code int) *Error {
	return &Error{
		Kind:    KindStatus,
		Message: fmt.Sprintf("unexpected status %d %s", code, http.StatusText(code)),
		Code:    code,
	}
}

// Parse builds a parse error for a malformed response body
func Parse(err error) *Error {
	return &Error{Kind: KindParse, Message: err.Error(), Err: err}
}

// IO builds a local filesystem error
func IO(op string, err error) *Error {
	return &Error{Kind: KindIO, Message: fmt.Sprintf("%s: %v", op, err), Err: err}
}

// NoAssetURL builds the error for a recording without a file URL
func NoAssetURL(id string) *Error {
	return &Error{Kind: KindNoAssetURL, Message: fmt.Sprintf("recording %q", id), Err: ErrNoAssetURL}
}

// FetchFailed wraps a classified cause so callers can match ErrFetchFailed
func FetchFailed(cause error) error {
	return fmt.Errorf("%w: %w", ErrFetchFailed, cause)
}

// KindOf returns the kind of a classified error, or "" when err is not one
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryableStatus checks if an HTTP status code is worth another attempt
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is a transport error or a retryable status
func IsRetryable(err error) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindTransport:
		return true
	case KindStatus:
		return IsRetryableStatus(e.Code)
	default:
		return false
	}
}
