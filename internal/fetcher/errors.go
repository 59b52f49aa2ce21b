package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel failure classes. Match them with errors.Is.
var (
	ErrBlocked     = errors.New("blocked")
	ErrForbidden   = errors.New("forbidden")
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	ErrServer      = errors.New("server error")
	ErrTimeout     = errors.New("timeout")
	ErrConnection  = errors.New("connection")
)

// HTTPError is a classified fetch failure.
type HTTPError struct {
	Kind   error
	Status int
	URL    string
	Err    error
}

func (e *HTTPError) Error() string {
	msg := e.Kind.Error()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the class sentinel and the cause.
func (e *HTTPError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Classify maps a transport error and/or status code onto a sentinel class.
// It returns err unchanged when nothing more specific applies.
func Classify(rawURL string, status int, err error) error {
	if err == nil && status < http.StatusBadRequest {
		return nil
	}
	wrap := func(kind error) error {
		return &HTTPError{Kind: kind, Status: status, URL: rawURL, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return wrap(ErrTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wrap(ErrTimeout)
	}
	switch {
	case status == http.StatusForbidden:
		return wrap(ErrForbidden)
	case status == http.StatusNotFound || status == http.StatusGone:
		return wrap(ErrNotFound)
	case status == http.StatusTooManyRequests:
		return wrap(ErrRateLimited)
	case status >= http.StatusInternalServerError:
		return wrap(ErrServer)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return wrap(ErrConnection)
	}
	if err == nil {
		return &HTTPError{Kind: fmt.Errorf("http status %d", status), Status: status, URL: rawURL}
	}
	return err
}

// Blocked builds the error for a page the detector flagged.
func Blocked(rawURL string, status int, reason string) error {
	return &HTTPError{Kind: ErrBlocked, Status: status, URL: rawURL, Err: errors.New(reason)}
}

// Label names err's class for metrics and error logs.
func Label(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrServer):
		return "server"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}
