// Package faults classifies collaborator errors into the categories the
// pipeline reacts to: transient network trouble is retried, authorization
// failures disable a channel for the rest of the run, rate limiting blocks
// a provider for the day, and validation problems skip a single item.
package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// Kind buckets an error for retry and degradation decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransient
	KindAuth
	KindRateLimited
	KindValidation
)

// Fault wraps an underlying error with its classification.
type Fault struct {
	Kind Kind
	Err  error
}

func (f *Fault) Error() string { return f.Err.Error() }
func (f *Fault) Unwrap() error { return f.Err }

// New wraps err with an explicit kind.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{Kind: kind, Err: err}
}

// Transientf builds a transient fault from a format string.
func Transientf(format string, args ...any) error {
	return &Fault{Kind: KindTransient, Err: fmt.Errorf(format, args...)}
}

// Validationf builds a validation fault from a format string.
func Validationf(format string, args ...any) error {
	return &Fault{Kind: KindValidation, Err: fmt.Errorf(format, args...)}
}

// FromStatus classifies an HTTP response status into a fault.
// 2xx returns nil.
func FromStatus(status int, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Fault{Kind: KindAuth, Err: err}
	case status == http.StatusTooManyRequests:
		return &Fault{Kind: KindRateLimited, Err: err}
	case status >= 500:
		return &Fault{Kind: KindTransient, Err: err}
	default:
		return &Fault{Kind: KindValidation, Err: err}
	}
}

func kindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// IsAuth reports whether err is an authorization failure (401/403 class).
func IsAuth(err error) bool { return kindOf(err) == KindAuth }

// IsRateLimited reports whether err means the provider throttled us.
func IsRateLimited(err error) bool { return kindOf(err) == KindRateLimited }

// IsValidation reports whether err concerns a single malformed item.
func IsValidation(err error) bool { return kindOf(err) == KindValidation }

// IsTransient reports whether err is worth retrying: explicitly marked
// transient, a network timeout/refusal, or a context deadline.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if kindOf(err) == KindTransient {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
