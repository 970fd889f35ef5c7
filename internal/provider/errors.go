package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransientError wraps a provider failure that is safe to retry: timeouts,
// rate limits, and 5xx-equivalent responses.
type TransientError struct {
	Vendor string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Vendor, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a provider failure that retrying cannot fix:
// authentication failures, malformed or refused content, 4xx responses.
type PermanentError struct {
	Vendor string
	Err    error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent: %v", e.Vendor, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// classifyStatus maps an HTTP status code from a vendor SDK to a transient
// or permanent error. 408, 429, and all 5xx are retryable.
func classifyStatus(vendor string, status int, err error) error {
	switch {
	case status == 408, status == 429, status >= 500:
		return &TransientError{Vendor: vendor, Err: err}
	default:
		return &PermanentError{Vendor: vendor, Err: err}
	}
}

// classifyNetwork handles errors with no HTTP status attached. Context
// deadlines and network-level failures are transient; everything else is
// treated as permanent.
func classifyNetwork(vendor string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &TransientError{Vendor: vendor, Err: err}
	case errors.As(err, &netErr):
		return &TransientError{Vendor: vendor, Err: err}
	default:
		return &PermanentError{Vendor: vendor, Err: err}
	}
}
