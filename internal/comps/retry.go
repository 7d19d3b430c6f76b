package comps

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/ebay"
)

// FailureKind selects the backoff schedule for a failed attempt.
type FailureKind int

const (
	// FailureTransient covers non-2xx responses and transport errors.
	FailureTransient FailureKind = iota
	// FailureRateLimited is an HTTP 429.
	FailureRateLimited
	// FailureUnauthorized is an HTTP 401; the cached token is dropped.
	FailureUnauthorized
)

func (k FailureKind) String() string {
	switch k {
	case FailureRateLimited:
		return "rate_limited"
	case FailureUnauthorized:
		return "unauthorized"
	default:
		return "transient"
	}
}

// RetryPolicy bounds attempts per query and picks the wait between them.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(kind FailureKind, attempt int) time.Duration
}

// DefaultRetryPolicy allows 3 attempts with linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: DefaultBackoff}
}

// DefaultBackoff waits 2s×(attempt+1) after a 429 and 1s×(attempt+1)
// after anything else.
func DefaultBackoff(kind FailureKind, attempt int) time.Duration {
	if kind == FailureRateLimited {
		return 2000 * time.Millisecond * time.Duration(attempt+1)
	}
	return 1000 * time.Millisecond * time.Duration(attempt+1)
}

// Classify maps a lookup error to a FailureKind.
func Classify(err error) FailureKind {
	var apiErr *ebay.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return FailureRateLimited
		case http.StatusUnauthorized:
			return FailureUnauthorized
		}
	}
	return FailureTransient
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
