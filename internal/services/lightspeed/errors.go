package lightspeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrRetriesExhausted is returned when the vendor keeps answering 429
	// after every allowed retry.
	ErrRetriesExhausted = errors.New("lightspeed: rate limit retries exhausted")
	// ErrNotFound is returned by single-record lookups on 404.
	ErrNotFound = errors.New("lightspeed: record not found")
)

// APIError is a non-2xx, non-429 response from the vendor API.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("Lightspeed API error: %s", e.Status)
	}
	return fmt.Sprintf("Lightspeed API error: %s: %s", e.Status, e.Body)
}

func newAPIError(statusCode int, body []byte) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Status:     fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
		Body:       strings.TrimSpace(string(body)),
	}
}

// RetryPolicy bounds how the client reacts to 429 responses.
type RetryPolicy struct {
	MaxRetries   int
	DefaultDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		DefaultDelay: 5 * time.Second,
		MaxDelay:     60 * time.Second,
	}
}

// Delay returns how long to wait before retry number attempt (0-based).
// A Retry-After value in seconds wins; otherwise the default delay doubles
// per attempt. Both are capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int, retryAfter string) time.Duration {
	var delay time.Duration
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs >= 0 {
		delay = time.Duration(secs) * time.Second
	} else {
		if attempt < 0 {
			attempt = 0
		}
		delay = p.DefaultDelay << attempt
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
