// Package httpx holds the small HTTP retry-policy helpers shared by
// clients that talk to the upstream generation service.
package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusCoder is implemented by typed HTTP errors so retryability can
// be decided from the upstream status code.
type StatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// IsRetryable reports whether err is worth another attempt: transport
// failures, timeouts and retryable upstream statuses. Auth failures
// and other 4xx are not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return IsRetryableStatus(sc.HTTPStatusCode())
	}
	return false
}

// RetryAfter resolves the sleep before the next attempt, honoring a
// server-provided Retry-After header over the fallback backoff and
// capping the result at max.
func RetryAfter(resp *http.Response, fallback, max time.Duration) time.Duration {
	sleep := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				sleep = time.Duration(secs) * time.Second
			}
		}
	}
	if max > 0 && sleep > max {
		sleep = max
	}
	return sleep
}

// Jitter spreads a backoff by +/-20% so concurrent runs do not retry
// in lockstep.
func Jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := 0.2 * base.Seconds()
	low := base.Seconds() - delta
	v := low + rand.Float64()*2*delta
	return time.Duration(v * float64(time.Second))
}
