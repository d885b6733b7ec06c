package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.DeadlineExceeded, true},
		{statusErr(500), true},
		{statusErr(429), true},
		{statusErr(408), true},
		{statusErr(401), false},
		{statusErr(403), false},
		{statusErr(400), false},
		{errors.New("plain"), false},
	}
	for _, c := range cases {
		if got := IsRetryable(c.err); got != c.want {
			t.Errorf("IsRetryable(%v)=%v want %v", c.err, got, c.want)
		}
	}
}

func TestRetryAfterHonorsHeader(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"7"}}}
	if got := RetryAfter(resp, time.Second, 30*time.Second); got != 7*time.Second {
		t.Fatalf("got %v", got)
	}
}

func TestRetryAfterCapped(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"120"}}}
	if got := RetryAfter(resp, time.Second, 30*time.Second); got != 30*time.Second {
		t.Fatalf("got %v", got)
	}
}

func TestRetryAfterFallback(t *testing.T) {
	if got := RetryAfter(nil, 2*time.Second, 30*time.Second); got != 2*time.Second {
		t.Fatalf("got %v", got)
	}
}

func TestJitterBounds(t *testing.T) {
	base := time.Second
	for i := 0; i < 100; i++ {
		v := Jitter(base)
		if v < 800*time.Millisecond || v > 1200*time.Millisecond {
			t.Fatalf("jitter out of bounds: %v", v)
		}
	}
	if Jitter(0) != 0 {
		t.Fatal("zero base must yield zero")
	}
}
