package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requestFrom(e *echo.Echo, ip string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	handler := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5}).Middleware()(okHandler)

	for i := 0; i < 5; i++ {
		c, rec := requestFrom(e, "10.0.0.1")
		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	handler := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2}).Middleware()(okHandler)

	for i := 0; i < 2; i++ {
		c, _ := requestFrom(e, "10.0.0.1")
		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	c, rec := requestFrom(e, "10.0.0.1")
	err := handler(c)
	if err == nil {
		t.Fatal("expected error for rate-limited request")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header to be set")
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected X-RateLimit-Remaining '0', got %q", got)
	}
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	e := echo.New()
	handler := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}).Middleware()(okHandler)

	c1, _ := requestFrom(e, "10.0.0.1")
	if err := handler(c1); err != nil {
		t.Fatalf("client a first request: %v", err)
	}
	c2, _ := requestFrom(e, "10.0.0.1")
	if err := handler(c2); err == nil {
		t.Fatal("client a second request: expected rate limit error")
	}
	c3, _ := requestFrom(e, "10.0.0.2")
	if err := handler(c3); err != nil {
		t.Fatalf("client b first request: expected no error, got %v", err)
	}
}

func TestRateLimiter_SweepForgetsFullBuckets(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 3})

	rl.bucket("idle")
	c, _ := requestFrom(e, "10.0.0.9")
	rl.Middleware()(okHandler)(c)

	if removed := rl.Sweep(); removed != 1 {
		t.Errorf("expected only the idle bucket to be swept, got %d", removed)
	}
	if _, ok := rl.clients["10.0.0.9"]; !ok {
		t.Error("expected the drained bucket to be kept")
	}
}

func TestRateLimiter_SameBucketPerKey(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimitConfig())
	if rl.bucket("a") != rl.bucket("a") {
		t.Error("expected same bucket instance for same key")
	}
	if rl.bucket("a") == rl.bucket("b") {
		t.Error("expected different bucket for different key")
	}
}
