package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

var ctx = context.Background()

func TestMemoryLimiterAllow(t *testing.T) {
	rl := NewMemoryLimiter()

	for i := 0; i < 5; i++ {
		if ok, _ := rl.Allow(ctx, "key", 5, time.Minute); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	if ok, _ := rl.Allow(ctx, "key", 5, time.Minute); ok {
		t.Error("6th request should be denied")
	}
	if ok, _ := rl.Allow(ctx, "other", 5, time.Minute); !ok {
		t.Error("other keys have their own window")
	}
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	rl := NewMemoryLimiter()

	for i := 0; i < 3; i++ {
		rl.Allow(ctx, "key", 3, 10*time.Millisecond)
	}
	if ok, _ := rl.Allow(ctx, "key", 3, 10*time.Millisecond); ok {
		t.Error("should be blocked within window")
	}

	time.Sleep(15 * time.Millisecond)

	if ok, _ := rl.Allow(ctx, "key", 3, 10*time.Millisecond); !ok {
		t.Error("should be allowed after window expires")
	}
}

func TestMemoryLimiterCleanup(t *testing.T) {
	rl := NewMemoryLimiter()

	rl.Allow(ctx, "expired", 5, 10*time.Millisecond)
	time.Sleep(15 * time.Millisecond)
	rl.Allow(ctx, "active", 5, time.Minute)

	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.entries["expired"]; ok {
		t.Error("expired entry should have been cleaned up")
	}
	if _, ok := rl.entries["active"]; !ok {
		t.Error("active entry should still exist")
	}
}

// fakeCounter stands in for Redis INCR/EXPIRE.
type fakeCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(ctx context.Context, key string, d time.Duration) *redis.BoolCmd {
	f.expires[key] = d
	return redis.NewBoolResult(true, nil)
}

func TestRedisLimiter(t *testing.T) {
	fc := &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
	rl := &RedisLimiter{client: fc, prefix: "rl:"}

	for i := 0; i < 2; i++ {
		if ok, err := rl.Allow(ctx, "1.2.3.4", 2, time.Minute); err != nil || !ok {
			t.Fatalf("request %d: ok=%v err=%v", i+1, ok, err)
		}
	}
	if ok, _ := rl.Allow(ctx, "1.2.3.4", 2, time.Minute); ok {
		t.Error("3rd request should be denied")
	}
	if fc.expires["rl:1.2.3.4"] != time.Minute {
		t.Errorf("expire = %v, want 1m on first hit", fc.expires["rl:1.2.3.4"])
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewMemoryLimiter()
	keyFunc := func(r *http.Request) string { return "test" }

	handler := RateLimit(rl, keyFunc, 2, time.Minute, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	fc := &fakeCounter{err: errors.New("connection refused")}
	rl := &RedisLimiter{client: fc}

	handler := RateLimit(rl, RealIP, 1, time.Minute, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when limiter is down", rec.Code)
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"cloudflare", map[string]string{"CF-Connecting-IP": "9.9.9.9"}, "1.1.1.1:80", "9.9.9.9"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "8.8.8.8, 10.0.0.1"}, "1.1.1.1:80", "8.8.8.8"},
		{"remote addr", nil, "1.1.1.1:80", "1.1.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := RealIP(r); got != tt.want {
				t.Errorf("RealIP = %q, want %q", got, tt.want)
			}
		})
	}
}
