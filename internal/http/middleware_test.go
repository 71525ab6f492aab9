package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/realweather/forecast-service/internal/health"
)

func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Context().Value("correlation_id"); v != nil {
			seen = v.(string)
		}
	})
	handler := CorrelationIDMiddleware(zap.NewNop())(inner)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/predict", nil))

	if seen == "" {
		t.Error("correlation_id missing from request context")
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != seen {
		t.Errorf("X-Correlation-ID header = %q, want %q", got, seen)
	}
}

func TestCorrelationIDMiddleware_PropagatesIncomingID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context().Value("correlation_id").(string)
	})
	handler := CorrelationIDMiddleware(zap.NewNop())(inner)

	req := httptest.NewRequest("GET", "/predict", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "abc-123" {
		t.Errorf("correlation_id = %q, want abc-123", seen)
	}
}

func TestCorrelationIDMiddleware_InjectsLogger(t *testing.T) {
	var got *zap.Logger
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = r.Context().Value("logger").(*zap.Logger)
	})
	handler := CorrelationIDMiddleware(zap.NewNop())(inner)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/predict", nil))

	if got == nil {
		t.Error("logger missing from request context")
	}
}

func TestRateLimitMiddleware_Denies(t *testing.T) {
	t.Cleanup(health.Reset)

	limiter := rate.NewLimiter(rate.Limit(0), 1) // one token, never refilled
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest("GET", "/predict", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest("GET", "/predict", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	if health.DenialCount(time.Minute) != 1 {
		t.Errorf("DenialCount = %d, want 1", health.DenialCount(time.Minute))
	}
	if health.RequestCount(time.Minute) != 2 {
		t.Errorf("RequestCount = %d, want 2", health.RequestCount(time.Minute))
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	handler := RateLimitMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/predict", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var hasDeadline bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	})
	handler := TimeoutMiddleware(50 * time.Millisecond)(inner)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/data", nil))

	if !hasDeadline {
		t.Error("request context has no deadline")
	}
}

func TestMetricsMiddleware_RecordsStatus(t *testing.T) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/data", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 passed through", rec.Code)
	}
	if InFlightCount() != 0 {
		t.Errorf("InFlightCount = %d after completion, want 0", InFlightCount())
	}
}
