package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/tendant/simple-idm-otp/pkg/auth"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

var _ auth.Observer = (*AuthMetrics)(nil)

func TestAuthMetrics_Observer(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewAuthMetrics(registry)
	if err != nil {
		t.Fatalf("NewAuthMetrics failed: %v", err)
	}

	m.LoginAttempt("invalid_credentials")
	m.LoginAttempt("invalid_credentials")
	m.AccountLocked()
	m.OTPIssued(domain.OTPPurposeLogin)
	m.OTPVerified(domain.OTPPurposeLogin, "expired")

	if got := testutil.ToFloat64(m.Logins.WithLabelValues("invalid_credentials")); got != 2 {
		t.Errorf("login counter = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.Lockouts); got != 1 {
		t.Errorf("lockout counter = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.OTPIssue.WithLabelValues("login")); got != 1 {
		t.Errorf("otp issued counter = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.OTPVerify.WithLabelValues("login", "expired")); got != 1 {
		t.Errorf("otp verify counter = %f, want 1", got)
	}
}

func TestAuthMetrics_ReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewAuthMetrics(registry)
	if err != nil {
		t.Fatalf("NewAuthMetrics failed: %v", err)
	}
	second, err := NewAuthMetrics(registry)
	if err != nil {
		t.Fatalf("second NewAuthMetrics failed: %v", err)
	}

	first.AccountLocked()
	if got := testutil.ToFloat64(second.Lockouts); got != 1 {
		t.Errorf("expected shared collector, got %f", got)
	}
}

func TestHTTPMetrics_RecordsRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("NewHTTPMetrics failed: %v", err)
	}

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	labels := prometheus.Labels{"method": http.MethodGet, "route": "/users/{id}", "status": "201"}
	if got := testutil.ToFloat64(m.Requests.With(labels)); got != 1 {
		t.Fatalf("expected request counter 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.InFlight); got != 0 {
		t.Fatalf("expected in-flight gauge to return to 0, got %f", got)
	}
	if samples := testutil.CollectAndCount(m.Duration); samples == 0 {
		t.Fatalf("expected histogram collector to have at least one sample")
	}
}

func TestHTTPMetrics_NilIsNoop(t *testing.T) {
	r := chi.NewRouter()
	r.Use((*HTTPMetrics)(nil).Middleware)
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestHandler_ExposesRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewAuthMetrics(registry)
	if err != nil {
		t.Fatalf("NewAuthMetrics failed: %v", err)
	}
	m.AccountLocked()

	rr := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "idm_auth_lockouts_total 1") {
		t.Errorf("metrics output missing lockout counter:\n%s", rr.Body.String())
	}
}
