package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tendant/simple-idm-otp/pkg/domain"
)

func TestWriteError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	until := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"invalid credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{"locked", &domain.LockedError{Until: until}, http.StatusLocked, "account locked. try again later"},
		{"password expired", &domain.PasswordExpiredError{RequiresReset: true}, http.StatusForbidden, domain.ErrPasswordExpired.Error()},
		{"already exists", fmt.Errorf("signup: %w", domain.ErrUserAlreadyExists), http.StatusConflict, "user already exists"},
		{"reuse", domain.ErrCannotReusePassword, http.StatusBadRequest, domain.ErrCannotReusePassword.Error()},
		{"not found", domain.ErrUserNotFound, http.StatusNotFound, "user not found"},
		{"invalid code", domain.ErrInvalidCode, http.StatusBadRequest, "invalid otp"},
		{"code expired", domain.ErrCodeExpired, http.StatusBadRequest, "otp expired"},
		{"validation", domain.NewValidationError("email", "invalid email format"), http.StatusBadRequest, "email: invalid email format"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, domain.ErrForbidden.Error()},
		{"invalid token", domain.ErrInvalidToken, http.StatusUnauthorized, "invalid token"},
		{"dependency", domain.Dependency("send otp", errors.New("smtp down")), http.StatusServiceUnavailable, "service temporarily unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, logger, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != tt.wantError {
				t.Errorf("Error = %q, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestWriteError_NextActionFields(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, nil, &domain.LockedError{Until: time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)})
	if !strings.Contains(rec.Body.String(), `"locked_until":"2026-03-01T12:30:00Z"`) {
		t.Errorf("locked response missing locked_until: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	WriteError(rec, nil, &domain.PasswordExpiredError{RequiresReset: true})
	if !strings.Contains(rec.Body.String(), `"requires_password_reset":true`) {
		t.Errorf("expired response missing requires_password_reset: %s", rec.Body.String())
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		body       io.Reader
		limit      int64
		wantOK     bool
		wantStatus int
	}{
		{"valid", strings.NewReader(`{"email":"a@x.com"}`), 1024, true, http.StatusOK},
		{"invalid json", strings.NewReader(`{invalid}`), 1024, false, http.StatusBadRequest},
		{"too large", bytes.NewReader(bytes.Repeat([]byte(" "), 200)), 100, false, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", tt.body)
			req.Body = http.MaxBytesReader(rec, req.Body, tt.limit)

			var dst struct {
				Email string `json:"email"`
			}
			if ok := Decode(rec, req, &dst); ok != tt.wantOK {
				t.Fatalf("Decode ok = %v, want %v", ok, tt.wantOK)
			}
			if !tt.wantOK && rec.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer abc", "abc", true},
		{"Basic dXNlcg==", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := BearerToken(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "192.168.1.1:12345", nil, "192.168.1.1"},
		{"ipv6 remote addr", "[::1]:8080", nil, "::1"},
		{"forwarded chain", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "203.0.113.5"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
		{"no port", "192.168.1.1", nil, "192.168.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
