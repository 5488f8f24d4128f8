package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

type stubAuth struct {
	user    *domain.User
	allowed map[string]bool
	permErr error
}

func (s *stubAuth) Authenticate(ctx context.Context, token string) (*domain.User, *domain.TokenClaims, error) {
	if token != "good" || s.user == nil {
		return nil, nil, domain.ErrInvalidToken
	}
	return s.user, &domain.TokenClaims{UserID: s.user.ID, Email: s.user.Email, SessionID: "sess"}, nil
}

func (s *stubAuth) HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	if s.permErr != nil {
		return false, s.permErr
	}
	return s.allowed[permission], nil
}

func TestAuthenticate(t *testing.T) {
	stub := &stubAuth{user: &domain.User{ID: uuid.New(), Email: "a@x.com", IsActive: true}}

	var seen *domain.User
	handler := Authenticate(stub)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUser(r.Context())
		if claims, ok := GetClaims(r.Context()); !ok || claims.SessionID != "sess" {
			t.Error("claims missing from context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer bad", http.StatusUnauthorized},
		{"good token", "Bearer good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	if seen == nil || seen.ID != stub.user.ID {
		t.Error("user was not placed in context")
	}
}

func TestAuthorize(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	user := &domain.User{ID: uuid.New(), IsActive: true}

	tests := []struct {
		name       string
		stub       *stubAuth
		withUser   bool
		wantStatus int
	}{
		{"no user in context", &stubAuth{}, false, http.StatusUnauthorized},
		{"permission granted", &stubAuth{allowed: map[string]bool{"user.view": true}}, true, http.StatusOK},
		{"permission missing", &stubAuth{allowed: map[string]bool{"user.create": true}}, true, http.StatusForbidden},
		{"store failure", &stubAuth{permErr: errors.New("db down")}, true, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Authorize(tt.stub, "user.view", logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			if tt.withUser {
				req = req.WithContext(context.WithValue(req.Context(), UserKey, user))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
