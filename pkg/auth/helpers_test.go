package auth

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tendant/simple-idm-otp/pkg/domain"
	"github.com/tendant/simple-idm-otp/pkg/repository/memory"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentCode struct {
	To      string
	Code    string
	Purpose domain.OTPPurpose
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (m *captureMailer) SendOTP(ctx context.Context, to, code string, purpose domain.OTPPurpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentCode{To: to, Code: code, Purpose: purpose})
	return nil
}

func (m *captureMailer) last(t *testing.T) sentCode {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no code was sent")
	}
	return m.sent[len(m.sent)-1]
}

type testEnv struct {
	svc    *Service
	store  *memory.Store
	clock  *fakeClock
	mailer *captureMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	for _, name := range []string{domain.PermissionUserView, domain.PermissionUserCreate} {
		if err := store.Roles.UpsertPermission(ctx, &domain.Permission{Name: name}); err != nil {
			t.Fatalf("seed permission: %v", err)
		}
	}
	roles := []*domain.Role{
		{Name: domain.RoleViewer, Permissions: []string{domain.PermissionUserView}},
		{Name: domain.RoleSuperAdmin, Permissions: []string{domain.PermissionUserView, domain.PermissionUserCreate}},
	}
	for _, r := range roles {
		if err := store.Roles.UpsertRole(ctx, r); err != nil {
			t.Fatalf("seed role: %v", err)
		}
	}

	clock := newFakeClock()
	mailer := &captureMailer{}
	svc := NewService(ServiceConfig{
		BcryptCost: bcrypt.MinCost,
		Token:      TokenConfig{Secret: []byte("test-secret"), Issuer: "test"},
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:        clock.Now,
	}, Stores{
		Users:    store.Users,
		History:  store.History,
		OTPs:     store.OTPs,
		Sessions: store.Sessions,
		Roles:    store.Roles,
	}, mailer)

	return &testEnv{svc: svc, store: store, clock: clock, mailer: mailer}
}

func (e *testEnv) signup(t *testing.T, email, password string) *domain.User {
	t.Helper()
	user, err := e.svc.Signup(context.Background(), SignupInput{Name: "Test User", Email: email, Password: password})
	if err != nil {
		t.Fatalf("Signup(%s) failed: %v", email, err)
	}
	return user
}

func (e *testEnv) login(t *testing.T, email, password, sessionID string) string {
	t.Helper()
	res, err := e.svc.Login(context.Background(), LoginInput{Email: email, Password: password, SessionID: sessionID})
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	if !res.RequiresOTP {
		t.Fatal("login should require an OTP")
	}
	return e.mailer.last(t).Code
}

// resetPassword runs forgot-password and reset-password end to end.
func (e *testEnv) resetPassword(t *testing.T, email, newPassword string) error {
	t.Helper()
	ctx := context.Background()
	sessionID, err := e.svc.ForgotPassword(ctx, email, "")
	if err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	code := e.mailer.last(t).Code
	return e.svc.ResetPassword(ctx, ResetPasswordInput{Email: email, Code: code, SessionID: sessionID, NewPassword: newPassword})
}
