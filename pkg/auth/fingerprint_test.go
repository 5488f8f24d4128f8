package auth

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
	"github.com/tendant/simple-idm-otp/pkg/repository/memory"
)

func TestClientFingerprint(t *testing.T) {
	a := clientFingerprint("10.0.0.1", "curl/8")
	if len(a) != 12 {
		t.Fatalf("fingerprint length = %d, want 12", len(a))
	}
	if a != clientFingerprint("10.0.0.1", "curl/8") {
		t.Error("fingerprint should be deterministic")
	}
	if a == clientFingerprint("10.0.0.2", "curl/8") {
		t.Error("different address should change the fingerprint")
	}
}

func TestClientChange(t *testing.T) {
	owner := uuid.New()
	session := &domain.Session{UserID: owner, IPAddress: "10.0.0.1", UserAgent: "curl/8"}

	tests := []struct {
		name    string
		userID  uuid.UUID
		address string
		agent   string
		want    string
	}{
		{"same client", owner, "10.0.0.1", "curl/8", ""},
		{"new address", owner, "10.0.0.9", "curl/8", "address"},
		{"new agent", owner, "10.0.0.1", "firefox", "user_agent"},
		{"both", owner, "10.0.0.9", "firefox", "address+user_agent"},
		{"other user", uuid.New(), "10.0.0.1", "curl/8", "user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clientChange(session, tt.userID, tt.address, tt.agent); got != tt.want {
				t.Errorf("clientChange() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionRegistry_OpenLogsClientChange(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	store := memory.NewSessionsRepository()
	reg := NewSessionRegistry(store, nil, logger)
	ctx := context.Background()
	user := uuid.New()

	if err := reg.Open(ctx, user, "sess-1", "curl/8", "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if err := reg.Open(ctx, user, "sess-1", "curl/8", "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("same client should not log, got %q", buf.String())
	}

	if err := reg.Open(ctx, user, "sess-1", "firefox", "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "session reused by a different client") || !strings.Contains(out, "change=user_agent") {
		t.Errorf("log = %q", out)
	}
	if strings.Contains(out, "10.0.0.1") {
		t.Error("raw address must not be logged")
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.UserAgent != "curl/8" {
		t.Errorf("stored user agent = %q, the first client must be kept", got.UserAgent)
	}
}
