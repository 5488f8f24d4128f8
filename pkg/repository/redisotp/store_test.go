package redisotp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-idm-otp/pkg/auth"
	"github.com/tendant/simple-idm-otp/pkg/domain"
	"github.com/tendant/simple-idm-otp/pkg/repository/memory"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newCode(userID uuid.UUID, code string) *domain.OneTimeCode {
	return &domain.OneTimeCode{
		ID:        uuid.New(),
		UserID:    userID,
		Code:      code,
		SessionID: "sess-1",
		Purpose:   domain.OTPPurposeLogin,
		ExpiresAt: testNow.Add(3 * time.Minute),
		CreatedAt: testNow,
	}
}

func TestStore_ReplaceSupersedes(t *testing.T) {
	_, client := newTestRedis(t)
	store := New(client, "test").WithClock(func() time.Time { return testNow })
	ctx := context.Background()
	userID := uuid.New()

	if err := store.Replace(ctx, newCode(userID, "111111")); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if err := store.Replace(ctx, newCode(userID, "222222")); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	if _, err := store.FindUnused(ctx, userID, "111111", "sess-1", domain.OTPPurposeLogin); !errors.Is(err, domain.ErrInvalidCode) {
		t.Errorf("superseded code: expected ErrInvalidCode, got %v", err)
	}
	got, err := store.FindUnused(ctx, userID, "222222", "sess-1", domain.OTPPurposeLogin)
	if err != nil {
		t.Fatalf("FindUnused failed: %v", err)
	}
	if !got.ExpiresAt.Equal(testNow.Add(3*time.Minute)) || got.UserID != userID || got.IsUsed {
		t.Errorf("unexpected record %+v", got)
	}
}

func TestStore_ScopedByTuple(t *testing.T) {
	_, client := newTestRedis(t)
	store := New(client, "")
	ctx := context.Background()
	userID := uuid.New()

	if err := store.Replace(ctx, newCode(userID, "123456")); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	tests := []struct {
		name      string
		userID    uuid.UUID
		sessionID string
		purpose   domain.OTPPurpose
	}{
		{"other session", userID, "sess-2", domain.OTPPurposeLogin},
		{"other purpose", userID, "sess-1", domain.OTPPurposePasswordReset},
		{"other user", uuid.New(), "sess-1", domain.OTPPurposeLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.FindUnused(ctx, tt.userID, "123456", tt.sessionID, tt.purpose)
			if !errors.Is(err, domain.ErrInvalidCode) {
				t.Errorf("expected ErrInvalidCode, got %v", err)
			}
		})
	}
}

func TestStore_MarkUsedOnce(t *testing.T) {
	_, client := newTestRedis(t)
	store := New(client, "test")
	ctx := context.Background()
	code := newCode(uuid.New(), "333333")

	if err := store.Replace(ctx, code); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	found, err := store.FindUnused(ctx, code.UserID, "333333", "sess-1", domain.OTPPurposeLogin)
	if err != nil {
		t.Fatalf("FindUnused failed: %v", err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.MarkUsed(ctx, found)
			switch {
			case err == nil:
				wins.Add(1)
			case !errors.Is(err, domain.ErrInvalidCode):
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly one consumer, got %d", wins.Load())
	}
	if _, err := store.FindUnused(ctx, code.UserID, "333333", "sess-1", domain.OTPPurposeLogin); !errors.Is(err, domain.ErrInvalidCode) {
		t.Errorf("consumed code: expected ErrInvalidCode, got %v", err)
	}
}

func TestStore_MarkUsedAfterReplace(t *testing.T) {
	_, client := newTestRedis(t)
	store := New(client, "test")
	ctx := context.Background()
	first := newCode(uuid.New(), "444444")

	if err := store.Replace(ctx, first); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	second := newCode(first.UserID, "555555")
	if err := store.Replace(ctx, second); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	if err := store.MarkUsed(ctx, first); !errors.Is(err, domain.ErrInvalidCode) {
		t.Errorf("expected ErrInvalidCode for superseded code, got %v", err)
	}
}

func TestStore_KeyExpiresAfterRetention(t *testing.T) {
	mr, client := newTestRedis(t)
	store := New(client, "test").WithClock(func() time.Time { return testNow })
	ctx := context.Background()
	code := newCode(uuid.New(), "666666")

	if err := store.Replace(ctx, code); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	key := store.key(code.UserID, code.SessionID, code.Purpose)
	if ttl := mr.TTL(key); ttl != 3*time.Minute+defaultRetention {
		t.Errorf("ttl = %v, want %v", ttl, 3*time.Minute+defaultRetention)
	}

	mr.FastForward(3*time.Minute + defaultRetention + time.Second)
	if _, err := store.FindUnused(ctx, code.UserID, "666666", "sess-1", domain.OTPPurposeLogin); !errors.Is(err, domain.ErrInvalidCode) {
		t.Errorf("expected ErrInvalidCode after key expiry, got %v", err)
	}
}

func TestStore_WithOTPService(t *testing.T) {
	_, client := newTestRedis(t)
	now := testNow
	clock := func() time.Time { return now }

	users := memory.NewUsersRepository()
	user := &domain.User{ID: uuid.New(), Email: "a@x.com", IsActive: true}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	store := New(client, "test").WithClock(clock)
	svc := auth.NewOTPService(store, users, 3*time.Minute, clock, nil, nil)
	ctx := context.Background()

	code, err := svc.Issue(ctx, user.ID, "sess-1", domain.OTPPurposeLogin)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	now = testNow.Add(181 * time.Second)
	if _, err := svc.Verify(ctx, "a@x.com", code, "sess-1", domain.OTPPurposeLogin); !errors.Is(err, domain.ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}

	now = testNow
	code, err = svc.Issue(ctx, user.ID, "sess-1", domain.OTPPurposeLogin)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	now = testNow.Add(180 * time.Second)
	if _, err := svc.Verify(ctx, "a@x.com", code, "sess-1", domain.OTPPurposeLogin); err != nil {
		t.Fatalf("Verify at boundary failed: %v", err)
	}
	if _, err := svc.Verify(ctx, "a@x.com", code, "sess-1", domain.OTPPurposeLogin); !errors.Is(err, domain.ErrInvalidCode) {
		t.Errorf("second Verify: expected ErrInvalidCode, got %v", err)
	}
}
