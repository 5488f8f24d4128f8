// Package redisotp stores one-time codes in Redis. Each (user, session,
// purpose) tuple owns a single hash, so issuing a new code overwrites the
// previous one and supersede is atomic by construction.
package redisotp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

const (
	defaultPrefix = "idm:otp"

	// Expired codes stay readable this long so callers can tell an expired
	// code from a wrong one.
	defaultRetention = time.Hour

	fieldID        = "id"
	fieldCode      = "code"
	fieldExpiresAt = "expires_at"
	fieldCreatedAt = "created_at"
	fieldUsed      = "used"

	maxRetries = 4
)

// Store implements auth.OTPStore on Redis.
type Store struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// New creates a Store. An empty prefix falls back to "idm:otp".
func New(client redis.UniversalClient, prefix string) *Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{
		client:    client,
		prefix:    prefix,
		retention: defaultRetention,
		now:       time.Now,
	}
}

// WithClock overrides the clock used to compute key expiry, used in tests.
func (s *Store) WithClock(clock func() time.Time) *Store {
	if clock != nil {
		s.now = clock
	}
	return s
}

func (s *Store) key(userID uuid.UUID, sessionID string, purpose domain.OTPPurpose) string {
	return s.prefix + ":" + userID.String() + ":" + string(purpose) + ":" + sessionID
}

// Replace overwrites whatever code the tuple held with code.
func (s *Store) Replace(ctx context.Context, code *domain.OneTimeCode) error {
	key := s.key(code.UserID, code.SessionID, code.Purpose)
	ttl := code.ExpiresAt.Sub(s.now()) + s.retention
	if ttl <= 0 {
		ttl = s.retention
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldID:        code.ID.String(),
		fieldCode:      code.Code,
		fieldExpiresAt: strconv.FormatInt(code.ExpiresAt.UnixNano(), 10),
		fieldCreatedAt: strconv.FormatInt(code.CreatedAt.UnixNano(), 10),
		fieldUsed:      "0",
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis replace otp: %w", err)
	}
	return nil
}

// FindUnused returns the tuple's code if it matches and is unconsumed.
func (s *Store) FindUnused(ctx context.Context, userID uuid.UUID, code, sessionID string, purpose domain.OTPPurpose) (*domain.OneTimeCode, error) {
	values, err := s.client.HGetAll(ctx, s.key(userID, sessionID, purpose)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis fetch otp: %w", err)
	}
	if len(values) == 0 || values[fieldUsed] != "0" {
		return nil, domain.ErrInvalidCode
	}
	if subtle.ConstantTimeCompare([]byte(values[fieldCode]), []byte(code)) != 1 {
		return nil, domain.ErrInvalidCode
	}

	record, err := decode(values)
	if err != nil {
		return nil, err
	}
	record.UserID = userID
	record.SessionID = sessionID
	record.Purpose = purpose
	return record, nil
}

// MarkUsed consumes code if it is still the tuple's current, unused code.
// Concurrent consumers race through WATCH; exactly one wins.
func (s *Store) MarkUsed(ctx context.Context, code *domain.OneTimeCode) error {
	key := s.key(code.UserID, code.SessionID, code.Purpose)

	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			values, err := tx.HMGet(ctx, key, fieldID, fieldUsed).Result()
			if err != nil {
				return err
			}
			id, _ := values[0].(string)
			used, _ := values[1].(string)
			if id != code.ID.String() || used != "0" {
				return domain.ErrInvalidCode
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, fieldUsed, "1")
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, domain.ErrInvalidCode) {
			return fmt.Errorf("redis consume otp: %w", err)
		}
		return err
	}
	// Every attempt lost to a concurrent writer, which either consumed or
	// replaced the code.
	return domain.ErrInvalidCode
}

func decode(values map[string]string) (*domain.OneTimeCode, error) {
	id, err := uuid.Parse(values[fieldID])
	if err != nil {
		return nil, fmt.Errorf("parse otp id: %w", err)
	}
	expiresAt, err := parseUnixNano(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	createdAt, err := parseUnixNano(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &domain.OneTimeCode{
		ID:        id,
		Code:      values[fieldCode],
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
		IsUsed:    values[fieldUsed] == "1",
	}, nil
}

func parseUnixNano(raw string) (time.Time, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}
