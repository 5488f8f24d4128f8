package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// DefaultTokenTTL is the validity window of issued bearer tokens.
const DefaultTokenTTL = 10 * 24 * time.Hour

// TokenConfig holds bearer token configuration.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// AccessTokenClaims represents the claims in a bearer token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	SessionID string `json:"sessionId"`
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenIssuer creates a token issuer.
func NewTokenIssuer(config TokenConfig, now func() time.Time) *TokenIssuer {
	if config.TTL == 0 {
		config.TTL = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{config: config, now: now}
}

// TTL returns the token validity window.
func (t *TokenIssuer) TTL() time.Duration {
	return t.config.TTL
}

// Issue signs a token bound to the user and the client session.
func (t *TokenIssuer) Issue(userID uuid.UUID, email, sessionID string) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.config.TTL)

	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    t.config.Issuer,
			ID:        uuid.NewString(),
		},
		UserID:    userID.String(),
		Email:     email,
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature, expiry and issuer, and returns the embedded identity.
func (t *TokenIssuer) Verify(tokenString string) (*domain.TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return t.config.Secret, nil
	}, opts...)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessTokenClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, errors.Join(domain.ErrInvalidToken, err)
	}

	out := &domain.TokenClaims{
		UserID:    userID,
		Email:     claims.Email,
		SessionID: claims.SessionID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
