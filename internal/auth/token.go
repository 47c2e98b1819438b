package auth

import (
	"errors"
	"fmt"
	"time"

	"clipstream/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes the two token roles issued per session.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Identity is the authenticated caller established for one request. It is
// passed explicitly through every subsequent call; nothing reads it from
// ambient state.
type Identity struct {
	ID          string
	Handle      string
	DisplayName string
}

// Claims is the signed payload of both token kinds. Access tokens carry the
// denormalized display fields so request handling avoids a store round-trip.
type Claims struct {
	Kind        string `json:"kind"`
	Handle      string `json:"handle,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	jwt.RegisteredClaims
}

// CodecOption configures a Codec instance.
type CodecOption func(*Codec)

// WithAccessTTL overrides the default access token lifetime.
func WithAccessTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the default refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.refreshTTL = ttl
		}
	}
}

// WithClock injects the time source used for issue and expiry instants.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// Codec signs and verifies compact expiring identity claims. Configuration is
// loaded once at startup and immutable thereafter.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec constructs a Codec signing with the provided secret.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("token signing secret required")
	}
	codec := &Codec{
		secret:     []byte(secret),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(codec)
		}
	}
	return codec, nil
}

// TTL returns the configured lifetime for the provided kind.
func (c *Codec) TTL(kind TokenKind) time.Duration {
	if kind == TokenKindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Issue produces a signed, time-bounded token for the identity.
func (c *Codec) Issue(identity Identity, kind TokenKind) (string, time.Time, error) {
	const op = "auth.Codec.Issue"
	if identity.ID == "" {
		return "", time.Time{}, apperr.Validation(op, "identity id is required")
	}
	now := c.now().UTC()
	expiresAt := now.Add(c.TTL(kind))
	// The jti makes every issuance distinct. Issue timestamps truncate to
	// whole seconds, so without it two tokens minted back to back would be
	// byte-identical and rotation could not tell successor from predecessor.
	claims := Claims{
		Kind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if kind == TokenKindAccess {
		claims.Handle = identity.Handle
		claims.DisplayName = identity.DisplayName
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, apperr.Internal(op, fmt.Errorf("sign token: %w", err))
	}
	return token, expiresAt, nil
}

// Verify parses the token, checks signature and expiry, and confirms the
// claim carries the expected kind.
func (c *Codec) Verify(token string, kind TokenKind) (Identity, error) {
	const op = "auth.Codec.Verify"
	if token == "" {
		return Identity{}, apperr.Unauthorized(op, "token is required")
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperr.Wrap(apperr.KindUnauthorized, op, "token expired", err)
		}
		return Identity{}, apperr.Wrap(apperr.KindUnauthorized, op, "invalid token", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, apperr.Unauthorized(op, "invalid token claims")
	}
	if claims.Kind != string(kind) {
		return Identity{}, apperr.Unauthorized(op, "token kind mismatch")
	}
	if claims.Subject == "" {
		return Identity{}, apperr.Unauthorized(op, "token missing subject")
	}
	return Identity{
		ID:          claims.Subject,
		Handle:      claims.Handle,
		DisplayName: claims.DisplayName,
	}, nil
}
