// Package token issues and validates the signed bearer tokens the gateway
// accepts on synthesis requests.
//
// Tokens are HMAC-signed JWTs carrying a user identity, a role, and a
// permission set. The signing secret is loaded once at process start and
// is immutable for the process lifetime; the service holds no other state
// and is safe for unlimited concurrent use.
package token

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the token lifetime used when the caller does not specify one.
const DefaultTTL = 24 * time.Hour

// Issuer is the iss claim stamped on every issued token.
const Issuer = "voxgate"

// insecureDevSecret is used only when AllowInsecure is set and no secret is
// configured. It must never reach a production deployment.
const insecureDevSecret = "voxgate-insecure-dev-secret"

// Sentinel errors. Validate maps golang-jwt failures onto exactly one of
// ErrExpired, ErrMalformed, or ErrSignature so callers can propagate the
// failure kind unchanged.
var (
	ErrInvalidInput = errors.New("token: user_id must be non-empty")
	ErrNoSecret     = errors.New("token: signing secret is required")
	ErrExpired      = errors.New("token: token is expired")
	ErrMalformed    = errors.New("token: token is malformed")
	ErrSignature    = errors.New("token: signature verification failed")
)

// Claims is the payload carried by every issued token.
type Claims struct {
	UserID      string   `json:"user_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	jwtlib.RegisteredClaims
}

// Config holds the token service configuration.
type Config struct {
	// Secret is the process-wide HMAC signing secret.
	Secret string

	// Algorithm is the HMAC signing algorithm: HS256 (default), HS384, or HS512.
	Algorithm string

	// DefaultTTL overrides the 24h default token lifetime.
	DefaultTTL time.Duration

	// AllowInsecure permits starting without a secret, substituting a
	// built-in development secret. A warning is logged at construction.
	AllowInsecure bool
}

// Service issues and validates bearer tokens.
type Service struct {
	secret []byte
	method jwtlib.SigningMethod
	ttl    time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a token service. It fails with ErrNoSecret when no secret is
// configured and AllowInsecure is not set.
func New(cfg Config) (*Service, error) {
	secret := cfg.Secret
	if secret == "" {
		if !cfg.AllowInsecure {
			return nil, ErrNoSecret
		}
		slog.Warn("token service running with built-in development secret; do not use in production")
		secret = insecureDevSecret
	}

	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Service{
		secret: []byte(secret),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// signingMethod resolves the configured algorithm name to an HMAC method.
func signingMethod(name string) (jwtlib.SigningMethod, error) {
	switch name {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("token: unsupported algorithm %q", name)
	}
}

// Issue creates a signed token for the given user. An empty userID fails
// with ErrInvalidInput. A non-positive ttl falls back to the service default.
func (s *Service) Issue(userID, role string, permissions []string, ttl time.Duration) (string, *Claims, error) {
	if strings.TrimSpace(userID) == "" {
		return "", nil, ErrInvalidInput
	}
	if role == "" {
		role = "user"
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := s.now()
	claims := &Claims{
		UserID:      userID,
		Role:        role,
		Permissions: permissions,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			Issuer:    Issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwtlib.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("token: signing: %w", err)
	}

	return signed, claims, nil
}

// Validate parses and verifies a token string and returns its claims.
// A leading "Bearer " prefix is tolerated. Validation never mutates state.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	tokenString = strings.TrimPrefix(strings.TrimSpace(tokenString), "Bearer ")
	if tokenString == "" {
		return nil, ErrMalformed
	}

	claims := &Claims{}
	token, err := jwtlib.ParseWithClaims(tokenString, claims,
		func(t *jwtlib.Token) (any, error) {
			if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwtlib.WithValidMethods([]string{s.method.Alg()}),
		jwtlib.WithIssuer(Issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !token.Valid {
		return nil, ErrSignature
	}
	if claims.UserID == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}

// classifyParseError maps golang-jwt errors onto the package sentinels.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return fmt.Errorf("%w: %s", ErrExpired, err)
	case errors.Is(err, jwtlib.ErrTokenMalformed):
		return fmt.Errorf("%w: %s", ErrMalformed, err)
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %s", ErrSignature, err)
	default:
		// Wrong issuer, missing exp, unexpected method: treated as a
		// credential the gateway does not accept.
		return fmt.Errorf("%w: %s", ErrSignature, err)
	}
}
