package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrMalformedToken = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrExpiredToken   = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrWrongTokenType = errors.New("wrong token type")

	ErrEmptySecret      = errors.New("signing secret is empty")
	ErrUnsupportedAlg   = errors.New("unsupported signing algorithm")
	ErrEmptySubject     = errors.New("subject is empty")
	ErrUnknownTokenType = errors.New("unknown token type")
	ErrNegativeTokenTTL = errors.New("token ttl is negative")
)

// Claims is the payload carried by every issued token.
type Claims struct {
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// Expect returns ErrWrongTokenType unless the claims are of type t.
func (c *Claims) Expect(t TokenType) error {
	if c.Type != t {
		return fmt.Errorf("%w: want %s, got %q", ErrWrongTokenType, t, c.Type)
	}
	return nil
}

// Issuer signs and decodes tokens with a single HMAC key. It holds no
// mutable state and is safe for concurrent use.
type Issuer struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

type Option func(*Issuer)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// New builds an Issuer for one of HS256, HS384 or HS512.
func New(secret, algorithm string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	method, ok := jwt.GetSigningMethod(strings.ToUpper(algorithm)).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlg, algorithm)
	}

	i := &Issuer{
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

// Issue creates a signed token for subject that expires ttl from now.
func (i *Issuer) Issue(subject string, ttl time.Duration, typ TokenType) (string, error) {
	const op = "jwt.Issue"

	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptySubject)
	}
	if typ != TypeAccess && typ != TypeRefresh {
		return "", fmt.Errorf("%s: %w: %q", op, ErrUnknownTokenType, typ)
	}
	if ttl < 0 {
		return "", fmt.Errorf("%s: %w", op, ErrNegativeTokenTTL)
	}

	now := i.now()

	token := jwt.NewWithClaims(i.method, Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Decode verifies the signature and expiry of token and returns its claims.
// A token is rejected from the exact second its exp claim names.
// The token type is not checked here, see Claims.Expect.
func (i *Issuer) Decode(token string) (*Claims, error) {
	const op = "jwt.Decode"

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	claims := &Claims{}

	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if strings.TrimSpace(claims.Subject) == "" || claims.Type == "" {
		return nil, fmt.Errorf("%s: %w: missing sub or type", op, ErrMalformedToken)
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}
