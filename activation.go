package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultActivationTTL bounds how long a minted activation token stays valid.
const DefaultActivationTTL = 5 * time.Minute

// ActivationClaims is the signed envelope for a pending registration. The
// signature covers the payload and the code together so neither can be
// altered independently.
type ActivationClaims struct {
	jwt.RegisteredClaims
	Pending PendingRegistration `json:"pending"`
	Code    string              `json:"activation_code"`
}

// ActivationCodec mints and verifies self-contained activation tokens. The
// server keeps no copy of a minted token; expiry is the only bound on its
// lifetime.
type ActivationCodec struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	now        func() time.Time
	logger     Logger
}

// ActivationCodecOption mutates codec construction.
type ActivationCodecOption func(*ActivationCodec)

// WithActivationTTL overrides the default 5 minute expiry.
func WithActivationTTL(ttl time.Duration) ActivationCodecOption {
	return func(c *ActivationCodec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithActivationClock injects the time source used for iat/exp and for
// verification, which makes expiry deterministic under test.
func WithActivationClock(now func() time.Time) ActivationCodecOption {
	return func(c *ActivationCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithActivationLogger overrides the fallback logger.
func WithActivationLogger(logger Logger) ActivationCodecOption {
	return func(c *ActivationCodec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewActivationCodec creates a codec bound to the given signing key.
func NewActivationCodec(signingKey []byte, issuer string, opts ...ActivationCodecOption) *ActivationCodec {
	c := &ActivationCodec{
		signingKey: signingKey,
		ttl:        DefaultActivationTTL,
		issuer:     issuer,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// TTL exposes the configured expiry window.
func (c *ActivationCodec) TTL() time.Duration {
	return c.ttl
}

// Now reads the codec's clock. Callers use it to report expiry consistently
// with the claims the codec writes.
func (c *ActivationCodec) Now() time.Time {
	return c.now()
}

// Mint seals the pending registration and a fresh 4-digit code into a signed
// token. The token and the code are returned separately: the token goes back
// to the caller, the code travels by email.
func (c *ActivationCodec) Mint(pending PendingRegistration) (string, string, error) {
	code, err := generateActivationCode()
	if err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate activation code")
	}

	now := c.now()
	claims := &ActivationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   pending.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Pending: pending,
		Code:    code,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign activation token")
	}

	return signed, code, nil
}

// Verify parses and validates a token, returning the embedded claims.
// Expired tokens surface ErrActivationTokenExpired; anything else that fails
// signature or shape checks surfaces ErrActivationTokenInvalid.
func (c *ActivationCodec) Verify(raw string) (*ActivationClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &ActivationClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			c.logger.Error("activation codec encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.signingKey, nil
	}, jwt.WithTimeFunc(c.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrActivationTokenExpired
		}
		return nil, ErrActivationTokenInvalid
	}

	claims, ok := token.Claims.(*ActivationClaims)
	if !ok || !token.Valid {
		return nil, ErrActivationTokenInvalid
	}

	return claims, nil
}

// generateActivationCode draws a uniformly random 4-digit code (1000-9999).
func generateActivationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}
