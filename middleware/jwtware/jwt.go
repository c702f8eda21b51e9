// Package jwtware is a small fiber middleware that guards routes behind a
// bearer JWT. Token validation is delegated to the identity package's token
// service so the middleware stays free of key handling.
package jwtware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ErrJWTMissingOrMalformed is returned when no usable bearer token is present
var ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")

// TokenValidator interface for validating tokens without import cycles.
// This mirrors the TokenService.Validate method from the identity package.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// AuthClaims interface for structured claims without import cycles.
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	HasRole(role string) bool
}

type Config struct {
	// TokenValidator is required for token validation
	TokenValidator TokenValidator
	// ContextKey is where validated claims are stored on the request context
	ContextKey string
	// AuthScheme expected in the Authorization header, defaults to "Bearer"
	AuthScheme string
	// ErrorHandler runs when extraction or validation fails
	ErrorHandler fiber.ErrorHandler
	// RequiredRole optionally restricts the route to a single role
	RequiredRole string
}

func makeCfg(config []Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or missing credential",
			})
		}
	}

	return cfg
}

// New returns the guard middleware.
func New(config ...Config) fiber.Handler {
	cfg := makeCfg(config)

	return func(c *fiber.Ctx) error {
		raw, err := tokenFromHeader(c, cfg.AuthScheme)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.TokenValidator.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if cfg.RequiredRole != "" && !claims.HasRole(cfg.RequiredRole) {
			return cfg.ErrorHandler(c, errors.New("insufficient role"))
		}

		c.Locals(cfg.ContextKey, claims)
		return c.Next()
	}
}

// ClaimsFromContext retrieves validated claims stored by the middleware.
func ClaimsFromContext(c *fiber.Ctx, contextKey string) (AuthClaims, bool) {
	claims, ok := c.Locals(contextKey).(AuthClaims)
	return claims, ok
}

func tokenFromHeader(c *fiber.Ctx, authScheme string) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", ErrJWTMissingOrMalformed
	}

	prefix := authScheme + " "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrJWTMissingOrMalformed
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", ErrJWTMissingOrMalformed
	}

	return token, nil
}
