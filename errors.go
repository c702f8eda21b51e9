package identity

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Stable text codes carried by client-facing errors.
const (
	TextCodeEmailExists           = "EMAIL_EXISTS"
	TextCodePhoneExists           = "PHONE_EXISTS"
	TextCodeDuplicateActivation   = "DUPLICATE_ACTIVATION"
	TextCodeTokenInvalid          = "TOKEN_INVALID"
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeInvalidActivationCode = "INVALID_ACTIVATION_CODE"
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodeValidation            = "VALIDATION"
	TextCodeDelivery              = "DELIVERY_ERROR"
)

// ErrEmailExists is returned when the email is already taken by an account
var ErrEmailExists = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailExists)

// ErrPhoneExists is returned when the phone number is already taken
var ErrPhoneExists = goerrors.New("phone number already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodePhoneExists)

// ErrDuplicateActivation is returned when an activation races a completed one
var ErrDuplicateActivation = goerrors.New("account already activated", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateActivation)

// ErrActivationTokenInvalid covers forged, tampered, or malformed tokens
var ErrActivationTokenInvalid = goerrors.New("activation token is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid)

// ErrActivationTokenExpired is returned once the token outlives its TTL
var ErrActivationTokenExpired = goerrors.New("activation token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

// ErrInvalidActivationCode is returned on a code mismatch
var ErrInvalidActivationCode = goerrors.New("activation code does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidActivationCode)

// ErrInvalidCredentials is the single login failure error. It intentionally
// does not distinguish an unknown identifier from a wrong password.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the hasher-level mismatch error. Callers
// on login paths translate it to ErrInvalidCredentials before it reaches a
// client.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials)

// ErrTooManyLoginAttempts is returned while the cooldown window is active
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryAuth).
	WithTextCode("TOO_MANY_ATTEMPTS").
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound)

// ErrUnableToDecodeSession unable to decode JWT claims into a session
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth)

// ErrUnableToParseData parse error
var ErrUnableToParseData = goerrors.New("unable to parse data", goerrors.CategoryBadInput)

// IsConflictError reports whether err carries one of the uniqueness text codes.
func IsConflictError(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	switch rich.TextCode {
	case TextCodeEmailExists, TextCodePhoneExists, TextCodeDuplicateActivation:
		return true
	}
	return false
}

// MapUniqueViolation translates a driver-level unique constraint failure into
// the matching conflict error. Both sqlite ("UNIQUE constraint failed:
// users.email") and postgres ("duplicate key value violates unique
// constraint") phrase the column into the message, which is the only portable
// signal the drivers give us.
func MapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") &&
		!strings.Contains(msg, "duplicate key value") {
		return err
	}

	if strings.Contains(msg, "phone") {
		return ErrPhoneExists
	}
	if strings.Contains(msg, "email") {
		return ErrEmailExists
	}

	return ErrDuplicateActivation
}
