package identity

import (
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse numbers given without a country prefix.
var DefaultPhoneRegion = "US"

// FormatValidationErrorToMap flattens an ozzo validation error into a
// field -> message map suitable for client responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["payload"] = err.Error()
	return out
}

// NewValidationError wraps field-level failures in the client-facing
// validation error shape.
func NewValidationError(err error) error {
	fields := FormatValidationErrorToMap(err)
	meta := make(map[string]any, len(fields))
	for k, v := range fields {
		meta[k] = v
	}

	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid input").
		WithTextCode(TextCodeValidation).
		WithMetadata(meta)
}

// ValidatePhoneNumber is an ozzo rule: the value must parse as a possible,
// valid phone number.
func ValidatePhoneNumber(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil // Required handles empties
	}

	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return err
	}

	if !phonenumbers.IsValidNumber(num) {
		return goerrors.New("invalid phone number", goerrors.CategoryValidation)
	}

	return nil
}

// NormalizePhoneNumber renders a raw number in E.164 so the unique constraint
// compares like with like. Invalid numbers are returned unchanged; the
// validation rule has already rejected them on flows that care.
func NormalizePhoneNumber(raw string) string {
	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return raw
	}

	return phonenumbers.Format(num, phonenumbers.E164)
}
