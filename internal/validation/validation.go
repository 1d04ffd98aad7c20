// Package validation provides input validation helpers for the API.
package validation

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
)

// MaxRequestSize is the maximum JSON request body size (1MB)
const MaxRequestSize = 1 << 20

// ErrInvalid marks every validation failure so callers can map it with errors.Is.
var ErrInvalid = errors.New("validation failed")

var (
	hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	hostnameRegex = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)
	phoneRegex    = regexp.MustCompile(`^\+?[0-9 .()-]{6,20}$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// SanitizeString trims whitespace, strips null bytes and limits length (in runes).
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\x00", "")
	if r := []rune(s); len(r) > maxLen {
		s = string(r[:maxLen])
	}
	return s
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

func (e *FieldError) Is(target error) bool { return target == ErrInvalid }

// Check is a deferred field check. It returns nil when the field is valid.
type Check func() *FieldError

// Validate runs every check and aggregates failures into a *multierror.Error.
// Returns nil if all checks pass.
func Validate(checks ...Check) error {
	var result *multierror.Error
	for _, check := range checks {
		if fe := check(); fe != nil {
			result = multierror.Append(result, fe)
		}
	}
	return result.ErrorOrNil()
}

// Fields extracts the field errors from an error returned by Validate.
func Fields(err error) []FieldError {
	var out []FieldError
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			var fe *FieldError
			if errors.As(e, &fe) {
				out = append(out, *fe)
			}
		}
		return out
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		out = append(out, *fe)
	}
	return out
}

// Invalid builds a single field error usable outside Validate.
func Invalid(field, message string) error {
	return &FieldError{Field: field, Message: message}
}

// Required checks if a field is non-empty
func Required(field, value string) Check {
	return func() *FieldError {
		if strings.TrimSpace(value) == "" {
			return &FieldError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) Check {
	return func() *FieldError {
		if len([]rune(value)) > max {
			return &FieldError{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}
		}
		return nil
	}
}

// MinLength checks a minimum length.
func MinLength(field, value string, min int) Check {
	return func() *FieldError {
		if len([]rune(value)) < min {
			return &FieldError{Field: field, Message: fmt.Sprintf("must be at least %d characters", min)}
		}
		return nil
	}
}

// Email checks an email address. Empty values pass; combine with Required.
func Email(field, value string) Check {
	return func() *FieldError {
		if value == "" {
			return nil
		}
		addr, err := mail.ParseAddress(value)
		if err != nil || addr.Address != value {
			return &FieldError{Field: field, Message: "must be a valid email address"}
		}
		return nil
	}
}

// Phone checks a loosely formatted phone number. Empty values pass.
func Phone(field, value string) Check {
	return func() *FieldError {
		if value != "" && !phoneRegex.MatchString(value) {
			return &FieldError{Field: field, Message: "must be a valid phone number"}
		}
		return nil
	}
}

// Positive checks that an integer is > 0.
func Positive(field string, value int64) Check {
	return func() *FieldError {
		if value <= 0 {
			return &FieldError{Field: field, Message: "must be greater than zero"}
		}
		return nil
	}
}

// Range checks that an integer lies in [min, max].
func Range(field string, value, min, max int64) Check {
	return func() *FieldError {
		if value < min || value > max {
			return &FieldError{Field: field, Message: fmt.Sprintf("must be between %d and %d", min, max)}
		}
		return nil
	}
}

// OneOf checks that value is one of the allowed values. Empty values pass.
func OneOf(field, value string, allowed ...string) Check {
	return func() *FieldError {
		if value == "" {
			return nil
		}
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return &FieldError{Field: field, Message: "must be one of " + strings.Join(allowed, ", ")}
	}
}

// HexColor checks a #rrggbb color. Empty values pass.
func HexColor(field, value string) Check {
	return func() *FieldError {
		if value != "" && !hexColorRegex.MatchString(value) {
			return &FieldError{Field: field, Message: "must be a #rrggbb color"}
		}
		return nil
	}
}

// Hostname checks a lowercase fully-qualified hostname.
func Hostname(field, value string) Check {
	return func() *FieldError {
		if !IsHostname(value) {
			return &FieldError{Field: field, Message: "must be a valid domain name"}
		}
		return nil
	}
}

// IsHostname reports whether value is a valid lowercase hostname.
func IsHostname(value string) bool {
	return len(value) <= 253 && hostnameRegex.MatchString(value)
}
