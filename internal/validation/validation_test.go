package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 100))
	assert.Equal(t, "hel", SanitizeString("hello", 3))
	assert.Equal(t, "ab", SanitizeString("a\x00b", 10))
	assert.Equal(t, "Éc", SanitizeString("Éclair", 2))
}

func TestValidate_AggregatesErrors(t *testing.T) {
	err := Validate(
		Required("name", ""),
		Email("email", "not-an-email"),
		Positive("quantity", 3),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	fields := Fields(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "name", fields[0].Field)
	assert.Equal(t, "email", fields[1].Field)
}

func TestValidate_NoErrors(t *testing.T) {
	err := Validate(
		Required("name", "Eloïse"),
		Email("email", "eloise@example.com"),
		Range("depositPercent", 30, 0, 100),
	)
	assert.NoError(t, err)
}

func TestInvalid_IsErrInvalid(t *testing.T) {
	err := Invalid("plan", "unknown plan")
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Equal(t, []FieldError{{Field: "plan", Message: "unknown plan"}}, Fields(err))
}

func TestHexColor(t *testing.T) {
	assert.Nil(t, HexColor("c", "#ff00AA")())
	assert.Nil(t, HexColor("c", "")())
	assert.NotNil(t, HexColor("c", "red")())
}

func TestHostname(t *testing.T) {
	tests := []struct {
		host string
		ok   bool
	}{
		{"maboulangerie.fr", true},
		{"www.patisserie-eloise.com", true},
		{"localhost", false},
		{"-bad.com", false},
		{"UPPER.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.ok, IsHostname(tt.host))
		})
	}
}

func TestOneOf(t *testing.T) {
	assert.Nil(t, OneOf("mode", "pickup", "pickup", "delivery")())
	assert.NotNil(t, OneOf("mode", "drone", "pickup", "delivery")())
}
