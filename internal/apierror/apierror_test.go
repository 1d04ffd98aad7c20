package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatus(t *testing.T) {
	errFull := New("capacity_exceeded", "workshop is full", ErrConflict)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", validation.Invalid("email", "bad"), http.StatusBadRequest, "validation_error"},
		{"not found", fmt.Errorf("tenant: %w", ErrNotFound), http.StatusNotFound, "not_found"},
		{"coded conflict", errFull, http.StatusConflict, "capacity_exceeded"},
		{"wrapped coded", fmt.Errorf("book: %w", errFull), http.StatusConflict, "capacity_exceeded"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "forbidden"},
		{"upstream", ErrUpstream, http.StatusBadGateway, "upstream_error"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Status(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestRespond_ValidationDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/x", nil)

	Respond(c, validation.Validate(
		validation.Required("name", ""),
		validation.Required("email", ""),
	))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body["error"])
	assert.Len(t, body["details"], 2)
}

func TestRespond_HidesInternalMessage(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

	Respond(c, fmt.Errorf("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}
