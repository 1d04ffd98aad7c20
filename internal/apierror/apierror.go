// Package apierror maps domain errors onto the JSON error envelope used by
// every handler: {"error": "<code>", "message": "<text>"}.
package apierror

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/validation"
)

// Category sentinels. Domain packages wrap these so one mapping covers them all.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream dependency failed")
	ErrUnavailable  = errors.New("service unavailable")
)

// Coded is implemented by errors that carry their own machine-readable code.
type Coded interface {
	error
	Code() string
}

type codedError struct {
	code   string
	msg    string
	parent error
}

func (e *codedError) Error() string { return e.msg }
func (e *codedError) Code() string  { return e.code }
func (e *codedError) Unwrap() error { return e.parent }

// New creates an error with a specific code that maps to the parent category.
//
//	var ErrCapacityExceeded = apierror.New("capacity_exceeded", "workshop is full", apierror.ErrConflict)
func New(code, msg string, parent error) error {
	return &codedError{code: code, msg: msg, parent: parent}
}

// Status returns the HTTP status and error code for err.
func Status(err error) (int, string) {
	var code string
	var coded Coded
	if errors.As(err, &coded) {
		code = coded.Code()
	}

	var status int
	switch {
	case errors.Is(err, validation.ErrInvalid):
		status, code = http.StatusBadRequest, orDefault(code, "validation_error")
	case errors.Is(err, ErrNotFound):
		status, code = http.StatusNotFound, orDefault(code, "not_found")
	case errors.Is(err, ErrUnauthorized):
		status, code = http.StatusUnauthorized, orDefault(code, "unauthorized")
	case errors.Is(err, ErrForbidden):
		status, code = http.StatusForbidden, orDefault(code, "forbidden")
	case errors.Is(err, ErrConflict):
		status, code = http.StatusConflict, orDefault(code, "conflict")
	case errors.Is(err, ErrUpstream):
		status, code = http.StatusBadGateway, orDefault(code, "upstream_error")
	case errors.Is(err, ErrUnavailable):
		status, code = http.StatusServiceUnavailable, orDefault(code, "unavailable")
	default:
		status, code = http.StatusInternalServerError, "internal_error"
	}
	return status, code
}

// Respond writes err to the response using the standard envelope.
// Internal errors are logged and their message is hidden from the client.
func Respond(c *gin.Context, err error) {
	status, code := Status(err)
	body := gin.H{"error": code, "message": err.Error()}

	if status == http.StatusBadRequest {
		if fields := validation.Fields(err); len(fields) > 0 {
			body["details"] = fields
			body["message"] = fields[0].Field + ": " + fields[0].Message
		}
	}
	if status >= http.StatusInternalServerError {
		logging.L(c.Request.Context()).Error("request failed",
			"path", c.FullPath(),
			"status", status,
			"error", err,
		)
		if status == http.StatusInternalServerError {
			body["message"] = "An unexpected error occurred"
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// BadRequest writes a 400 with a plain message, for malformed bodies.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": message})
}

func orDefault(code, def string) string {
	if code != "" {
		return code
	}
	return def
}
