// Package idgen provides random identifiers for persisted records.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns a random (v4) UUID string. Used as primary key for every table.
func New() string {
	return uuid.NewString()
}

// WithPrefix generates a random ID with a prefix (e.g. "img_", "ntf_").
// Result is prefix + 24 hex chars (12 random bytes).
func WithPrefix(prefix string) string {
	return prefix + Hex(12)
}

// Hex generates a random hex string of the given byte length.
func Hex(numBytes int) string {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// OrderNumber returns a human-readable order reference: CMD-YYYYMMDD-XXXX.
func OrderNumber(now time.Time) string {
	return fmt.Sprintf("CMD-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(Hex(2)))
}
