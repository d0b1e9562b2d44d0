// Package idgen provides cryptographically random ID generation.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// WithPrefix generates a random ID with a prefix (e.g. "inst_", "adm_", "sub_").
// Result is prefix + 24 hex chars (12 random bytes).
func WithPrefix(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

// Hex generates a random hex string of the given byte length.
func Hex(numBytes int) string {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// NewOrderID generates a payment order ID: "ORD" + UTC timestamp + 10 random
// hex chars. The timestamp prefix keeps IDs roughly sortable; the random
// suffix makes collisions across concurrent callers negligible without any
// coordination. Only [A-Z0-9], so the ID is safe in a URL query string.
func NewOrderID() string {
	return "ORD" + time.Now().UTC().Format("20060102150405") + strings.ToUpper(Hex(5))
}

// NewCustomerID generates a gateway customer ID with the same uniqueness and
// URL-safety properties as NewOrderID.
func NewCustomerID() string {
	return "CUS" + time.Now().UTC().Format("20060102150405") + strings.ToUpper(Hex(5))
}
