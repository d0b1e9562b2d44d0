package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("a@greenwood.edu"))
	assert.True(t, IsValidEmail("first.last+tag@example.co.uk"))
	assert.False(t, IsValidEmail("not-an-email"))
	assert.False(t, IsValidEmail("a@"))
	assert.False(t, IsValidEmail(""))
	assert.False(t, IsValidEmail("Name <a@b.com>")) // display names rejected
}

func TestIsValidOrderID(t *testing.T) {
	assert.True(t, IsValidOrderID("ORDER_123"))
	assert.True(t, IsValidOrderID("ORD20260828120000AB12CD34EF"))
	assert.False(t, IsValidOrderID("ord lower"))
	assert.False(t, IsValidOrderID("x"))
	assert.False(t, IsValidOrderID(strings.Repeat("A", 65)))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 100))
	assert.Equal(t, "ab", SanitizeString("abcd", 2))
	assert.Equal(t, "ab", SanitizeString("a\x00b", 100))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@greenwood.edu", NormalizeEmail("  A@Greenwood.EDU "))
}

func TestValidate_CollectsErrors(t *testing.T) {
	errs := Validate(
		Required("name", ""),
		ValidEmail("email", "bad"),
		MinLength("password", "short", MinPasswordLength),
	)
	assert.Len(t, errs, 3)
	assert.Contains(t, errs.Error(), "name")
}

func TestValidate_AllPass(t *testing.T) {
	errs := Validate(
		Required("name", "Greenwood School"),
		ValidEmail("email", "a@greenwood.edu"),
		MinLength("password", "long-enough-pass", MinPasswordLength),
	)
	assert.Empty(t, errs)
}
