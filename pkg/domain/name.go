package domain

import (
	"strings"
	"unicode/utf8"

	dErrors "accounting/pkg/domain-errors"
)

// MaxNameLength bounds the display name of accounts, categories and journals.
const MaxNameLength = 128

// NormalizeName trims a display name and checks it is present and bounded.
// Violations are invariant errors; services convert them to validation errors.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "name must be at most 128 characters")
	}
	return name, nil
}
