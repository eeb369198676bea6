package domain

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "accounting/pkg/domain-errors"
)

// MaxCategoryKeyLength bounds category keys, and with them the cost of prefix
// scans over the category namespace.
const MaxCategoryKeyLength = 20

// AccountID is the storage key of a chart-of-accounts entry.
type AccountID int64

// JournalID is the storage key of a journal.
type JournalID int64

// CategoryKey is the caller-supplied key of a category. Keys form an implicit
// prefix tree: a key is a descendant of every key it starts with, itself
// included.
type CategoryKey string

// ParseCategoryKey validates a category key at a trust boundary.
func ParseCategoryKey(s string) (CategoryKey, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "category key is required")
	}
	if strings.TrimSpace(s) != s {
		return "", dErrors.New(dErrors.CodeInvalidInput, "category key must not have surrounding whitespace")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "category key must be valid UTF-8")
	}
	if utf8.RuneCountInString(s) > MaxCategoryKeyLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "category key must be at most 20 characters")
	}
	if s == "." || s == ".." {
		return "", dErrors.New(dErrors.CodeInvalidInput, "category key must not be a dot segment")
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "category key must not contain control characters")
		}
	}
	return CategoryKey(s), nil
}

func (k CategoryKey) String() string {
	return string(k)
}

// IsNil reports whether the key is empty.
func (k CategoryKey) IsNil() bool {
	return k == ""
}

// HasPrefix reports whether k lies in the subtree rooted at prefix. The
// comparison is byte-wise on the UTF-8 encoding, independent of any collation.
func (k CategoryKey) HasPrefix(prefix CategoryKey) bool {
	return strings.HasPrefix(string(k), string(prefix))
}

// ParseAccountID parses a positive decimal account key.
func ParseAccountID(s string) (AccountID, error) {
	n, err := parsePositive(s)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid account id")
	}
	return AccountID(n), nil
}

func (id AccountID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseJournalID parses a positive decimal journal key.
func ParseJournalID(s string) (JournalID, error) {
	n, err := parsePositive(s)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid journal id")
	}
	return JournalID(n), nil
}

func (id JournalID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func parsePositive(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
