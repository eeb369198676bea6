// Package links renders and parses the resource URLs exchanged with clients.
// Every resource is addressed as base + domain path + escaped key.
package links

import (
	"net/http"
	"net/url"

	"accounting/pkg/collection"
	"accounting/pkg/domain"
	dErrors "accounting/pkg/domain-errors"
	"accounting/pkg/href"
	"accounting/pkg/platform/httputil"
)

// Domain paths of the resource types.
const (
	CategoriesPath       = "categories"
	CategoryPath         = "categories/id"
	CategoryChildrenPath = "categories/children/id"
	AccountsPath         = "chart_of_accounts"
	AccountPath          = "chart_of_accounts/id"
	JournalsPath         = "journals"
	JournalPath          = "journals/id"
)

// Config holds the settings every resource handler shares.
type Config struct {
	// PublicBase overrides the scheme and host taken from requests.
	PublicBase *url.URL
	Limits     collection.Limits
}

// Builder renders resource URLs against one base.
type Builder struct {
	base *url.URL
}

// For returns a Builder for the base URL of r.
func (c Config) For(r *http.Request) Builder {
	return Builder{base: httputil.BaseURL(r, c.PublicBase)}
}

// NewBuilder returns a Builder for an explicit base. A nil base renders
// absolute-path references.
func NewBuilder(base *url.URL) Builder {
	return Builder{base: base}
}

func (b Builder) Base() *url.URL {
	return b.base
}

func (b Builder) Category(key domain.CategoryKey) string {
	return href.Encode(b.base, CategoryPath, key).String()
}

func (b Builder) Account(id domain.AccountID) string {
	return href.Encode(b.base, AccountPath, id).String()
}

func (b Builder) Journal(id domain.JournalID) string {
	return href.Encode(b.base, JournalPath, id).String()
}

// CategoryChildren returns the escaped collection path listing the
// subtree rooted at key.
func CategoryChildren(key domain.CategoryKey) string {
	return href.Encode(nil, CategoryChildrenPath, key).EscapedPath()
}

// ParseCategory reads a category key from a category URL in a request body.
// Anything that does not carry a valid key is a validation error naming field.
func ParseCategory(raw, field string) (domain.CategoryKey, error) {
	segment, err := href.Decode[string](raw)
	if err != nil {
		return "", dErrors.New(dErrors.CodeValidation, field+" must be a category URL")
	}
	key, err := domain.ParseCategoryKey(segment)
	if err != nil {
		return "", dErrors.New(dErrors.CodeValidation, field+": "+dErrors.MessageOf(err))
	}
	return key, nil
}

// ParseAccount reads an account ID from an account URL in a request body.
func ParseAccount(raw, field string) (domain.AccountID, error) {
	segment, err := href.Decode[string](raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, field+" must be an account URL")
	}
	id, err := domain.ParseAccountID(segment)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, field+" must be an account URL")
	}
	return id, nil
}

// ParseJournal reads a journal ID from a journal URL in a request body.
func ParseJournal(raw, field string) (domain.JournalID, error) {
	segment, err := href.Decode[string](raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, field+" must be a journal URL")
	}
	id, err := domain.ParseJournalID(segment)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, field+" must be a journal URL")
	}
	return id, nil
}

// CategoryFromPath reads the category key addressed by the request path.
// A key that cannot exist is reported as a missing resource.
func CategoryFromPath(r *http.Request) (domain.CategoryKey, error) {
	segment, err := href.Decode[string](r.URL.EscapedPath())
	if err != nil {
		return "", dErrors.New(dErrors.CodeNotFound, "category not found")
	}
	key, err := domain.ParseCategoryKey(segment)
	if err != nil {
		return "", dErrors.New(dErrors.CodeNotFound, "category not found")
	}
	return key, nil
}

// AccountFromPath reads the account ID addressed by the request path.
func AccountFromPath(r *http.Request) (domain.AccountID, error) {
	id, err := href.Decode[domain.AccountID](r.URL.EscapedPath())
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeNotFound, "account not found")
	}
	return id, nil
}

// JournalFromPath reads the journal ID addressed by the request path.
func JournalFromPath(r *http.Request) (domain.JournalID, error) {
	id, err := href.Decode[domain.JournalID](r.URL.EscapedPath())
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeNotFound, "journal not found")
	}
	return id, nil
}
