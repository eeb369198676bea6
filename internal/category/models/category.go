package models

import (
	"accounting/pkg/domain"
	dErrors "accounting/pkg/domain-errors"
)

// Category groups accounts. Its key places it in the category tree: every
// category whose key starts with another's is that category's descendant.
type Category struct {
	Key  domain.CategoryKey
	Name string
}

// NewCategory builds a category, enforcing the key and name invariants.
func NewCategory(key domain.CategoryKey, name string) (*Category, error) {
	if key.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "category key is required")
	}
	normalized, err := domain.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	return &Category{Key: key, Name: normalized}, nil
}

// Clone returns a copy safe to hand out of a store.
func (c *Category) Clone() *Category {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
