package models

import (
	"accounting/pkg/domain"
	dErrors "accounting/pkg/domain-errors"
)

// Account is an entry in the chart of accounts. It belongs to exactly one
// category, referenced by key.
type Account struct {
	ID       domain.AccountID
	Category domain.CategoryKey
	Name     string
}

// NewAccount builds an unsaved account; the store assigns its ID.
func NewAccount(category domain.CategoryKey, name string) (*Account, error) {
	if category.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account category is required")
	}
	normalized, err := domain.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	return &Account{Category: category, Name: normalized}, nil
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// Outbox event types emitted by account changes.
const (
	AggregateType = "account"

	EventCreated = "account.created"
	EventUpdated = "account.updated"
	EventDeleted = "account.deleted"
)

// ChangedPayload is the body of every account event.
type ChangedPayload struct {
	AccountID  int64  `json:"account_id"`
	CategoryID string `json:"category_id,omitempty"`
	Name       string `json:"name,omitempty"`
}
