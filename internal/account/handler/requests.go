package handler

import (
	"accounting/internal/transport/http/links"
	"accounting/pkg/domain"
)

// CreateAccountRequest is the body of POST /chart_of_accounts.
type CreateAccountRequest struct {
	Href     string `json:"href,omitempty"`
	Category string `json:"category" validate:"required,notblank"`
	Name     string `json:"name" validate:"required,notblank,max=128"`

	category domain.CategoryKey
}

// Validate resolves the category reference.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateAccountRequest) Validate() error {
	key, err := links.ParseCategory(r.Category, "category")
	if err != nil {
		return err
	}
	r.category = key
	return nil
}

func (r *CreateAccountRequest) CategoryKey() domain.CategoryKey {
	return r.category
}

// UpdateAccountRequest is the body of PUT /chart_of_accounts.
type UpdateAccountRequest struct {
	Href     string `json:"href" validate:"required,notblank"`
	Category string `json:"category" validate:"required,notblank"`
	Name     string `json:"name" validate:"required,notblank,max=128"`

	id       domain.AccountID
	category domain.CategoryKey
}

func (r *UpdateAccountRequest) Validate() error {
	id, err := links.ParseAccount(r.Href, "href")
	if err != nil {
		return err
	}
	key, err := links.ParseCategory(r.Category, "category")
	if err != nil {
		return err
	}
	r.id = id
	r.category = key
	return nil
}

func (r *UpdateAccountRequest) ID() domain.AccountID {
	return r.id
}

func (r *UpdateAccountRequest) CategoryKey() domain.CategoryKey {
	return r.category
}
