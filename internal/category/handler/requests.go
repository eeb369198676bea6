package handler

import (
	"accounting/internal/transport/http/links"
	"accounting/pkg/domain"
	dErrors "accounting/pkg/domain-errors"
)

// CategoryRequest is the body of POST and PUT /categories.
type CategoryRequest struct {
	Href string `json:"href" validate:"required,notblank"`
	Name string `json:"name" validate:"required,notblank,max=128"`

	key domain.CategoryKey
}

// Validate resolves the href into a category key.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CategoryRequest) Validate() error {
	key, err := links.ParseCategory(r.Href, "href")
	if err != nil {
		return err
	}
	r.key = key
	return nil
}

func (r *CategoryRequest) Key() domain.CategoryKey {
	return r.key
}

// RenameRequest is the body of POST /categories/id/{id}.
type RenameRequest struct {
	CategoryID string `json:"category_id" validate:"required"`

	key domain.CategoryKey
}

func (r *RenameRequest) Validate() error {
	key, err := domain.ParseCategoryKey(r.CategoryID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "category_id: "+dErrors.MessageOf(err))
	}
	r.key = key
	return nil
}

func (r *RenameRequest) Key() domain.CategoryKey {
	return r.key
}
