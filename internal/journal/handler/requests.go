package handler

import (
	"accounting/internal/transport/http/links"
	"accounting/pkg/domain"
)

// CreateJournalRequest is the body of POST /journals.
type CreateJournalRequest struct {
	Name string `json:"name" validate:"required,notblank,max=128"`
}

// UpdateJournalRequest is the body of PUT /journals.
type UpdateJournalRequest struct {
	Href string `json:"href" validate:"required,notblank"`
	Name string `json:"name" validate:"required,notblank,max=128"`

	id domain.JournalID
}

// Validate resolves the href into a journal ID.
func (r *UpdateJournalRequest) Validate() error {
	id, err := links.ParseJournal(r.Href, "href")
	if err != nil {
		return err
	}
	r.id = id
	return nil
}

func (r *UpdateJournalRequest) ID() domain.JournalID {
	return r.id
}
