package handler

import (
	"accounting/internal/journal/models"
	"accounting/internal/transport/http/links"
)

// JournalResponse is the wire form of a journal.
type JournalResponse struct {
	Href string `json:"href"`
	Name string `json:"name"`
}

func toResponse(b links.Builder, j *models.Journal) JournalResponse {
	return JournalResponse{
		Href: b.Journal(j.ID),
		Name: j.Name,
	}
}
