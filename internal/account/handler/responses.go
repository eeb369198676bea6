package handler

import (
	"accounting/internal/account/models"
	"accounting/internal/transport/http/links"
)

// AccountResponse is the wire form of an account.
type AccountResponse struct {
	Href     string `json:"href"`
	Category string `json:"category"`
	Name     string `json:"name"`
}

func toResponse(b links.Builder, a *models.Account) AccountResponse {
	return AccountResponse{
		Href:     b.Account(a.ID),
		Category: b.Category(a.Category),
		Name:     a.Name,
	}
}
