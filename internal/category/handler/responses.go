package handler

import (
	"accounting/internal/category/models"
	"accounting/internal/transport/http/links"
)

// CategoryResponse is the wire form of a category.
type CategoryResponse struct {
	Href string `json:"href"`
	Name string `json:"name"`
}

func toResponse(b links.Builder, c *models.Category) CategoryResponse {
	return CategoryResponse{
		Href: b.Category(c.Key),
		Name: c.Name,
	}
}
