package models

// Outbox event types emitted by category changes.
const (
	AggregateType = "category"

	EventCreated = "category.created"
	EventUpdated = "category.updated"
	EventDeleted = "category.deleted"
	EventRenamed = "category.renamed"
)

// ChangedPayload is the body of created, updated and deleted events.
type ChangedPayload struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name,omitempty"`
}

// RenamedPayload is the body of a category.renamed event.
type RenamedPayload struct {
	AttemptID          string `json:"attempt_id"`
	From               string `json:"from"`
	To                 string `json:"to"`
	AccountsReassigned int    `json:"accounts_reassigned"`
}
