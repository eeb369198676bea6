package models

import (
	"accounting/pkg/domain"
)

// Journal is a named book of entries.
type Journal struct {
	ID   domain.JournalID
	Name string
}

// NewJournal builds an unsaved journal; the store assigns its ID.
func NewJournal(name string) (*Journal, error) {
	normalized, err := domain.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	return &Journal{Name: normalized}, nil
}

func (j *Journal) Clone() *Journal {
	if j == nil {
		return nil
	}
	cp := *j
	return &cp
}

// Outbox event types emitted by journal changes.
const (
	AggregateType = "journal"

	EventCreated = "journal.created"
	EventUpdated = "journal.updated"
	EventDeleted = "journal.deleted"
)

// ChangedPayload is the body of every journal event.
type ChangedPayload struct {
	JournalID int64  `json:"journal_id"`
	Name      string `json:"name,omitempty"`
}
