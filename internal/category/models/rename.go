package models

import (
	"fmt"

	"github.com/google/uuid"

	"accounting/pkg/domain"
)

// RenameStep names one stage of moving a category to a new key.
type RenameStep string

const (
	RenameStepLoadSource       RenameStep = "load_source"
	RenameStepInsertTarget     RenameStep = "insert_target"
	RenameStepReassignAccounts RenameStep = "reassign_accounts"
	RenameStepDeleteSource     RenameStep = "delete_source"
	RenameStepRecordEvent      RenameStep = "record_event"
	RenameStepCommit           RenameStep = "commit"
)

// RenameResult describes a committed rename.
type RenameResult struct {
	AttemptID          uuid.UUID
	From               domain.CategoryKey
	Category           *Category
	AccountsReassigned int
}

// RenameError reports the step at which a rename failed. The rename was
// rolled back; no partial state is visible.
type RenameError struct {
	AttemptID uuid.UUID
	Step      RenameStep
	Err       error
}

func (e *RenameError) Error() string {
	return fmt.Sprintf("category rename %s failed at %s: %v", e.AttemptID, e.Step, e.Err)
}

func (e *RenameError) Unwrap() error {
	return e.Err
}
