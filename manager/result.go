package manager

import (
	"strings"

	"github.com/fitvault/fitvault/record"
	"github.com/fitvault/fitvault/validation"
)

// SaveResult reports the outcome of a save operation. Success tracks the
// local write only; a failed or skipped remote write degrades to Queued and
// is never a user-facing failure.
type SaveResult struct {
	Success          bool                    `json:"success"`
	Queued           bool                    `json:"queued"`
	SyncStatus       record.SyncStatus       `json:"sync_status"`
	ValidationErrors []validation.FieldError `json:"validation_errors,omitempty"`
	Warnings         []validation.FieldError `json:"warnings,omitempty"`
	Message          string                  `json:"message,omitempty"`
}

func validationFailure(res validation.Result) SaveResult {
	msgs := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		msgs = append(msgs, e.Error())
	}
	return SaveResult{
		Success:          false,
		ValidationErrors: res.Errors,
		Warnings:         res.Warnings,
		Message:          "validation failed: " + strings.Join(msgs, "; "),
	}
}

// MigrationResult aggregates a guest-to-user migration pass. Each base key is
// processed independently; one failure never aborts the rest.
type MigrationResult struct {
	Success      bool     `json:"success"`
	MigratedKeys []string `json:"migrated_keys"`
	Errors       []string `json:"errors"`
}
