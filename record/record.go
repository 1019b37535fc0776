// Package record defines the persisted domain entities and the envelope
// fields shared by all of them: identity, versioning, timestamps and sync
// state.
package record

import (
	"time"

	"github.com/google/uuid"
)

// Source marks which side of the sync boundary a record instance came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Envelope carries the common metadata every persisted record shares.
// Version increases monotonically per local mutation.
type Envelope struct {
	ID         string     `json:"id"`
	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	SyncStatus SyncStatus `json:"sync_status"`
	Source     Source     `json:"source"`
}

// NewEnvelope returns a fresh envelope for a locally created record.
func NewEnvelope(now time.Time) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
		SyncStatus: StatusLocal,
		Source:     SourceLocal,
	}
}

// Touch records a local mutation: bumps the version, refreshes UpdatedAt and
// moves the sync status back to pending (or local for never-synced records).
func (e *Envelope) Touch(now time.Time) {
	if e.ID == "" {
		*e = NewEnvelope(now)
		return
	}
	e.Version++
	e.UpdatedAt = now
	e.Source = SourceLocal
	if e.SyncStatus == "" || e.SyncStatus == StatusLocal {
		e.SyncStatus = StatusLocal
		return
	}
	if next, err := e.SyncStatus.Transition(StatusPending); err == nil {
		e.SyncStatus = next
	}
}

// MarkSynced transitions the envelope to synced after remote confirmation.
func (e *Envelope) MarkSynced() {
	if next, err := e.SyncStatus.Transition(StatusSynced); err == nil {
		e.SyncStatus = next
	}
}

// MarkFailed transitions the envelope to failed after an exhausted retry.
func (e *Envelope) MarkFailed() {
	if next, err := e.SyncStatus.Transition(StatusFailed); err == nil {
		e.SyncStatus = next
	}
}

// MarkConflict transitions the envelope to conflict on remote divergence.
func (e *Envelope) MarkConflict() {
	if next, err := e.SyncStatus.Transition(StatusConflict); err == nil {
		e.SyncStatus = next
	}
}
