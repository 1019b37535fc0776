package record

import "fmt"

// SyncStatus tracks whether a local mutation has been confirmed by the
// remote store.
type SyncStatus string

const (
	// StatusLocal marks a record that has never been offered to the remote
	// store (guest data, or data written before first sync).
	StatusLocal SyncStatus = "local"

	// StatusPending marks a record with local mutations awaiting remote
	// confirmation.
	StatusPending SyncStatus = "pending"

	// StatusSynced marks a record confirmed by the remote store.
	StatusSynced SyncStatus = "synced"

	// StatusFailed marks a record whose remote round-trip failed; it is
	// retryable via the sync queue with bounded attempts.
	StatusFailed SyncStatus = "failed"

	// StatusConflict marks a record that diverged between local and remote.
	// Terminal until resolved, at which point it re-enters pending.
	StatusConflict SyncStatus = "conflict"
)

// legal transitions of the sync state machine
var transitions = map[SyncStatus][]SyncStatus{
	StatusLocal:    {StatusPending, StatusSynced, StatusFailed},
	StatusPending:  {StatusSynced, StatusFailed, StatusConflict, StatusPending},
	StatusSynced:   {StatusPending, StatusConflict},
	StatusFailed:   {StatusPending, StatusSynced, StatusFailed},
	StatusConflict: {StatusPending},
}

// CanTransition reports whether moving from s to next is a legal step.
func (s SyncStatus) CanTransition(next SyncStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns next if the step is legal, or an error naming the
// illegal edge. The zero value ("") may transition anywhere; it denotes a
// record created before status tracking.
func (s SyncStatus) Transition(next SyncStatus) (SyncStatus, error) {
	if s == "" {
		return next, nil
	}
	if !s.CanTransition(next) {
		return s, fmt.Errorf("illegal sync status transition %s -> %s", s, next)
	}
	return next, nil
}

// NeedsSync reports whether the record still has unconfirmed local state.
func (s SyncStatus) NeedsSync() bool {
	return s == StatusLocal || s == StatusPending || s == StatusFailed
}

// Valid reports whether s is one of the five known states.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusLocal, StatusPending, StatusSynced, StatusFailed, StatusConflict:
		return true
	}
	return false
}
