package manager

import (
	"context"

	"github.com/fitvault/fitvault/identity"
)

// AuthProvider is the external auth/connectivity collaborator. Both signals
// are point-in-time reads; the manager re-checks them on every operation and
// never infers them.
type AuthProvider interface {
	// CurrentIdentity returns the active session identity.
	CurrentIdentity() identity.Identity

	// IsOnline reports current connectivity as last known.
	IsOnline() bool
}

// RemoteStore is the remote persistence collaborator. Any non-nil error from
// either method means "remote unavailable": the manager degrades to queued
// writes or local reads and never surfaces the failure to its caller.
type RemoteStore interface {
	// Upsert creates or replaces the record keyed by its user id in table.
	Upsert(ctx context.Context, table string, rec map[string]any) error

	// SelectOne fetches the record for userID from table. The boolean
	// reports whether a record exists; false with a nil error is a clean
	// not-found.
	SelectOne(ctx context.Context, table, userID string) (map[string]any, bool, error)
}

// StaticAuth is a trivial AuthProvider with fixed values, useful in tests
// and single-shot tools.
type StaticAuth struct {
	Identity identity.Identity
	Online   bool
}

func (a *StaticAuth) CurrentIdentity() identity.Identity { return a.Identity }
func (a *StaticAuth) IsOnline() bool                     { return a.Online }
