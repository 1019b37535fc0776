package manager

import (
	"context"

	"github.com/fitvault/fitvault/conflict"
	vaultErrors "github.com/fitvault/fitvault/errors"
	"github.com/fitvault/fitvault/record"
)

// suspend parks the unresolved conflicts of one entity kind until an external
// decision arrives. A newer suspension for the same kind replaces the old one;
// stale conflicts are worthless once either side has moved on.
func (m *Manager) suspend(kind record.Kind, localFields map[string]any, conflicts []conflict.Conflict) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.unresolved[kind] = &suspendedConflict{
		localFields: localFields,
		conflicts:   conflicts,
	}
}

// PendingConflicts returns the conflicts suspended for kind, or nil when the
// kind has nothing awaiting a decision.
func (m *Manager) PendingConflicts(kind record.Kind) []conflict.Conflict {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	sc, ok := m.unresolved[kind]
	if !ok {
		return nil
	}
	out := make([]conflict.Conflict, len(sc.conflicts))
	copy(out, sc.conflicts)
	return out
}

// HasPendingConflicts reports whether any entity kind is suspended.
func (m *Manager) HasPendingConflicts() bool {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return len(m.unresolved) > 0
}

// ResolveWithChoices resumes a suspended resolution for kind using the given
// per-field decisions. Every suspended conflict needs a decision; a partial
// decision set leaves the suspension in place and returns a conflict error.
func (m *Manager) ResolveWithChoices(ctx context.Context, kind record.Kind, decisions map[string]conflict.Decision) error {
	m.pendingMu.Lock()
	sc, ok := m.unresolved[kind]
	m.pendingMu.Unlock()
	if !ok {
		return vaultErrors.NewConflictError(vaultErrors.OpResolve,
			errNoPendingConflicts(kind))
	}

	resolution := m.conflicts.Resolve(sc.localFields, sc.conflicts, decisions)
	if resolution.RequiresUserInput {
		m.logger.Warn("resume still has undecided conflicts",
			"kind", string(kind), "unresolved", len(resolution.Unresolved))
		return vaultErrors.NewConflictError(vaultErrors.OpResolve,
			errUndecidedConflicts(len(resolution.Unresolved)))
	}

	key := m.auth.CurrentIdentity().ScopedKey(kind.BaseKey())
	if err := m.applyMergedFor(ctx, kind, key, resolution.MergedData); err != nil {
		return err
	}

	m.pendingMu.Lock()
	delete(m.unresolved, kind)
	m.pendingMu.Unlock()

	m.logger.Info("suspended conflicts resolved",
		"kind", string(kind),
		"user_resolved", resolution.Summary.UserResolved)
	return nil
}

// DiscardPendingConflicts drops the suspension for kind without resolving.
// The local record keeps its conflict status until the next successful load.
func (m *Manager) DiscardPendingConflicts(kind record.Kind) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	delete(m.unresolved, kind)
}
