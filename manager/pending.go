package manager

import (
	"context"

	"github.com/fitvault/fitvault/record"
	"github.com/fitvault/fitvault/storage"
)

// PendingSyncData groups every record that still needs a remote write, keyed
// by remote table name. History entries and profile singletons are flattened
// into the same field-map form the queue carries.
type PendingSyncData struct {
	Tables map[string][]map[string]any `json:"tables"`
	Total  int                         `json:"total"`
}

// GetPendingSyncData scans the active identity's local records for anything
// whose sync status needs a push: local, pending or failed. Conflict records
// are excluded; they wait on resolution, not on connectivity.
func (m *Manager) GetPendingSyncData(ctx context.Context) (PendingSyncData, error) {
	out := PendingSyncData{Tables: make(map[string][]map[string]any)}
	ident := m.auth.CurrentIdentity()

	for _, kind := range record.ProfileKinds() {
		key := ident.ScopedKey(kind.BaseKey())
		fields, err := storage.Retrieve[map[string]any](ctx, m.store, key)
		if err != nil {
			return PendingSyncData{}, err
		}
		if fields == nil {
			continue
		}
		if statusNeedsSync(*fields) {
			out.Tables[kind.Table()] = append(out.Tables[kind.Table()], *fields)
			out.Total++
		}
	}

	schema, err := m.store.Schema(ctx)
	if err != nil {
		return PendingSyncData{}, err
	}
	for _, s := range schema.Fitness.Sessions {
		if s.SyncStatus.NeedsSync() {
			if fields, err := record.ToMap(s); err == nil {
				out.Tables[record.KindWorkoutSession.Table()] = append(out.Tables[record.KindWorkoutSession.Table()], fields)
				out.Total++
			}
		}
	}
	for _, l := range schema.Nutrition.Logs {
		if l.SyncStatus.NeedsSync() {
			if fields, err := record.ToMap(l); err == nil {
				out.Tables[record.KindMealLog.Table()] = append(out.Tables[record.KindMealLog.Table()], fields)
				out.Total++
			}
		}
	}
	for _, b := range schema.Progress.Measurements {
		if b.SyncStatus.NeedsSync() {
			if fields, err := record.ToMap(b); err == nil {
				out.Tables[record.KindBodyMeasurement.Table()] = append(out.Tables[record.KindBodyMeasurement.Table()], fields)
				out.Total++
			}
		}
	}

	return out, nil
}

func statusNeedsSync(fields map[string]any) bool {
	raw, ok := fields["sync_status"].(string)
	if !ok {
		// legacy records predating envelopes have never been pushed
		return true
	}
	return record.SyncStatus(raw).NeedsSync()
}
