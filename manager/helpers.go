package manager

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fitvault/fitvault/queue"
	"github.com/fitvault/fitvault/record"
)

func errUnknownKind(kind record.Kind) error {
	return fmt.Errorf("unknown entity kind %q", kind)
}

func errNoPendingConflicts(kind record.Kind) error {
	return fmt.Errorf("no pending conflicts for %q", kind)
}

func errUndecidedConflicts(n int) error {
	return fmt.Errorf("%d conflicts remain undecided", n)
}

func recordJSON(fields map[string]any) (json.RawMessage, error) {
	return json.Marshal(fields)
}

func itemFields(item queue.Item) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(item.Data, &fields); err != nil {
		return nil, fmt.Errorf("malformed queue payload: %w", err)
	}
	return fields, nil
}

// stripMeta drops device-local envelope state from a field map copy before
// conflict detection. Sync status, source and version describe this device's
// relationship to the record, not the record itself; comparing them across
// devices only manufactures conflicts.
func stripMeta(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case "sync_status", "source", "version":
			continue
		}
		out[k] = v
	}
	return out
}

// remoteUpdatedAt extracts the remote record's updated_at field, falling
// back to the zero time when absent or malformed.
func remoteUpdatedAt(fields map[string]any) time.Time {
	raw, ok := fields["updated_at"].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
