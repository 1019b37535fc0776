// Package conflict detects and resolves field-level divergence between the
// local and remote version of a record. Detection is a pure comparison pass;
// resolution maps each conflict through a strategy picked by an ordered rule
// set. Conflicts are ephemeral: only the merged record and an optional audit
// entry outlive a resolution.
package conflict

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies what kind of divergence was found on a field.
type Type string

const (
	// TypeMissingLocal: the field is defined remotely but absent locally.
	TypeMissingLocal Type = "missing_local"
	// TypeMissingRemote: the field is defined locally but absent remotely.
	TypeMissingRemote Type = "missing_remote"
	// TypeTypeMismatch: both sides define the field with differing types.
	TypeTypeMismatch Type = "type_mismatch"
	// TypeValueMismatch: same type, different value.
	TypeValueMismatch Type = "value_mismatch"
)

// Severity ranks how dangerous an automatic resolution of the field would be.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Strategy names the rule used to pick or combine the final value.
type Strategy string

const (
	StrategyLocalWins          Strategy = "local_wins"
	StrategyRemoteWins         Strategy = "remote_wins"
	StrategyMergeValues        Strategy = "merge_values"
	StrategyUseLatestTimestamp Strategy = "use_latest_timestamp"
	StrategyUserChoice         Strategy = "user_choice"
	StrategyCreateNew          Strategy = "create_new"
	StrategySkipField          Strategy = "skip_field"
)

// Context carries the record-level facts a detect/resolve pass needs beyond
// the two field maps.
type Context struct {
	Table              string
	RecordID           string
	LastModifiedLocal  time.Time
	LastModifiedRemote time.Time
}

// Conflict is one detected field divergence.
type Conflict struct {
	ID                  string   `json:"id"`
	Type                Type     `json:"type"`
	Field               string   `json:"field"`
	LocalValue          any      `json:"local_value"`
	RemoteValue         any      `json:"remote_value"`
	Severity            Severity `json:"severity"`
	AutoResolvable      bool     `json:"auto_resolvable"`
	SuggestedResolution Strategy `json:"suggested_resolution"`
	Context             Context  `json:"-"`
}

func newConflict(t Type, field string, local, remote any, ctx Context) Conflict {
	return Conflict{
		ID:          uuid.NewString(),
		Type:        t,
		Field:       field,
		LocalValue:  local,
		RemoteValue: remote,
		Severity:    classifySeverity(field),
		Context:     ctx,
	}
}

// Decision is an external answer to a conflict that required user input.
type Decision struct {
	Strategy Strategy
	// Value overrides the computed value when non-nil; used when the user
	// edits the field instead of picking a side.
	Value any
}

// Resolved pairs a conflict with the strategy and value that settled it.
type Resolved struct {
	Conflict     Conflict `json:"conflict"`
	Strategy     Strategy `json:"strategy"`
	Value        any      `json:"value"`
	OmitField    bool     `json:"omit_field"`
	UserResolved bool     `json:"user_resolved"`
}

// Summary counts how a resolution pass went.
type Summary struct {
	Total        int `json:"total"`
	AutoResolved int `json:"auto_resolved"`
	UserResolved int `json:"user_resolved"`
	Unresolved   int `json:"unresolved"`
}

// Result is the outcome of resolving a set of conflicts. When
// RequiresUserInput is true the caller must gather Decisions for the
// Unresolved conflicts and resume with them; nothing is guessed silently.
type Result struct {
	Resolved          []Resolved     `json:"resolved"`
	Unresolved        []Conflict     `json:"unresolved"`
	MergedData        map[string]any `json:"merged_data"`
	RequiresUserInput bool           `json:"requires_user_input"`
	Summary           Summary        `json:"summary"`
}
