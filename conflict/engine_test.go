package conflict

import (
	"testing"
	"time"
)

// The reference scenario: local {name Jane, age 25} vs remote
// {name Jane, age 30, email j@x.com} resolves fully automatically with the
// remote side winning on both diverged fields.
func TestResolveReferenceScenario(t *testing.T) {
	e := NewEngine()

	local := map[string]any{"name": "Jane", "age": "25"}
	remote := map[string]any{"name": "Jane", "age": "30", "email": "j@x.com"}

	conflicts := e.Detect(local, remote, Context{})
	got := byField(conflicts)

	if len(conflicts) != 2 {
		t.Fatalf("expected conflicts on age and email, got %v", conflicts)
	}
	if c := got["age"]; c.Type != TypeValueMismatch || c.Severity != SeverityHigh {
		t.Errorf("age = %s/%s, want value_mismatch/high", c.Type, c.Severity)
	}
	if c := got["email"]; c.Type != TypeMissingLocal {
		t.Errorf("email = %s, want missing_local", c.Type)
	}

	result := e.Resolve(local, conflicts, nil)

	if result.RequiresUserInput {
		t.Fatal("reference scenario must not require user input")
	}
	if result.MergedData["name"] != "Jane" || result.MergedData["age"] != "30" || result.MergedData["email"] != "j@x.com" {
		t.Errorf("merged = %v", result.MergedData)
	}
	if result.Summary.AutoResolved != 2 || result.Summary.Unresolved != 0 {
		t.Errorf("summary = %+v", result.Summary)
	}
	for _, r := range result.Resolved {
		if r.Strategy != StrategyRemoteWins {
			t.Errorf("field %q resolved via %s, want remote_wins", r.Conflict.Field, r.Strategy)
		}
	}
}

func TestTypeMismatchRequiresUserChoice(t *testing.T) {
	e := NewEngine()

	local := map[string]any{"age": "29"}
	remote := map[string]any{"age": float64(29)}

	conflicts := e.Detect(local, remote, Context{})
	if len(conflicts) != 1 || conflicts[0].Type != TypeTypeMismatch {
		t.Fatalf("expected one type_mismatch, got %v", conflicts)
	}
	if conflicts[0].AutoResolvable {
		t.Error("type_mismatch must not be auto-resolvable")
	}

	result := e.Resolve(local, conflicts, nil)
	if !result.RequiresUserInput || len(result.Unresolved) != 1 {
		t.Fatalf("type_mismatch without a decision must stay unresolved: %+v", result)
	}

	// Resuming with an explicit decision settles it.
	resumed := e.Resolve(local, conflicts, map[string]Decision{
		"age": {Strategy: StrategyRemoteWins},
	})
	if resumed.RequiresUserInput {
		t.Fatal("decision should settle the conflict")
	}
	if resumed.MergedData["age"] != float64(29) {
		t.Errorf("merged age = %v", resumed.MergedData["age"])
	}
	if resumed.Summary.UserResolved != 1 {
		t.Errorf("summary = %+v", resumed.Summary)
	}
}

func TestCriticalValueMismatchSuspends(t *testing.T) {
	e := NewEngine()

	local := map[string]any{"email": "old@x.com"}
	remote := map[string]any{"email": "new@x.com"}

	conflicts := e.Detect(local, remote, Context{})
	if len(conflicts) != 1 || conflicts[0].SuggestedResolution != StrategyUserChoice {
		t.Fatalf("diverged email must demand a user choice, got %v", conflicts)
	}

	result := e.Resolve(local, conflicts, nil)
	if !result.RequiresUserInput {
		t.Error("unresolved critical conflict must set RequiresUserInput")
	}
}

func TestTimestampRuleUsesLatest(t *testing.T) {
	e := NewEngine()

	localTime := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	remoteTime := time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)
	ctx := Context{LastModifiedLocal: localTime, LastModifiedRemote: remoteTime}

	local := map[string]any{"completed_at": "2026-08-20T10:00:00Z"}
	remote := map[string]any{"completed_at": "2026-08-19T10:00:00Z"}

	conflicts := e.Detect(local, remote, ctx)
	if len(conflicts) != 1 || conflicts[0].SuggestedResolution != StrategyUseLatestTimestamp {
		t.Fatalf("timestamp field should suggest use_latest_timestamp, got %v", conflicts)
	}

	result := e.Resolve(local, conflicts, nil)
	if result.MergedData["completed_at"] != "2026-08-20T10:00:00Z" {
		t.Errorf("newer local side should win, merged = %v", result.MergedData)
	}
}

func TestSettingsRuleKeepsLocal(t *testing.T) {
	e := NewEngine()

	local := map[string]any{"notification_settings": map[string]any{"push": true}}
	remote := map[string]any{"notification_settings": map[string]any{"push": false}}

	conflicts := e.Detect(local, remote, Context{})
	if len(conflicts) != 1 || conflicts[0].SuggestedResolution != StrategyLocalWins {
		t.Fatalf("settings should keep local, got %v", conflicts)
	}
}

func TestCustomRuleWinsOutright(t *testing.T) {
	e := NewEngine(WithFieldRule("pin-weight", "weight*", StrategyLocalWins))

	local := map[string]any{"weight_kg": float64(63)}
	remote := map[string]any{"weight_kg": float64(65)}

	conflicts := e.Detect(local, remote, Context{})
	if conflicts[0].SuggestedResolution != StrategyLocalWins {
		t.Errorf("custom rule should win, got %s", conflicts[0].SuggestedResolution)
	}
}

func TestMergeArraysIsSupersetWithoutDuplicates(t *testing.T) {
	local := []any{"bands", "dumbbells", "bench"}
	remote := []any{"dumbbells", "kettlebell"}

	merged, ok := mergeValues(local, remote).([]any)
	if !ok {
		t.Fatalf("merge of two arrays should be an array")
	}

	seen := map[any]int{}
	for _, v := range merged {
		seen[v]++
	}
	for _, v := range append(local, remote...) {
		if seen[v] == 0 {
			t.Errorf("merge lost %v", v)
		}
	}
	for v, n := range seen {
		if n > 1 {
			t.Errorf("merge duplicated %v", v)
		}
	}
}

func TestMergeObjectsLocalPrecedence(t *testing.T) {
	local := map[string]any{"push": true, "sound": "chime"}
	remote := map[string]any{"push": false, "badge": true}

	merged, ok := mergeValues(local, remote).(map[string]any)
	if !ok {
		t.Fatal("merge of two objects should be an object")
	}
	if merged["push"] != true {
		t.Error("local must take precedence on overlapping keys")
	}
	if merged["sound"] != "chime" || merged["badge"] != true {
		t.Errorf("merge lost keys: %v", merged)
	}
}

func TestCreateNewSynthesis(t *testing.T) {
	if got := synthesize("cut sugar", "more protein"); got != "cut sugar / more protein" {
		t.Errorf("string synthesis = %v", got)
	}
	if got := synthesize(float64(60), float64(70)); got != float64(65) {
		t.Errorf("number synthesis = %v", got)
	}
	tagged, ok := synthesize(true, "yes").(map[string]any)
	if !ok || tagged["local"] != true || tagged["remote"] != "yes" {
		t.Errorf("mixed synthesis = %v", tagged)
	}
}

func TestSkipFieldOmitsFromMerge(t *testing.T) {
	e := NewEngine(WithFieldRule("drop-scratch", "scratchpad", StrategySkipField))

	local := map[string]any{"scratchpad": "a", "age": float64(30)}
	remote := map[string]any{"scratchpad": "b", "age": float64(30)}

	conflicts := e.Detect(local, remote, Context{})
	result := e.Resolve(local, conflicts, nil)

	if _, present := result.MergedData["scratchpad"]; present {
		t.Error("skip_field must omit the field from the merged result")
	}
	if result.MergedData["age"] != float64(30) {
		t.Error("untouched fields must survive the merge")
	}
}

func TestAuditHook(t *testing.T) {
	var audited []Resolved
	e := NewEngine(WithAuditHook(func(r Resolved) { audited = append(audited, r) }))

	local := map[string]any{"age": float64(25)}
	remote := map[string]any{"age": float64(30)}

	conflicts := e.Detect(local, remote, Context{})
	e.Resolve(local, conflicts, nil)

	if len(audited) != 1 || audited[0].Conflict.Field != "age" {
		t.Errorf("audit hook saw %v", audited)
	}
}

func TestMissingRemoteKeepsLocalValue(t *testing.T) {
	e := NewEngine()

	local := map[string]any{"notes": "cut sugar"}
	remote := map[string]any{}

	conflicts := e.Detect(local, remote, Context{})
	if len(conflicts) != 1 || conflicts[0].SuggestedResolution != StrategyLocalWins {
		t.Fatalf("missing_remote should keep local, got %v", conflicts)
	}

	result := e.Resolve(local, conflicts, nil)
	if result.MergedData["notes"] != "cut sugar" {
		t.Errorf("merged = %v", result.MergedData)
	}
}
