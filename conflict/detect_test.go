package conflict

import (
	"sort"
	"testing"
)

func fieldsOf(conflicts []Conflict) []string {
	out := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, c.Field)
	}
	sort.Strings(out)
	return out
}

func byField(conflicts []Conflict) map[string]Conflict {
	out := make(map[string]Conflict, len(conflicts))
	for _, c := range conflicts {
		out[c.Field] = c
	}
	return out
}

func TestDetectClassification(t *testing.T) {
	e := NewEngine()

	local := map[string]any{
		"full_name": "Jane",
		"age":       float64(25),
		"weight_kg": "63", // string locally, number remotely
		"notes":     "cut sugar",
	}
	remote := map[string]any{
		"full_name": "Jane",
		"age":       float64(30),
		"weight_kg": float64(63),
		"email":     "j@x.com",
	}

	conflicts := e.Detect(local, remote, Context{})
	got := byField(conflicts)

	if _, ok := got["full_name"]; ok {
		t.Error("identical fields must be skipped")
	}
	if c := got["age"]; c.Type != TypeValueMismatch {
		t.Errorf("age type = %s, want value_mismatch", c.Type)
	}
	if c := got["weight_kg"]; c.Type != TypeTypeMismatch {
		t.Errorf("weight_kg type = %s, want type_mismatch", c.Type)
	}
	if c := got["email"]; c.Type != TypeMissingLocal {
		t.Errorf("email type = %s, want missing_local", c.Type)
	}
	if c := got["notes"]; c.Type != TypeMissingRemote {
		t.Errorf("notes type = %s, want missing_remote", c.Type)
	}
}

func TestDetectSymmetry(t *testing.T) {
	e := NewEngine()

	a := map[string]any{
		"age":         float64(25),
		"goals":       []any{"strength"},
		"only_in_a":   "x",
		"same_everyw": true,
	}
	b := map[string]any{
		"age":         float64(30),
		"goals":       []any{"cardio"},
		"only_in_b":   "y",
		"same_everyw": true,
	}

	ab := e.Detect(a, b, Context{})
	ba := e.Detect(b, a, Context{})

	fa, fb := fieldsOf(ab), fieldsOf(ba)
	if len(fa) != len(fb) {
		t.Fatalf("asymmetric field counts: %v vs %v", fa, fb)
	}
	for i := range fa {
		if fa[i] != fb[i] {
			t.Fatalf("asymmetric conflict fields: %v vs %v", fa, fb)
		}
	}

	// values are swapped between the two directions
	abm, bam := byField(ab), byField(ba)
	for field, c := range abm {
		mirror := bam[field]
		if !deepEqual(c.LocalValue, mirror.RemoteValue) || !deepEqual(c.RemoteValue, mirror.LocalValue) {
			t.Errorf("field %q: values not mirrored", field)
		}
	}
}

func TestDetectDeepEquality(t *testing.T) {
	e := NewEngine()

	local := map[string]any{
		"equipment": []any{"bands", "dumbbells"},
		"macros":    map[string]any{"protein": float64(140), "carbs": float64(200)},
	}
	remote := map[string]any{
		"equipment": []any{"bands", "dumbbells"},
		"macros":    map[string]any{"protein": float64(140), "carbs": float64(200)},
	}

	if conflicts := e.Detect(local, remote, Context{}); len(conflicts) != 0 {
		t.Errorf("structurally equal values should not conflict: %v", conflicts)
	}

	remote["macros"] = map[string]any{"protein": float64(150), "carbs": float64(200)}
	conflicts := e.Detect(local, remote, Context{})
	if len(conflicts) != 1 || conflicts[0].Field != "macros" {
		t.Errorf("expected one conflict on macros, got %v", conflicts)
	}
}

func TestDetectNilTreatedAsAbsent(t *testing.T) {
	e := NewEngine()

	local := map[string]any{"notes": nil}
	remote := map[string]any{}

	if conflicts := e.Detect(local, remote, Context{}); len(conflicts) != 0 {
		t.Errorf("nil local value with absent remote should not conflict: %v", conflicts)
	}
}

func TestSeverityClassification(t *testing.T) {
	tests := []struct {
		field string
		want  Severity
	}{
		{"id", SeverityCritical},
		{"user_id", SeverityCritical},
		{"email", SeverityCritical},
		{"password", SeverityCritical},
		{"full_name", SeverityHigh},
		{"age", SeverityHigh},
		{"weight_kg", SeverityHigh},
		{"height_cm", SeverityHigh},
		{"primary_goal", SeverityHigh},
		{"notification_settings", SeverityMedium},
		{"diet_preference", SeverityMedium},
		{"notes", SeverityMedium},
		{"avatar_url", SeverityLow},
		{"plan_ids", SeverityLow},
	}

	for _, tt := range tests {
		if got := classifySeverity(tt.field); got != tt.want {
			t.Errorf("classifySeverity(%q) = %s, want %s", tt.field, got, tt.want)
		}
	}
}
