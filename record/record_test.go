package record

import (
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from SyncStatus
		to   SyncStatus
		ok   bool
	}{
		{"local to pending", StatusLocal, StatusPending, true},
		{"local to synced", StatusLocal, StatusSynced, true},
		{"pending to synced", StatusPending, StatusSynced, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"pending to conflict", StatusPending, StatusConflict, true},
		{"synced back to pending", StatusSynced, StatusPending, true},
		{"synced to conflict", StatusSynced, StatusConflict, true},
		{"failed re-enters pending", StatusFailed, StatusPending, true},
		{"conflict resolved to pending", StatusConflict, StatusPending, true},
		{"conflict cannot jump to synced", StatusConflict, StatusSynced, false},
		{"conflict cannot fail", StatusConflict, StatusFailed, false},
		{"synced cannot fail directly", StatusSynced, StatusFailed, false},
		{"local cannot conflict", StatusLocal, StatusConflict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.from.Transition(tt.to)
			if tt.ok && err != nil {
				t.Fatalf("Transition(%s -> %s) unexpected error: %v", tt.from, tt.to, err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatalf("Transition(%s -> %s) should be illegal", tt.from, tt.to)
				}
				if got != tt.from {
					t.Errorf("illegal transition must not move the state, got %s", got)
				}
			}
		})
	}
}

func TestNeedsSync(t *testing.T) {
	for _, s := range []SyncStatus{StatusLocal, StatusPending, StatusFailed} {
		if !s.NeedsSync() {
			t.Errorf("%s should need sync", s)
		}
	}
	for _, s := range []SyncStatus{StatusSynced, StatusConflict} {
		if s.NeedsSync() {
			t.Errorf("%s should not need sync", s)
		}
	}
}

func TestEnvelopeTouch(t *testing.T) {
	now := time.Now().UTC()
	env := NewEnvelope(now)

	if env.ID == "" {
		t.Fatal("new envelope must have an id")
	}
	if env.Version != 1 {
		t.Errorf("Version = %d, want 1", env.Version)
	}
	if env.SyncStatus != StatusLocal {
		t.Errorf("SyncStatus = %s, want local", env.SyncStatus)
	}

	later := now.Add(time.Minute)
	env.MarkSynced()
	env.Touch(later)

	if env.Version != 2 {
		t.Errorf("Version = %d, want 2 after Touch", env.Version)
	}
	if env.SyncStatus != StatusPending {
		t.Errorf("SyncStatus = %s, want pending after touching a synced record", env.SyncStatus)
	}
	if !env.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt not refreshed")
	}
}

func TestEnvelopeTouchZeroValue(t *testing.T) {
	var env Envelope
	env.Touch(time.Now().UTC())

	if env.ID == "" || env.Version != 1 {
		t.Errorf("touching a zero envelope should initialize it, got %+v", env)
	}
}

func TestKindRegistry(t *testing.T) {
	tests := []struct {
		kind    Kind
		baseKey string
		table   string
	}{
		{KindPersonalInfo, "personalInfo", "personal_info"},
		{KindFitnessGoals, "fitnessGoals", "fitness_goals"},
		{KindDietPreferences, "dietPreferences", "diet_preferences"},
		{KindWorkoutPreferences, "workoutPreferences", "workout_preferences"},
		{KindBodyAnalysis, "bodyAnalysis", "body_analysis"},
	}

	for _, tt := range tests {
		if got := tt.kind.BaseKey(); got != tt.baseKey {
			t.Errorf("%s BaseKey = %q, want %q", tt.kind, got, tt.baseKey)
		}
		if got := tt.kind.Table(); got != tt.table {
			t.Errorf("%s Table = %q, want %q", tt.kind, got, tt.table)
		}
	}

	if Kind("bogus").Valid() {
		t.Error("unknown kind should not be valid")
	}
	if len(ProfileKinds()) != 5 {
		t.Errorf("ProfileKinds() = %d entries, want 5", len(ProfileKinds()))
	}
}

func TestToMapRoundTrip(t *testing.T) {
	info := PersonalInfo{
		Envelope: NewEnvelope(time.Now().UTC()),
		FullName: "Jane Doe",
		Age:      29,
		HeightCM: 170.5,
		WeightKG: 63.2,
	}

	m, err := ToMap(info)
	if err != nil {
		t.Fatalf("ToMap: %v", err)
	}
	if m["full_name"] != "Jane Doe" {
		t.Errorf("field names should use wire format, got %v", m)
	}

	var back PersonalInfo
	if err := FromMap(m, &back); err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if back.FullName != info.FullName || back.Age != info.Age || back.HeightCM != info.HeightCM {
		t.Errorf("round trip mismatch: %+v vs %+v", back, info)
	}
}
