package storage

import (
	"fmt"
	"time"

	"github.com/fitvault/fitvault/record"
)

// CurrentSchemaVersion is the schema version the running code expects.
// Initialize migrates older on-disk schemas up to this version.
const CurrentSchemaVersion = "1.2.0"

// SchemaKey is the fixed storage key of the single root schema document.
const SchemaKey = "fitvault_schema"

// Schema is the root document. Exactly one exists per installation.
type Schema struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User      UserNamespace      `json:"user"`
	Fitness   FitnessNamespace   `json:"fitness"`
	Nutrition NutritionNamespace `json:"nutrition"`
	Progress  ProgressNamespace  `json:"progress"`
}

// UserNamespace holds identity-adjacent state and onboarding progress.
type UserNamespace struct {
	ActiveIdentityToken string `json:"active_identity_token"`
	OnboardingStep      int    `json:"onboarding_step"`
	OnboardingComplete  bool   `json:"onboarding_complete"`
	PreferredUnits      string `json:"preferred_units"`
}

// FitnessNamespace holds workout history and plan references.
type FitnessNamespace struct {
	Sessions []record.WorkoutSession `json:"sessions"`
	PlanIDs  []string                `json:"plan_ids"`
}

// NutritionNamespace holds meal history and plan references.
type NutritionNamespace struct {
	Logs    []record.MealLog `json:"logs"`
	PlanIDs []string         `json:"plan_ids"`
}

// ProgressNamespace holds measurements and earned achievements.
type ProgressNamespace struct {
	Measurements []record.BodyMeasurement `json:"measurements"`
	Achievements []string                 `json:"achievements"`
}

// DefaultSchema builds a fresh schema at the current version.
func DefaultSchema(now time.Time) *Schema {
	s := &Schema{
		Version:   CurrentSchemaVersion,
		CreatedAt: now,
		UpdatedAt: now,
		User: UserNamespace{
			ActiveIdentityToken: "guest",
			PreferredUnits:      "metric",
		},
	}
	s.normalize()
	return s
}

// normalize enforces the array invariant: every array-typed namespace field
// is a non-nil slice after initialization.
func (s *Schema) normalize() {
	if s.Fitness.Sessions == nil {
		s.Fitness.Sessions = []record.WorkoutSession{}
	}
	if s.Fitness.PlanIDs == nil {
		s.Fitness.PlanIDs = []string{}
	}
	if s.Nutrition.Logs == nil {
		s.Nutrition.Logs = []record.MealLog{}
	}
	if s.Nutrition.PlanIDs == nil {
		s.Nutrition.PlanIDs = []string{}
	}
	if s.Progress.Measurements == nil {
		s.Progress.Measurements = []record.BodyMeasurement{}
	}
	if s.Progress.Achievements == nil {
		s.Progress.Achievements = []string{}
	}
}

// validate checks the structural invariants a usable schema must hold.
func (s *Schema) validate() error {
	if s.Version == "" {
		return fmt.Errorf("schema has no version")
	}
	if s.CreatedAt.IsZero() {
		return fmt.Errorf("schema has no creation time")
	}
	if s.Fitness.Sessions == nil || s.Fitness.PlanIDs == nil ||
		s.Nutrition.Logs == nil || s.Nutrition.PlanIDs == nil ||
		s.Progress.Measurements == nil || s.Progress.Achievements == nil {
		return fmt.Errorf("schema namespace arrays must be non-nil")
	}
	return nil
}

// migration is one upgrade step from exactly one prior version.
type migration struct {
	from, to string
	apply    func(*Schema)
}

// ordered chain; each step's `to` is the next step's `from`
var migrations = []migration{
	{
		from: "1.0.0", to: "1.1.0",
		apply: func(s *Schema) {
			// 1.1.0 introduced preferred units
			if s.User.PreferredUnits == "" {
				s.User.PreferredUnits = "metric"
			}
		},
	},
	{
		from: "1.1.0", to: "1.2.0",
		apply: func(s *Schema) {
			// 1.2.0 introduced the active identity token and achievements
			if s.User.ActiveIdentityToken == "" {
				s.User.ActiveIdentityToken = "guest"
			}
		},
	},
}

// Migrate upgrades the schema in place to CurrentSchemaVersion, one step at
// a time. Unknown versions (including versions newer than the running code)
// are an error; the caller treats that as an initialization failure.
func (s *Schema) Migrate(now time.Time) error {
	for s.Version != CurrentSchemaVersion {
		stepped := false
		for _, m := range migrations {
			if m.from == s.Version {
				m.apply(s)
				s.Version = m.to
				stepped = true
				break
			}
		}
		if !stepped {
			return fmt.Errorf("no migration path from schema version %q", s.Version)
		}
	}
	s.normalize()
	s.UpdatedAt = now
	return nil
}
