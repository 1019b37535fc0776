package record

import "encoding/json"

// Kind identifies which domain entity a record holds. It doubles as the
// registry key for base storage keys and remote table names.
type Kind string

const (
	KindPersonalInfo       Kind = "personal_info"
	KindFitnessGoals       Kind = "fitness_goals"
	KindDietPreferences    Kind = "diet_preferences"
	KindWorkoutPreferences Kind = "workout_preferences"
	KindBodyAnalysis       Kind = "body_analysis"
	KindWorkoutSession     Kind = "workout_session"
	KindMealLog            Kind = "meal_log"
	KindBodyMeasurement    Kind = "body_measurement"
)

// kindInfo binds a Kind to its identity-scoped base key and remote table.
type kindInfo struct {
	baseKey string
	table   string
}

var kinds = map[Kind]kindInfo{
	KindPersonalInfo:       {baseKey: "personalInfo", table: "personal_info"},
	KindFitnessGoals:       {baseKey: "fitnessGoals", table: "fitness_goals"},
	KindDietPreferences:    {baseKey: "dietPreferences", table: "diet_preferences"},
	KindWorkoutPreferences: {baseKey: "workoutPreferences", table: "workout_preferences"},
	KindBodyAnalysis:       {baseKey: "bodyAnalysis", table: "body_analysis"},
	KindWorkoutSession:     {baseKey: "workoutSessions", table: "workout_sessions"},
	KindMealLog:            {baseKey: "mealLogs", table: "meal_logs"},
	KindBodyMeasurement:    {baseKey: "bodyMeasurements", table: "body_measurements"},
}

// BaseKey returns the identity-scoped storage base name for this kind.
func (k Kind) BaseKey() string { return kinds[k].baseKey }

// Table returns the remote table name for this kind.
func (k Kind) Table() string { return kinds[k].table }

// Valid reports whether k names a known entity kind.
func (k Kind) Valid() bool { _, ok := kinds[k]; return ok }

// ProfileKinds is the fixed set of per-identity singleton entities, in the
// order guest migration walks them.
func ProfileKinds() []Kind {
	return []Kind{
		KindPersonalInfo,
		KindFitnessGoals,
		KindDietPreferences,
		KindWorkoutPreferences,
		KindBodyAnalysis,
	}
}

// AllKinds returns every known kind, profile singletons first.
func AllKinds() []Kind {
	return append(ProfileKinds(), KindWorkoutSession, KindMealLog, KindBodyMeasurement)
}

// PersonalInfo is the user's core profile. Field names follow the mobile
// client's wire format (height_cm, weight_kg, occupation_type).
type PersonalInfo struct {
	Envelope
	FullName       string  `json:"full_name"`
	Age            int     `json:"age"`
	Gender         string  `json:"gender"`
	HeightCM       float64 `json:"height_cm"`
	WeightKG       float64 `json:"weight_kg"`
	OccupationType string  `json:"occupation_type"`
	Email          string  `json:"email,omitempty"`
}

// FitnessGoals captures what the user is training for.
type FitnessGoals struct {
	Envelope
	PrimaryGoal    string   `json:"primary_goal"`
	Goals          []string `json:"goals"`
	TargetWeightKG float64  `json:"target_weight_kg,omitempty"`
	TimeframeWeeks int      `json:"timeframe_weeks,omitempty"`
	FitnessLevel   string   `json:"fitness_level"`
}

// DietPreferences captures eating style and restrictions.
type DietPreferences struct {
	Envelope
	DietType         string   `json:"diet_type"`
	Allergies        []string `json:"allergies"`
	Dislikes         []string `json:"dislikes"`
	MealsPerDay      int      `json:"meals_per_day"`
	BreakfastEnabled bool     `json:"breakfast_enabled"`
	LunchEnabled     bool     `json:"lunch_enabled"`
	DinnerEnabled    bool     `json:"dinner_enabled"`
	SnacksEnabled    bool     `json:"snacks_enabled"`
}

// WorkoutPreferences captures how the user wants to train.
type WorkoutPreferences struct {
	Envelope
	DaysPerWeek       int      `json:"days_per_week"`
	SessionMinutes    int      `json:"session_minutes"`
	PreferredTime     string   `json:"preferred_time"`
	Equipment         []string `json:"equipment"`
	PreferredWorkouts []string `json:"preferred_workouts"`
}

// BodyAnalysis is the derived body composition snapshot from onboarding.
type BodyAnalysis struct {
	Envelope
	BMI            float64 `json:"bmi"`
	BodyFatPercent float64 `json:"body_fat_percent,omitempty"`
	MuscleMassKG   float64 `json:"muscle_mass_kg,omitempty"`
	BMR            float64 `json:"bmr,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

// WorkoutSession is one completed workout.
type WorkoutSession struct {
	Envelope
	PlanID          string   `json:"plan_id,omitempty"`
	Name            string   `json:"name"`
	DurationMinutes int      `json:"duration_minutes"`
	CaloriesBurned  float64  `json:"calories_burned"`
	Exercises       []string `json:"exercises"`
	CompletedAt     string   `json:"completed_at"`
}

// MealLog is one logged meal.
type MealLog struct {
	Envelope
	MealType  string  `json:"meal_type"`
	Name      string  `json:"name"`
	Calories  float64 `json:"calories"`
	ProteinG  float64 `json:"protein_g"`
	CarbsG    float64 `json:"carbs_g"`
	FatG      float64 `json:"fat_g"`
	LoggedAt  string  `json:"logged_at"`
	Notes     string  `json:"notes,omitempty"`
}

// BodyMeasurement is one progress measurement.
type BodyMeasurement struct {
	Envelope
	WeightKG   float64 `json:"weight_kg"`
	WaistCM    float64 `json:"waist_cm,omitempty"`
	ChestCM    float64 `json:"chest_cm,omitempty"`
	HipsCM     float64 `json:"hips_cm,omitempty"`
	MeasuredAt string  `json:"measured_at"`
}

// ToMap flattens a record into field name -> value form for generic field
// iteration (conflict detection). It round-trips through JSON so the field
// names match the wire format exactly.
func ToMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// FromMap rebuilds a typed record from field map form, the inverse of ToMap.
func FromMap(m map[string]any, out any) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
