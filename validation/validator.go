// Package validation checks domain records against profile rules before they
// are persisted. The validator is stateless; every check is a pure function
// of the record it is given.
package validation

import (
	"fmt"

	"github.com/fitvault/fitvault/record"
)

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Result is the outcome of validating a single record.
type Result struct {
	IsValid  bool         `json:"is_valid"`
	Errors   []FieldError `json:"errors"`
	Warnings []FieldError `json:"warnings"`
}

func (r *Result) addError(field, msg string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: msg})
	r.IsValid = false
}

func (r *Result) addWarning(field, msg string) {
	r.Warnings = append(r.Warnings, FieldError{Field: field, Message: msg})
}

// Validator validates domain records. The zero value is ready to use.
type Validator struct{}

// New returns a Validator.
func New() *Validator { return &Validator{} }

// physiological bounds used across profile checks
const (
	minAge      = 13
	maxAge      = 120
	minHeightCM = 90
	maxHeightCM = 250
	minWeightKG = 25
	maxWeightKG = 400
)

var dietTypes = map[string]bool{
	"omnivore": true, "vegetarian": true, "vegan": true,
	"pescatarian": true, "keto": true, "paleo": true, "mediterranean": true,
}

var fitnessLevels = map[string]bool{
	"beginner": true, "intermediate": true, "advanced": true,
}

// ValidatePersonalInfo checks the core profile record.
func (v *Validator) ValidatePersonalInfo(info record.PersonalInfo) Result {
	res := Result{IsValid: true}

	if info.FullName == "" {
		res.addError("full_name", "name is required")
	}
	if info.Age < minAge || info.Age > maxAge {
		res.addError("age", fmt.Sprintf("age must be between %d and %d", minAge, maxAge))
	}
	if info.HeightCM < minHeightCM || info.HeightCM > maxHeightCM {
		res.addError("height_cm", fmt.Sprintf("height must be between %d and %d cm", minHeightCM, maxHeightCM))
	}
	if info.WeightKG < minWeightKG || info.WeightKG > maxWeightKG {
		res.addError("weight_kg", fmt.Sprintf("weight must be between %d and %d kg", minWeightKG, maxWeightKG))
	}
	if info.Gender == "" {
		res.addWarning("gender", "gender not set; calorie estimates will use defaults")
	}

	return res
}

// ValidateFitnessGoals checks the goals record.
func (v *Validator) ValidateFitnessGoals(goals record.FitnessGoals) Result {
	res := Result{IsValid: true}

	if goals.PrimaryGoal == "" && len(goals.Goals) == 0 {
		res.addError("primary_goal", "at least one goal is required")
	}
	if goals.FitnessLevel != "" && !fitnessLevels[goals.FitnessLevel] {
		res.addError("fitness_level", "unknown fitness level")
	}
	if goals.TargetWeightKG != 0 && (goals.TargetWeightKG < minWeightKG || goals.TargetWeightKG > maxWeightKG) {
		res.addError("target_weight_kg", "target weight out of range")
	}
	if goals.TimeframeWeeks < 0 {
		res.addError("timeframe_weeks", "timeframe cannot be negative")
	}
	if goals.TimeframeWeeks > 0 && goals.TimeframeWeeks < 4 {
		res.addWarning("timeframe_weeks", "timeframes under 4 weeks rarely show measurable change")
	}

	return res
}

// ValidateDietPreferences checks the diet record.
func (v *Validator) ValidateDietPreferences(prefs record.DietPreferences) Result {
	res := Result{IsValid: true}

	if prefs.DietType != "" && !dietTypes[prefs.DietType] {
		res.addError("diet_type", "unknown diet type")
	}
	if prefs.MealsPerDay < 0 || prefs.MealsPerDay > 8 {
		res.addError("meals_per_day", "meals per day must be between 0 and 8")
	}
	if !prefs.BreakfastEnabled && !prefs.LunchEnabled && !prefs.DinnerEnabled && !prefs.SnacksEnabled {
		res.addWarning("meals", "no meal slots enabled; meal planning will be empty")
	}

	return res
}

// ValidateWorkoutPreferences checks the workout setup record.
func (v *Validator) ValidateWorkoutPreferences(prefs record.WorkoutPreferences) Result {
	res := Result{IsValid: true}

	if prefs.DaysPerWeek < 0 || prefs.DaysPerWeek > 7 {
		res.addError("days_per_week", "days per week must be between 0 and 7")
	}
	if prefs.SessionMinutes < 0 || prefs.SessionMinutes > 360 {
		res.addError("session_minutes", "session length must be between 0 and 360 minutes")
	}
	if prefs.DaysPerWeek >= 6 {
		res.addWarning("days_per_week", "training 6+ days per week leaves little recovery time")
	}

	return res
}

// ValidateBodyAnalysis checks the derived body composition record.
func (v *Validator) ValidateBodyAnalysis(analysis record.BodyAnalysis) Result {
	res := Result{IsValid: true}

	if analysis.BMI != 0 && (analysis.BMI < 10 || analysis.BMI > 60) {
		res.addError("bmi", "BMI out of plausible range")
	}
	if analysis.BodyFatPercent < 0 || analysis.BodyFatPercent > 70 {
		res.addError("body_fat_percent", "body fat percent out of range")
	}

	return res
}

// ValidateWorkoutSession checks a logged workout.
func (v *Validator) ValidateWorkoutSession(session record.WorkoutSession) Result {
	res := Result{IsValid: true}

	if session.Name == "" {
		res.addError("name", "session name is required")
	}
	if session.DurationMinutes <= 0 {
		res.addError("duration_minutes", "duration must be positive")
	}
	if session.CaloriesBurned < 0 {
		res.addError("calories_burned", "calories cannot be negative")
	}

	return res
}

// ValidateMealLog checks a logged meal.
func (v *Validator) ValidateMealLog(meal record.MealLog) Result {
	res := Result{IsValid: true}

	if meal.Name == "" {
		res.addError("name", "meal name is required")
	}
	if meal.Calories < 0 {
		res.addError("calories", "calories cannot be negative")
	}
	if meal.Calories > 5000 {
		res.addWarning("calories", "unusually large meal; double-check the entry")
	}

	return res
}

// ValidateBodyMeasurement checks a progress measurement.
func (v *Validator) ValidateBodyMeasurement(m record.BodyMeasurement) Result {
	res := Result{IsValid: true}

	if m.WeightKG < minWeightKG || m.WeightKG > maxWeightKG {
		res.addError("weight_kg", "weight out of range")
	}
	if m.MeasuredAt == "" {
		res.addError("measured_at", "measurement date is required")
	}

	return res
}
