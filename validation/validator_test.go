package validation

import (
	"testing"

	"github.com/fitvault/fitvault/record"
)

func validInfo() record.PersonalInfo {
	return record.PersonalInfo{
		FullName: "Jane Doe",
		Age:      29,
		Gender:   "female",
		HeightCM: 170,
		WeightKG: 63,
	}
}

func TestValidatePersonalInfo(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		mutate    func(*record.PersonalInfo)
		wantValid bool
		wantField string
	}{
		{"valid", func(i *record.PersonalInfo) {}, true, ""},
		{"missing name", func(i *record.PersonalInfo) { i.FullName = "" }, false, "full_name"},
		{"too young", func(i *record.PersonalInfo) { i.Age = 9 }, false, "age"},
		{"too old", func(i *record.PersonalInfo) { i.Age = 150 }, false, "age"},
		{"height low", func(i *record.PersonalInfo) { i.HeightCM = 50 }, false, "height_cm"},
		{"weight high", func(i *record.PersonalInfo) { i.WeightKG = 500 }, false, "weight_kg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := validInfo()
			tt.mutate(&info)
			res := v.ValidatePersonalInfo(info)

			if res.IsValid != tt.wantValid {
				t.Fatalf("IsValid = %v, want %v (errors: %v)", res.IsValid, tt.wantValid, res.Errors)
			}
			if tt.wantField != "" {
				found := false
				for _, e := range res.Errors {
					if e.Field == tt.wantField {
						found = true
					}
				}
				if !found {
					t.Errorf("expected error on %q, got %v", tt.wantField, res.Errors)
				}
			}
		})
	}
}

func TestValidatePersonalInfoWarning(t *testing.T) {
	info := validInfo()
	info.Gender = ""
	res := New().ValidatePersonalInfo(info)

	if !res.IsValid {
		t.Fatal("missing gender is a warning, not an error")
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning for missing gender")
	}
}

func TestValidateFitnessGoals(t *testing.T) {
	v := New()

	res := v.ValidateFitnessGoals(record.FitnessGoals{})
	if res.IsValid {
		t.Error("empty goals should be invalid")
	}

	res = v.ValidateFitnessGoals(record.FitnessGoals{
		PrimaryGoal:  "lose_weight",
		FitnessLevel: "beginner",
	})
	if !res.IsValid {
		t.Errorf("expected valid, got %v", res.Errors)
	}

	res = v.ValidateFitnessGoals(record.FitnessGoals{
		PrimaryGoal:  "lose_weight",
		FitnessLevel: "olympian",
	})
	if res.IsValid {
		t.Error("unknown fitness level should be invalid")
	}

	res = v.ValidateFitnessGoals(record.FitnessGoals{
		PrimaryGoal:    "lose_weight",
		TimeframeWeeks: 2,
	})
	if !res.IsValid || len(res.Warnings) == 0 {
		t.Error("short timeframe should be valid with a warning")
	}
}

func TestValidateDietPreferences(t *testing.T) {
	v := New()

	res := v.ValidateDietPreferences(record.DietPreferences{DietType: "keto", MealsPerDay: 3, LunchEnabled: true})
	if !res.IsValid {
		t.Errorf("expected valid, got %v", res.Errors)
	}

	res = v.ValidateDietPreferences(record.DietPreferences{DietType: "carnivore-extreme"})
	if res.IsValid {
		t.Error("unknown diet type should be invalid")
	}

	res = v.ValidateDietPreferences(record.DietPreferences{MealsPerDay: 12})
	if res.IsValid {
		t.Error("12 meals per day should be invalid")
	}
}

func TestValidateWorkoutPreferences(t *testing.T) {
	v := New()

	res := v.ValidateWorkoutPreferences(record.WorkoutPreferences{DaysPerWeek: 8})
	if res.IsValid {
		t.Error("8 days per week should be invalid")
	}

	res = v.ValidateWorkoutPreferences(record.WorkoutPreferences{DaysPerWeek: 6, SessionMinutes: 60})
	if !res.IsValid {
		t.Errorf("expected valid, got %v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Error("6 training days should carry a recovery warning")
	}
}

func TestValidateMealLog(t *testing.T) {
	v := New()

	res := v.ValidateMealLog(record.MealLog{Name: "lunch", Calories: -10})
	if res.IsValid {
		t.Error("negative calories should be invalid")
	}

	res = v.ValidateMealLog(record.MealLog{Name: "feast", Calories: 6000})
	if !res.IsValid || len(res.Warnings) == 0 {
		t.Error("huge meal should be valid with a warning")
	}
}

func TestValidateBodyMeasurement(t *testing.T) {
	v := New()

	res := v.ValidateBodyMeasurement(record.BodyMeasurement{WeightKG: 70, MeasuredAt: "2026-08-01"})
	if !res.IsValid {
		t.Errorf("expected valid, got %v", res.Errors)
	}

	res = v.ValidateBodyMeasurement(record.BodyMeasurement{WeightKG: 70})
	if res.IsValid {
		t.Error("missing measurement date should be invalid")
	}
}
