package manager

import (
	"context"
	"testing"

	"github.com/fitvault/fitvault/identity"
	"github.com/fitvault/fitvault/record"
)

func TestSaveWorkoutSessionAppendsHistory(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, &StaticAuth{Identity: identity.Guest()}, newFakeRemote())

	res, err := m.SaveWorkoutSession(ctx, record.WorkoutSession{
		Name:            "Upper body",
		DurationMinutes: 45,
		CaloriesBurned:  320,
		Exercises:       []string{"bench press", "rows"},
		CompletedAt:     "2026-08-28",
	})
	if err != nil {
		t.Fatalf("save session: %v", err)
	}
	if !res.Success {
		t.Fatalf("save failed: %+v", res)
	}

	sessions, err := m.WorkoutSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	if sessions[0].Name != "Upper body" {
		t.Errorf("session name = %q", sessions[0].Name)
	}
	if sessions[0].ID == "" {
		t.Error("session envelope not initialized")
	}
}

func TestSaveWorkoutSessionRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, &StaticAuth{Identity: identity.Guest()}, newFakeRemote())

	res, err := m.SaveWorkoutSession(ctx, record.WorkoutSession{Name: "", DurationMinutes: 0})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Success {
		t.Fatal("invalid session accepted")
	}

	sessions, err := m.WorkoutSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("invalid session was appended: %d entries", len(sessions))
	}
}

func TestSaveWorkoutSessionUpsertsByID(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, &StaticAuth{Identity: identity.Guest()}, newFakeRemote())

	session := record.WorkoutSession{Name: "Run", DurationMinutes: 30, CompletedAt: "2026-08-28"}
	if _, err := m.SaveWorkoutSession(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	sessions, _ := m.WorkoutSessions(ctx)
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}

	// saving the same record again replaces it in place
	update := sessions[0]
	update.DurationMinutes = 40
	if _, err := m.SaveWorkoutSession(ctx, update); err != nil {
		t.Fatalf("update: %v", err)
	}

	sessions, _ = m.WorkoutSessions(ctx)
	if len(sessions) != 1 {
		t.Fatalf("update duplicated the session: %d entries", len(sessions))
	}
	if sessions[0].DurationMinutes != 40 {
		t.Errorf("duration = %d, want 40", sessions[0].DurationMinutes)
	}
}

func TestSaveMealLogSyncsWhenOnline(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	m, _, _ := newTestManager(t, &StaticAuth{Identity: identity.User("user-1"), Online: true}, remote)

	res, err := m.SaveMealLog(ctx, record.MealLog{
		MealType: "lunch",
		Name:     "Chicken salad",
		Calories: 540,
		LoggedAt: "2026-08-28T12:30:00Z",
	})
	if err != nil {
		t.Fatalf("save meal: %v", err)
	}
	if !res.Success || res.SyncStatus != record.StatusSynced {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, ok := remote.get("meal_logs", "user-1"); !ok {
		t.Error("meal did not reach the remote store")
	}

	logs, err := m.MealLogs(ctx)
	if err != nil {
		t.Fatalf("list meals: %v", err)
	}
	if len(logs) != 1 || logs[0].SyncStatus != record.StatusSynced {
		t.Errorf("unexpected history state: %+v", logs)
	}
}

func TestSaveBodyMeasurementOfflineQueues(t *testing.T) {
	ctx := context.Background()
	m, _, q := newTestManager(t, &StaticAuth{Identity: identity.User("user-1"), Online: false}, newFakeRemote())

	res, err := m.SaveBodyMeasurement(ctx, record.BodyMeasurement{
		WeightKG:   64.2,
		MeasuredAt: "2026-08-28",
	})
	if err != nil {
		t.Fatalf("save measurement: %v", err)
	}
	if !res.Success || !res.Queued {
		t.Fatalf("offline save should queue: %+v", res)
	}
	if n, _ := q.Size(ctx); n != 1 {
		t.Errorf("queue size = %d, want 1", n)
	}

	measurements, err := m.BodyMeasurements(ctx)
	if err != nil {
		t.Fatalf("list measurements: %v", err)
	}
	if len(measurements) != 1 {
		t.Fatalf("measurements = %d, want 1", len(measurements))
	}
}

func TestOnboardingProgress(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, &StaticAuth{Identity: identity.Guest()}, newFakeRemote())

	step, complete, err := m.OnboardingStatus(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if step != 0 || complete {
		t.Fatalf("fresh install status = %d/%v", step, complete)
	}

	if err := m.SetOnboardingStep(ctx, 3); err != nil {
		t.Fatalf("set step: %v", err)
	}
	// steps never move backwards
	if err := m.SetOnboardingStep(ctx, 1); err != nil {
		t.Fatalf("set earlier step: %v", err)
	}
	step, _, _ = m.OnboardingStatus(ctx)
	if step != 3 {
		t.Errorf("step = %d, want 3", step)
	}

	if err := m.CompleteOnboarding(ctx); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, complete, _ = m.OnboardingStatus(ctx)
	if !complete {
		t.Error("onboarding not marked complete")
	}
}

func TestPruneHistoryKeepsUnsynced(t *testing.T) {
	sessions := make([]record.WorkoutSession, 0, maxHistoryEntries+10)
	for i := 0; i < maxHistoryEntries+10; i++ {
		s := record.WorkoutSession{Name: "s", DurationMinutes: 10}
		if i < 5 {
			s.SyncStatus = record.StatusPending
		} else {
			s.SyncStatus = record.StatusSynced
		}
		sessions = append(sessions, s)
	}

	trimmed, pruned := pruneSessions(sessions, 0)
	if len(trimmed) != maxHistoryEntries {
		t.Fatalf("trimmed length = %d, want %d", len(trimmed), maxHistoryEntries)
	}
	if pruned != 10 {
		t.Errorf("pruned = %d, want 10", pruned)
	}
	unsynced := 0
	for _, s := range trimmed {
		if s.SyncStatus == record.StatusPending {
			unsynced++
		}
	}
	if unsynced != 5 {
		t.Errorf("pruning dropped unsynced entries: %d left of 5", unsynced)
	}
}
