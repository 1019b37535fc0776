package manager

import (
	"context"
	"log/slog"

	"github.com/fitvault/fitvault/record"
	"github.com/fitvault/fitvault/storage"
	"github.com/fitvault/fitvault/validation"
)

// maxHistoryEntries caps each history list. The cap only bites when the store
// reports its quota exceeded; under quota, history grows unbounded.
const maxHistoryEntries = 500

// SaveWorkoutSession validates and appends one completed workout to the
// fitness history, then mirrors it remotely like any other save.
func (m *Manager) SaveWorkoutSession(ctx context.Context, session record.WorkoutSession) (SaveResult, error) {
	return m.saveHistory(ctx, record.KindWorkoutSession, &session.Envelope,
		func() validation.Result { return m.validator.ValidateWorkoutSession(session) },
		func(s *storage.Schema) {
			s.Fitness.Sessions = upsertSession(s.Fitness.Sessions, session)
		},
		func() (map[string]any, error) { return record.ToMap(session) })
}

// SaveMealLog validates and appends one logged meal to the nutrition history.
func (m *Manager) SaveMealLog(ctx context.Context, meal record.MealLog) (SaveResult, error) {
	return m.saveHistory(ctx, record.KindMealLog, &meal.Envelope,
		func() validation.Result { return m.validator.ValidateMealLog(meal) },
		func(s *storage.Schema) {
			s.Nutrition.Logs = upsertLog(s.Nutrition.Logs, meal)
		},
		func() (map[string]any, error) { return record.ToMap(meal) })
}

// SaveBodyMeasurement validates and appends one progress measurement.
func (m *Manager) SaveBodyMeasurement(ctx context.Context, bm record.BodyMeasurement) (SaveResult, error) {
	return m.saveHistory(ctx, record.KindBodyMeasurement, &bm.Envelope,
		func() validation.Result { return m.validator.ValidateBodyMeasurement(bm) },
		func(s *storage.Schema) {
			s.Progress.Measurements = upsertMeasurement(s.Progress.Measurements, bm)
		},
		func() (map[string]any, error) { return record.ToMap(bm) })
}

// saveHistory is the shared history append path. History lives inside the
// root schema document rather than under per-entity keys, so the write is a
// schema read-modify-write guarded by the schema key lock.
func (m *Manager) saveHistory(
	ctx context.Context,
	kind record.Kind,
	env *record.Envelope,
	validate func() validation.Result,
	mutate func(*storage.Schema),
	flatten func() (map[string]any, error),
) (SaveResult, error) {
	res := validate()
	if !res.IsValid {
		return validationFailure(res), nil
	}

	ident := m.auth.CurrentIdentity()
	env.Touch(m.now())
	if ident.IsGuest() {
		env.SyncStatus = record.StatusLocal
	} else if env.SyncStatus == record.StatusLocal {
		env.SyncStatus = record.StatusPending
	}

	mu := m.lockKey(storage.SchemaKey)
	mu.Lock()
	err := m.appendToSchema(ctx, mutate)
	mu.Unlock()
	if err != nil {
		if err == storage.ErrNotInitialized || err == storage.ErrStoreClosed {
			return SaveResult{}, err
		}
		m.logger.LogError(ctx, err, "history write failed", slog.String("kind", string(kind)))
		return SaveResult{Success: false, Message: "could not save to device storage"}, nil
	}

	result := SaveResult{Success: true, SyncStatus: env.SyncStatus, Warnings: res.Warnings}
	if ident.IsGuest() {
		return result, nil
	}

	uid, _ := ident.UserID()
	fields, err := flatten()
	if err != nil {
		m.logger.LogError(ctx, err, "record flatten failed")
		return result, nil
	}
	fields["user_id"] = uid

	if m.auth.IsOnline() {
		opCtx, cancel := m.withTimeout(ctx)
		err = m.remote.Upsert(opCtx, kind.Table(), fields)
		cancel()
		if err == nil {
			env.MarkSynced()
			result.SyncStatus = env.SyncStatus
			mu.Lock()
			if serr := m.appendToSchema(ctx, mutate); serr != nil {
				m.logger.LogError(ctx, serr, "failed to persist synced status")
			}
			mu.Unlock()
			return result, nil
		}
		m.logger.Warn("remote upsert failed, queueing",
			"kind", string(kind), "error", err)
	}

	if err := m.enqueue(ctx, kind, fields, uid); err != nil {
		env.MarkFailed()
		result.SyncStatus = env.SyncStatus
		m.logger.LogError(ctx, err, "failed to queue remote write")
		return result, nil
	}
	result.Queued = true
	return result, nil
}

// appendToSchema applies one mutation to the schema document, pruning history
// first when the store is over its advisory quota.
func (m *Manager) appendToSchema(ctx context.Context, mutate func(*storage.Schema)) error {
	schema, err := m.store.Schema(ctx)
	if err != nil {
		return err
	}
	mutate(schema)

	if info, err := m.store.GetStorageInfo(); err == nil && info.QuotaExceeded {
		pruned := pruneHistory(schema)
		if pruned > 0 {
			m.logger.Warn("storage over quota, pruned oldest synced history",
				"pruned", pruned, "used_bytes", info.UsedBytes)
		}
	}

	return m.store.SaveSchema(ctx, schema)
}

// pruneHistory trims each history list to maxHistoryEntries, dropping from
// the front. Entries still awaiting sync are never dropped; losing them would
// lose data the remote has not seen.
func pruneHistory(schema *storage.Schema) int {
	pruned := 0
	schema.Fitness.Sessions, pruned = pruneSessions(schema.Fitness.Sessions, pruned)
	schema.Nutrition.Logs, pruned = pruneLogs(schema.Nutrition.Logs, pruned)
	schema.Progress.Measurements, pruned = pruneMeasurements(schema.Progress.Measurements, pruned)
	return pruned
}

func pruneSessions(list []record.WorkoutSession, pruned int) ([]record.WorkoutSession, int) {
	for len(list) > maxHistoryEntries {
		idx := -1
		for i, s := range list {
			if !s.SyncStatus.NeedsSync() {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		list = append(list[:idx], list[idx+1:]...)
		pruned++
	}
	return list, pruned
}

func pruneLogs(list []record.MealLog, pruned int) ([]record.MealLog, int) {
	for len(list) > maxHistoryEntries {
		idx := -1
		for i, l := range list {
			if !l.SyncStatus.NeedsSync() {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		list = append(list[:idx], list[idx+1:]...)
		pruned++
	}
	return list, pruned
}

func pruneMeasurements(list []record.BodyMeasurement, pruned int) ([]record.BodyMeasurement, int) {
	for len(list) > maxHistoryEntries {
		idx := -1
		for i, b := range list {
			if !b.SyncStatus.NeedsSync() {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		list = append(list[:idx], list[idx+1:]...)
		pruned++
	}
	return list, pruned
}

func upsertSession(list []record.WorkoutSession, s record.WorkoutSession) []record.WorkoutSession {
	for i := range list {
		if list[i].ID == s.ID {
			list[i] = s
			return list
		}
	}
	return append(list, s)
}

func upsertLog(list []record.MealLog, l record.MealLog) []record.MealLog {
	for i := range list {
		if list[i].ID == l.ID {
			list[i] = l
			return list
		}
	}
	return append(list, l)
}

func upsertMeasurement(list []record.BodyMeasurement, b record.BodyMeasurement) []record.BodyMeasurement {
	for i := range list {
		if list[i].ID == b.ID {
			list[i] = b
			return list
		}
	}
	return append(list, b)
}

// WorkoutSessions returns the workout history, oldest first.
func (m *Manager) WorkoutSessions(ctx context.Context) ([]record.WorkoutSession, error) {
	schema, err := m.store.Schema(ctx)
	if err != nil {
		return nil, err
	}
	return schema.Fitness.Sessions, nil
}

// MealLogs returns the meal history, oldest first.
func (m *Manager) MealLogs(ctx context.Context) ([]record.MealLog, error) {
	schema, err := m.store.Schema(ctx)
	if err != nil {
		return nil, err
	}
	return schema.Nutrition.Logs, nil
}

// BodyMeasurements returns the measurement history, oldest first.
func (m *Manager) BodyMeasurements(ctx context.Context) ([]record.BodyMeasurement, error) {
	schema, err := m.store.Schema(ctx)
	if err != nil {
		return nil, err
	}
	return schema.Progress.Measurements, nil
}

// SetOnboardingStep advances the onboarding progress marker. The step never
// moves backwards.
func (m *Manager) SetOnboardingStep(ctx context.Context, step int) error {
	mu := m.lockKey(storage.SchemaKey)
	mu.Lock()
	defer mu.Unlock()

	schema, err := m.store.Schema(ctx)
	if err != nil {
		return err
	}
	if step <= schema.User.OnboardingStep {
		return nil
	}
	schema.User.OnboardingStep = step
	return m.store.SaveSchema(ctx, schema)
}

// CompleteOnboarding marks onboarding finished.
func (m *Manager) CompleteOnboarding(ctx context.Context) error {
	mu := m.lockKey(storage.SchemaKey)
	mu.Lock()
	defer mu.Unlock()

	schema, err := m.store.Schema(ctx)
	if err != nil {
		return err
	}
	if schema.User.OnboardingComplete {
		return nil
	}
	schema.User.OnboardingComplete = true
	return m.store.SaveSchema(ctx, schema)
}

// OnboardingStatus reports the current onboarding progress.
func (m *Manager) OnboardingStatus(ctx context.Context) (step int, complete bool, err error) {
	schema, err := m.store.Schema(ctx)
	if err != nil {
		return 0, false, err
	}
	return schema.User.OnboardingStep, schema.User.OnboardingComplete, nil
}
