// Package manager orchestrates the fitvault data layer: it validates domain
// records, persists them to the encrypted local store, mirrors them to the
// remote store when the session is authenticated and online, parks failed
// remote writes on the sync queue, and reconciles divergence through the
// conflict engine.
//
// The local write is the one operation callers can trust: a save succeeds iff
// the local store accepted it. Remote failures degrade to "queued" and
// surface only through the per-record sync status.
package manager

import (
	"context"
	"log/slog"
	stdSync "sync"
	"time"

	"github.com/fitvault/fitvault/conflict"
	vaultErrors "github.com/fitvault/fitvault/errors"
	"github.com/fitvault/fitvault/identity"
	"github.com/fitvault/fitvault/logging"
	"github.com/fitvault/fitvault/queue"
	"github.com/fitvault/fitvault/record"
	"github.com/fitvault/fitvault/storage"
	"github.com/fitvault/fitvault/validation"
)

// Manager is the data orchestration facade. Construct with Builder; all
// dependencies are explicit, there are no package-level instances.
type Manager struct {
	store     *storage.Store
	queue     *queue.Queue
	auth      AuthProvider
	remote    RemoteStore
	validator *validation.Validator
	conflicts *conflict.Engine
	logger    *logging.Logger
	timeout   time.Duration
	now       func() time.Time

	// keyLocks serializes read-modify-write cycles per identity-scoped key
	// so two concurrent saves of the same entity cannot lose an update.
	lockMu   stdSync.Mutex
	keyLocks map[string]*stdSync.Mutex

	// unresolved holds conflicts awaiting an external decision, keyed by
	// entity kind. They are ephemeral and never persisted.
	pendingMu  stdSync.Mutex
	unresolved map[record.Kind]*suspendedConflict
}

type suspendedConflict struct {
	localFields map[string]any
	conflicts   []conflict.Conflict
}

// lockKey returns the mutex guarding one identity-scoped key.
func (m *Manager) lockKey(key string) *stdSync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	mu, ok := m.keyLocks[key]
	if !ok {
		mu = &stdSync.Mutex{}
		m.keyLocks[key] = mu
	}
	return mu
}

// withTimeout bounds remote round-trips. A timeout counts as a remote
// failure and falls back to local-only semantics.
func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(ctx, m.timeout)
	}
	return context.WithCancel(ctx)
}

// remoteEligible reports whether remote persistence applies right now.
// Guests never reach the remote store.
func (m *Manager) remoteEligible() (identity.Identity, string, bool) {
	ident := m.auth.CurrentIdentity()
	uid, authed := ident.UserID()
	if !authed {
		return ident, "", false
	}
	return ident, uid, m.auth.IsOnline()
}

// saveEntity is the shared save path: validate, write locally under the
// identity-scoped key, then mirror or queue the remote write.
func saveEntity[T any](
	m *Manager,
	ctx context.Context,
	kind record.Kind,
	value *T,
	env *record.Envelope,
	validate func() validation.Result,
) (SaveResult, error) {
	res := validate()
	if !res.IsValid {
		m.logger.Debug("save rejected by validation", "kind", string(kind), "errors", len(res.Errors))
		return validationFailure(res), nil
	}

	ident := m.auth.CurrentIdentity()
	key := ident.ScopedKey(kind.BaseKey())

	mu := m.lockKey(key)
	mu.Lock()
	defer mu.Unlock()

	env.Touch(m.now())
	if ident.IsGuest() {
		env.SyncStatus = record.StatusLocal
	} else if env.SyncStatus == record.StatusLocal {
		env.SyncStatus = record.StatusPending
	}

	if err := m.store.StoreData(ctx, key, value); err != nil {
		if err == storage.ErrNotInitialized || err == storage.ErrStoreClosed {
			return SaveResult{}, err
		}
		m.logger.LogError(ctx, err, "local write failed", slog.String("kind", string(kind)))
		return SaveResult{Success: false, Message: "could not save to device storage"}, nil
	}

	result := SaveResult{Success: true, SyncStatus: env.SyncStatus, Warnings: res.Warnings}

	if ident.IsGuest() {
		// guests have no server identity; skip the remote store entirely
		return result, nil
	}

	uid, _ := ident.UserID()
	fields, err := record.ToMap(value)
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
			if err := m.store.StoreData(ctx, key, value); err != nil {
				m.logger.LogError(ctx, err, "failed to persist synced status")
			}
			return result, nil
		}
		m.logger.Warn("remote upsert failed, queueing",
			"kind", string(kind), "error", err)
	}

	if err := m.enqueue(ctx, kind, fields, uid); err != nil {
		env.MarkFailed()
		result.SyncStatus = env.SyncStatus
		m.logger.LogError(ctx, err, "failed to queue remote write")
		if err := m.store.StoreData(ctx, key, value); err != nil {
			m.logger.LogError(ctx, err, "failed to persist failed status")
		}
		return result, nil
	}

	result.Queued = true
	result.SyncStatus = env.SyncStatus
	return result, nil
}

func (m *Manager) enqueue(ctx context.Context, kind record.Kind, fields map[string]any, uid string) error {
	raw, err := recordJSON(fields)
	if err != nil {
		return err
	}
	return m.queue.Enqueue(ctx, queue.TypeUpdate, kind.Table(), raw, uid)
}

// loadEntity is the shared load path: remote-preferred with local fallback
// for authenticated users, local only for guests. Divergence between the two
// sides runs through the conflict engine; an auto-resolvable divergence is
// merged, written back and re-queued, anything else suspends for user input.
func loadEntity[T any](
	m *Manager,
	ctx context.Context,
	kind record.Kind,
	envOf func(*T) *record.Envelope,
) (*T, error) {
	ident, uid, online := m.remoteEligible()
	key := ident.ScopedKey(kind.BaseKey())

	local, err := storage.Retrieve[T](ctx, m.store, key)
	if err != nil {
		return nil, err
	}

	if !online {
		return local, nil
	}

	opCtx, cancel := m.withTimeout(ctx)
	remoteFields, found, rerr := m.remote.SelectOne(opCtx, kind.Table(), uid)
	cancel()
	if rerr != nil || !found {
		if rerr != nil {
			m.logger.Warn("remote read failed, using local fallback",
				"kind", string(kind), "error", rerr)
		}
		return local, nil
	}
	delete(remoteFields, "user_id")

	if local == nil {
		var remote T
		if err := record.FromMap(remoteFields, &remote); err != nil {
			m.logger.LogError(ctx, err, "malformed remote record, using local fallback")
			return local, nil
		}
		env := envOf(&remote)
		env.Source = record.SourceRemote
		if env.SyncStatus == "" {
			env.SyncStatus = record.StatusSynced
		}
		return &remote, nil
	}

	localFields, err := record.ToMap(local)
	if err != nil {
		return local, nil
	}

	cctx := conflict.Context{
		Table:              kind.Table(),
		RecordID:           envOf(local).ID,
		LastModifiedLocal:  envOf(local).UpdatedAt,
		LastModifiedRemote: remoteUpdatedAt(remoteFields),
	}
	conflicts := m.conflicts.Detect(stripMeta(localFields), stripMeta(remoteFields), cctx)
	if len(conflicts) == 0 {
		var remote T
		if err := record.FromMap(remoteFields, &remote); err != nil {
			return local, nil
		}
		env := envOf(&remote)
		env.Source = record.SourceRemote
		// sync status describes this device, not the record
		env.SyncStatus = envOf(local).SyncStatus
		return &remote, nil
	}

	resolution := m.conflicts.Resolve(localFields, conflicts, nil)
	if resolution.RequiresUserInput {
		m.suspend(kind, localFields, resolution.Unresolved)

		env := envOf(local)
		env.MarkConflict()
		mu := m.lockKey(key)
		mu.Lock()
		if err := m.store.StoreData(ctx, key, local); err != nil {
			m.logger.LogError(ctx, err, "failed to persist conflict status")
		}
		mu.Unlock()

		m.logger.Warn("load suspended on conflicts",
			"kind", string(kind), "unresolved", len(resolution.Unresolved))
		return local, nil
	}

	merged, err := applyMerged(m, ctx, kind, key, resolution.MergedData, envOf)
	if err != nil {
		m.logger.LogError(ctx, err, "failed to apply merged record")
		return local, nil
	}
	m.logger.Info("divergence auto-resolved",
		"kind", string(kind),
		"auto_resolved", resolution.Summary.AutoResolved)
	return merged, nil
}

// applyMerged writes a merged field map back as the local record, marks it
// pending and queues a re-sync.
func applyMerged[T any](
	m *Manager,
	ctx context.Context,
	kind record.Kind,
	key string,
	fields map[string]any,
	envOf func(*T) *record.Envelope,
) (*T, error) {
	var merged T
	if err := record.FromMap(fields, &merged); err != nil {
		return nil, err
	}

	env := envOf(&merged)
	env.Touch(m.now())

	mu := m.lockKey(key)
	mu.Lock()
	err := m.store.StoreData(ctx, key, &merged)
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	if uid, ok := m.auth.CurrentIdentity().UserID(); ok {
		outFields, err := record.ToMap(&merged)
		if err == nil {
			outFields["user_id"] = uid
			if err := m.enqueue(ctx, kind, outFields, uid); err != nil {
				m.logger.LogError(ctx, err, "failed to queue merged record")
			}
		}
	}
	return &merged, nil
}

// method wrapper; Go methods cannot be generic
func (m *Manager) applyMergedFor(ctx context.Context, kind record.Kind, key string, fields map[string]any) error {
	switch kind {
	case record.KindPersonalInfo:
		_, err := applyMerged(m, ctx, kind, key, fields, func(t *record.PersonalInfo) *record.Envelope { return &t.Envelope })
		return err
	case record.KindFitnessGoals:
		_, err := applyMerged(m, ctx, kind, key, fields, func(t *record.FitnessGoals) *record.Envelope { return &t.Envelope })
		return err
	case record.KindDietPreferences:
		_, err := applyMerged(m, ctx, kind, key, fields, func(t *record.DietPreferences) *record.Envelope { return &t.Envelope })
		return err
	case record.KindWorkoutPreferences:
		_, err := applyMerged(m, ctx, kind, key, fields, func(t *record.WorkoutPreferences) *record.Envelope { return &t.Envelope })
		return err
	case record.KindBodyAnalysis:
		_, err := applyMerged(m, ctx, kind, key, fields, func(t *record.BodyAnalysis) *record.Envelope { return &t.Envelope })
		return err
	default:
		return vaultErrors.New(vaultErrors.OpResolve, errUnknownKind(kind))
	}
}

// SavePersonalInfo validates and persists the core profile.
func (m *Manager) SavePersonalInfo(ctx context.Context, info record.PersonalInfo) (SaveResult, error) {
	return saveEntity(m, ctx, record.KindPersonalInfo, &info, &info.Envelope,
		func() validation.Result { return m.validator.ValidatePersonalInfo(info) })
}

// LoadPersonalInfo loads the core profile, remote-preferred when possible.
func (m *Manager) LoadPersonalInfo(ctx context.Context) (*record.PersonalInfo, error) {
	return loadEntity(m, ctx, record.KindPersonalInfo,
		func(t *record.PersonalInfo) *record.Envelope { return &t.Envelope })
}

// SaveFitnessGoals validates and persists the goals record.
func (m *Manager) SaveFitnessGoals(ctx context.Context, goals record.FitnessGoals) (SaveResult, error) {
	return saveEntity(m, ctx, record.KindFitnessGoals, &goals, &goals.Envelope,
		func() validation.Result { return m.validator.ValidateFitnessGoals(goals) })
}

// LoadFitnessGoals loads the goals record.
func (m *Manager) LoadFitnessGoals(ctx context.Context) (*record.FitnessGoals, error) {
	return loadEntity(m, ctx, record.KindFitnessGoals,
		func(t *record.FitnessGoals) *record.Envelope { return &t.Envelope })
}

// SaveDietPreferences validates and persists the diet record.
func (m *Manager) SaveDietPreferences(ctx context.Context, prefs record.DietPreferences) (SaveResult, error) {
	return saveEntity(m, ctx, record.KindDietPreferences, &prefs, &prefs.Envelope,
		func() validation.Result { return m.validator.ValidateDietPreferences(prefs) })
}

// LoadDietPreferences loads the diet record.
func (m *Manager) LoadDietPreferences(ctx context.Context) (*record.DietPreferences, error) {
	return loadEntity(m, ctx, record.KindDietPreferences,
		func(t *record.DietPreferences) *record.Envelope { return &t.Envelope })
}

// SaveWorkoutPreferences validates and persists the workout setup record.
func (m *Manager) SaveWorkoutPreferences(ctx context.Context, prefs record.WorkoutPreferences) (SaveResult, error) {
	return saveEntity(m, ctx, record.KindWorkoutPreferences, &prefs, &prefs.Envelope,
		func() validation.Result { return m.validator.ValidateWorkoutPreferences(prefs) })
}

// LoadWorkoutPreferences loads the workout setup record.
func (m *Manager) LoadWorkoutPreferences(ctx context.Context) (*record.WorkoutPreferences, error) {
	return loadEntity(m, ctx, record.KindWorkoutPreferences,
		func(t *record.WorkoutPreferences) *record.Envelope { return &t.Envelope })
}

// SaveBodyAnalysis validates and persists the body composition snapshot.
func (m *Manager) SaveBodyAnalysis(ctx context.Context, analysis record.BodyAnalysis) (SaveResult, error) {
	return saveEntity(m, ctx, record.KindBodyAnalysis, &analysis, &analysis.Envelope,
		func() validation.Result { return m.validator.ValidateBodyAnalysis(analysis) })
}

// LoadBodyAnalysis loads the body composition snapshot.
func (m *Manager) LoadBodyAnalysis(ctx context.Context) (*record.BodyAnalysis, error) {
	return loadEntity(m, ctx, record.KindBodyAnalysis,
		func(t *record.BodyAnalysis) *record.Envelope { return &t.Envelope })
}

// StorageInfo exposes the store's usage snapshot.
func (m *Manager) StorageInfo() (storage.StorageInfo, error) {
	return m.store.GetStorageInfo()
}

// FlushQueue delivers due queue items to the remote store once. Guests have
// nothing queued against their identity and flushing is a no-op offline.
func (m *Manager) FlushQueue(ctx context.Context) queue.FlushResult {
	if !m.auth.IsOnline() {
		return queue.FlushResult{}
	}
	return m.queue.Flush(ctx, m.deliver)
}

// StartAutoFlush runs FlushQueue on an interval.
func (m *Manager) StartAutoFlush(ctx context.Context, interval time.Duration) error {
	return m.queue.StartAutoFlush(ctx, interval, m.deliver)
}

// StopAutoFlush stops the background flusher.
func (m *Manager) StopAutoFlush() {
	m.queue.StopAutoFlush()
}

// deliver pushes one queued item to the remote store. Offline it reports the
// queue's unavailable sentinel so a background flush tick leaves every item's
// retry budget untouched.
func (m *Manager) deliver(ctx context.Context, item queue.Item) error {
	if !m.auth.IsOnline() {
		return vaultErrors.NewTransientError(vaultErrors.OpFlush, queue.ErrUnavailable)
	}

	fields, err := itemFields(item)
	if err != nil {
		return err
	}

	opCtx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.remote.Upsert(opCtx, item.Table, fields)
}
