// Command fitvault-demo walks through the data layer end to end: it opens an
// encrypted store, saves a guest profile, signs the guest in, migrates their
// data and shows the sync queue draining once "connectivity" returns.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	stdSync "sync"

	"github.com/fitvault/fitvault/config"
	"github.com/fitvault/fitvault/identity"
	"github.com/fitvault/fitvault/logging"
	"github.com/fitvault/fitvault/manager"
	"github.com/fitvault/fitvault/queue"
	"github.com/fitvault/fitvault/record"
	"github.com/fitvault/fitvault/storage"
)

// memoryRemote stands in for the real backend so the demo runs offline.
type memoryRemote struct {
	mu     stdSync.Mutex
	tables map[string]map[string]map[string]any
}

func newMemoryRemote() *memoryRemote {
	return &memoryRemote{tables: make(map[string]map[string]map[string]any)}
}

func (r *memoryRemote) Upsert(ctx context.Context, table string, rec map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	uid, _ := rec["user_id"].(string)
	if r.tables[table] == nil {
		r.tables[table] = make(map[string]map[string]any)
	}
	r.tables[table][uid] = rec
	return nil
}

func (r *memoryRemote) SelectOne(ctx context.Context, table, userID string) (map[string]any, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tables[table][userID]
	return rec, ok, nil
}

func main() {
	cfg := config.Default()
	if path := os.Getenv("FITVAULT_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	// in-memory database; journaling does not apply here
	cfg.Storage.Path = "file:demo?mode=memory&cache=shared"
	cfg.Storage.DisableWAL = true
	logging.Init(cfg.Logging)

	ctx := context.Background()
	if err := run(ctx, cfg); err != nil {
		logging.Error("demo failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := storage.New(cfg.StoreConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Initialize(ctx, os.Getenv("FITVAULT_PASSWORD")); err != nil {
		return err
	}

	q, err := queue.New(store.DB(), cfg.QueueConfig())
	if err != nil {
		return err
	}

	auth := &manager.StaticAuth{Identity: identity.Guest(), Online: false}
	timeout, err := cfg.RemoteTimeout()
	if err != nil {
		return err
	}

	m, err := manager.NewBuilder().
		WithStore(store).
		WithQueue(q).
		WithAuth(auth).
		WithRemote(newMemoryRemote()).
		WithRemoteTimeout(timeout).
		Build()
	if err != nil {
		return err
	}

	// 1. A guest fills in onboarding, fully offline.
	res, err := m.SavePersonalInfo(ctx, record.PersonalInfo{
		FullName:       "Jane Doe",
		Age:            30,
		Gender:         "female",
		HeightCM:       170,
		WeightKG:       65,
		OccupationType: "sedentary",
	})
	if err != nil {
		return err
	}
	logging.Info("guest profile saved", slog.String("sync_status", string(res.SyncStatus)))

	if _, err := m.SaveFitnessGoals(ctx, record.FitnessGoals{
		PrimaryGoal:  "strength",
		FitnessLevel: "beginner",
	}); err != nil {
		return err
	}

	// 2. The guest signs in; their local data follows the new account.
	auth.Identity = identity.User("user-001")
	migration, err := m.MigrateGuestDataToUser(ctx, "user-001")
	if err != nil {
		return err
	}
	logging.Info("guest data migrated",
		slog.Int("keys", len(migration.MigratedKeys)),
		slog.Bool("success", migration.Success))

	// 3. Still offline: an edit lands locally and queues for sync.
	info, err := m.LoadPersonalInfo(ctx)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("profile missing after migration")
	}
	info.WeightKG = 64.5
	res, err = m.SavePersonalInfo(ctx, *info)
	if err != nil {
		return err
	}
	logging.Info("offline edit saved",
		slog.Bool("queued", res.Queued),
		slog.String("sync_status", string(res.SyncStatus)))

	// 4. Connectivity returns and the queue drains.
	auth.Online = true
	flush := m.FlushQueue(ctx)
	logging.Info("queue flushed",
		slog.Int("applied", flush.Applied),
		slog.Int("failed", flush.Failed))

	sinfo, err := m.StorageInfo()
	if err != nil {
		return err
	}
	logging.Info("storage usage",
		slog.Int64("used_bytes", sinfo.UsedBytes),
		slog.Int64("quota_bytes", sinfo.TotalBytes),
		slog.Bool("quota_exceeded", sinfo.QuotaExceeded))

	return nil
}
