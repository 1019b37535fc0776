package manager

import (
	"fmt"
	stdSync "sync"
	"time"

	"github.com/fitvault/fitvault/conflict"
	"github.com/fitvault/fitvault/logging"
	"github.com/fitvault/fitvault/queue"
	"github.com/fitvault/fitvault/record"
	"github.com/fitvault/fitvault/storage"
	"github.com/fitvault/fitvault/validation"
)

// Builder provides a fluent interface for constructing Manager instances.
type Builder struct {
	store     *storage.Store
	queue     *queue.Queue
	auth      AuthProvider
	remote    RemoteStore
	validator *validation.Validator
	conflicts *conflict.Engine
	logger    *logging.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewBuilder creates a builder with defaults: a stateless validator, the
// default conflict rule set and a 10 second remote timeout.
func NewBuilder() *Builder {
	return &Builder{
		validator: validation.New(),
		timeout:   10 * time.Second,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithStore sets the encrypted local store (required).
func (b *Builder) WithStore(store *storage.Store) *Builder {
	b.store = store
	return b
}

// WithQueue sets the durable sync queue (required).
func (b *Builder) WithQueue(q *queue.Queue) *Builder {
	b.queue = q
	return b
}

// WithAuth sets the auth/connectivity collaborator (required).
func (b *Builder) WithAuth(auth AuthProvider) *Builder {
	b.auth = auth
	return b
}

// WithRemote sets the remote store collaborator (required).
func (b *Builder) WithRemote(remote RemoteStore) *Builder {
	b.remote = remote
	return b
}

// WithValidator overrides the default validator.
func (b *Builder) WithValidator(v *validation.Validator) *Builder {
	b.validator = v
	return b
}

// WithConflictEngine overrides the default conflict engine.
func (b *Builder) WithConflictEngine(e *conflict.Engine) *Builder {
	b.conflicts = e
	return b
}

// WithLogger sets the structured logger.
func (b *Builder) WithLogger(l *logging.Logger) *Builder {
	b.logger = l
	return b
}

// WithRemoteTimeout bounds every remote round-trip. Zero disables the bound.
func (b *Builder) WithRemoteTimeout(d time.Duration) *Builder {
	b.timeout = d
	return b
}

// WithClock overrides the time source, for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and constructs the Manager.
func (b *Builder) Build() (*Manager, error) {
	if b.store == nil {
		return nil, fmt.Errorf("storage.Store is required")
	}
	if b.queue == nil {
		return nil, fmt.Errorf("queue.Queue is required")
	}
	if b.auth == nil {
		return nil, fmt.Errorf("AuthProvider is required")
	}
	if b.remote == nil {
		return nil, fmt.Errorf("RemoteStore is required")
	}
	if b.validator == nil {
		return nil, fmt.Errorf("validation.Validator is required")
	}
	if b.timeout < 0 {
		return nil, fmt.Errorf("remote timeout cannot be negative")
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Default()
	}
	engine := b.conflicts
	if engine == nil {
		engine = conflict.NewEngine(conflict.WithLogger(logger))
	}

	return &Manager{
		store:      b.store,
		queue:      b.queue,
		auth:       b.auth,
		remote:     b.remote,
		validator:  b.validator,
		conflicts:  engine,
		logger:     logger.WithComponent("manager"),
		timeout:    b.timeout,
		now:        b.now,
		keyLocks:   make(map[string]*stdSync.Mutex),
		unresolved: make(map[record.Kind]*suspendedConflict),
	}, nil
}
