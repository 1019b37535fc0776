// Package queue provides the durable sync queue: remote writes that were
// skipped (offline) or failed are parked here and flushed in the background
// with bounded, backed-off retries. Delivery is best-effort at-least-once
// with no ordering guarantee across tables; one stuck item never blocks the
// rest.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	stdSync "sync"
	"time"

	vaultErrors "github.com/fitvault/fitvault/errors"
	"github.com/fitvault/fitvault/logging"
)

// ItemType is the remote operation an item represents.
type ItemType string

const (
	TypeCreate ItemType = "create"
	TypeUpdate ItemType = "update"
	TypeDelete ItemType = "delete"
)

// Item is one queued remote operation.
type Item struct {
	ID         int64           `json:"id"`
	Type       ItemType        `json:"type"`
	Table      string          `json:"table"`
	Data       json.RawMessage `json:"data"`
	UserID     string          `json:"user_id"`
	Attempts   int             `json:"attempts"`
	MaxRetries int             `json:"max_retries"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Exhausted reports whether the item has used up its retry budget.
func (i Item) Exhausted() bool {
	return i.Attempts >= i.MaxRetries
}

// RetryConfig shapes the exponential backoff between attempts of one item.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns the standard backoff shape.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		InitialDelay: 2 * time.Second,
		MaxDelay:     5 * time.Minute,
		Multiplier:   2.0,
	}
}

// delayFor computes the backoff after the given attempt count.
func (rc *RetryConfig) delayFor(attempts int) time.Duration {
	delay := rc.InitialDelay
	for i := 1; i < attempts; i++ {
		delay = time.Duration(float64(delay) * rc.Multiplier)
		if delay >= rc.MaxDelay {
			return rc.MaxDelay
		}
	}
	if delay > rc.MaxDelay {
		return rc.MaxDelay
	}
	return delay
}

// Config holds queue configuration.
type Config struct {
	// TableName defaults to "sync_queue".
	TableName string

	// MaxRetries is the default retry budget for enqueued items. Defaults to 3.
	MaxRetries int

	// Retry shapes the backoff. Defaults to DefaultRetryConfig.
	Retry *RetryConfig

	// Logger is an optional structured logger.
	Logger *logging.Logger
}

func (c *Config) setDefaults() {
	if c.TableName == "" {
		c.TableName = "sync_queue"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.Retry == nil {
		c.Retry = DefaultRetryConfig()
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
}

// ErrUnavailable signals that delivery cannot reach the remote side at all,
// typically because the device is offline. Flush treats it as "try again
// later": the pass stops and no item is charged an attempt. The retry budget
// only counts real remote rejections.
var ErrUnavailable = errors.New("remote delivery unavailable")

// ApplyFunc delivers one item to the remote store. A nil return deletes the
// item; an error counts an attempt and reschedules it with backoff, except
// ErrUnavailable which abandons the pass without charging anything.
type ApplyFunc func(ctx context.Context, item Item) error

// FlushResult summarizes one flush pass.
type FlushResult struct {
	Applied   int           `json:"applied"`
	Failed    int           `json:"failed"`
	Exhausted int           `json:"exhausted"`
	Duration  time.Duration `json:"duration"`
	Errors    []error       `json:"-"`
}

// Queue is the durable sync queue. Safe for concurrent use.
type Queue struct {
	db     *sql.DB
	config *Config
	logger *logging.Logger

	mu          stdSync.Mutex
	autoStop    chan struct{}
	subscribers []func(FlushResult)
	now         func() time.Time
}

// New creates the queue and its backing table. The db handle is typically
// shared with the storage layer so both live in one database file.
func New(db *sql.DB, config *Config) (*Queue, error) {
	if config == nil {
		config = &Config{}
	}
	config.setDefaults()

	q := &Queue{
		db:     db,
		config: config,
		logger: config.Logger.WithComponent("queue"),
		now:    func() time.Time { return time.Now().UTC() },
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		op_type         TEXT NOT NULL,
		table_name      TEXT NOT NULL,
		data            BLOB NOT NULL,
		user_id         TEXT NOT NULL,
		attempts        INTEGER NOT NULL DEFAULT 0,
		max_retries     INTEGER NOT NULL,
		last_error      TEXT NOT NULL DEFAULT '',
		next_attempt_at TIMESTAMP NOT NULL,
		created_at      TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_%s_next ON %s (next_attempt_at);`,
		config.TableName, config.TableName, config.TableName)

	if _, err := db.Exec(schema); err != nil {
		return nil, vaultErrors.WrapOpComponent(err, vaultErrors.OpInitialize, "queue")
	}
	return q, nil
}

// Enqueue parks a remote operation for later delivery.
func (q *Queue) Enqueue(ctx context.Context, itemType ItemType, table string, data json.RawMessage, userID string) error {
	now := q.now()
	query := fmt.Sprintf(`
		INSERT INTO %s (op_type, table_name, data, user_id, attempts, max_retries, next_attempt_at, created_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)`, q.config.TableName)

	_, err := q.db.ExecContext(ctx, query, string(itemType), table, []byte(data), userID,
		q.config.MaxRetries, now, now)
	if err != nil {
		return vaultErrors.WrapOpComponent(err, vaultErrors.OpEnqueue, "queue")
	}

	q.logger.Debug("queued remote operation", "type", itemType, "table", table)
	return nil
}

// Pending returns items that are due for delivery, oldest first.
func (q *Queue) Pending(ctx context.Context, limit int) ([]Item, error) {
	query := fmt.Sprintf(`
		SELECT id, op_type, table_name, data, user_id, attempts, max_retries, last_error, created_at
		FROM %s
		WHERE attempts < max_retries AND next_attempt_at <= ?
		ORDER BY created_at ASC
		LIMIT ?`, q.config.TableName)

	return q.scanItems(ctx, query, q.now(), limit)
}

// Exhausted returns items that used up their retry budget. These surface to
// the caller as failed records; they stay queued for inspection until
// explicitly removed.
func (q *Queue) Exhausted(ctx context.Context) ([]Item, error) {
	query := fmt.Sprintf(`
		SELECT id, op_type, table_name, data, user_id, attempts, max_retries, last_error, created_at
		FROM %s
		WHERE attempts >= max_retries
		ORDER BY created_at ASC`, q.config.TableName)

	return q.scanItems(ctx, query)
}

func (q *Queue) scanItems(ctx context.Context, query string, args ...any) ([]Item, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, vaultErrors.WrapOpComponent(err, vaultErrors.OpLoad, "queue")
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var opType string
		if err := rows.Scan(&item.ID, &opType, &item.Table, (*[]byte)(&item.Data),
			&item.UserID, &item.Attempts, &item.MaxRetries, &item.LastError, &item.CreatedAt); err != nil {
			return nil, vaultErrors.WrapOpComponent(err, vaultErrors.OpLoad, "queue")
		}
		item.Type = ItemType(opType)
		items = append(items, item)
	}
	return items, rows.Err()
}

// Remove deletes an item, normally after successful delivery.
func (q *Queue) Remove(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ?", q.config.TableName), id)
	return vaultErrors.WrapOpComponent(err, vaultErrors.OpRemove, "queue")
}

// recordFailure counts an attempt and schedules the next one with backoff.
func (q *Queue) recordFailure(ctx context.Context, item Item, cause error) error {
	attempts := item.Attempts + 1
	next := q.now().Add(q.config.Retry.delayFor(attempts))

	query := fmt.Sprintf(`
		UPDATE %s SET attempts = ?, last_error = ?, next_attempt_at = ? WHERE id = ?`,
		q.config.TableName)
	_, err := q.db.ExecContext(ctx, query, attempts, cause.Error(), next, item.ID)
	return vaultErrors.WrapOpComponent(err, vaultErrors.OpFlush, "queue")
}

// Size returns the number of queued items, exhausted ones included.
func (q *Queue) Size(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s", q.config.TableName)).Scan(&n)
	return n, err
}

// Flush delivers every due item through apply. Item failures are recorded
// and never abort the pass; the result aggregates what happened.
func (q *Queue) Flush(ctx context.Context, apply ApplyFunc) (result FlushResult) {
	start := q.now()
	defer func() {
		result.Duration = time.Since(start)
		q.notify(result)
	}()

	items, err := q.Pending(ctx, 100)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}

	for _, item := range items {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, ctx.Err())
			return result
		}

		if err := apply(ctx, item); err != nil {
			if errors.Is(err, ErrUnavailable) {
				q.logger.Debug("flush skipped, delivery unavailable")
				return result
			}
			result.Failed++
			result.Errors = append(result.Errors,
				vaultErrors.WithMetadata(
					vaultErrors.NewTransientError(vaultErrors.OpFlush, err), "table", item.Table))
			if recErr := q.recordFailure(ctx, item, err); recErr != nil {
				result.Errors = append(result.Errors, recErr)
			}
			if item.Attempts+1 >= item.MaxRetries {
				result.Exhausted++
				q.logger.Warn("queue item exhausted retries",
					"table", item.Table, "attempts", item.Attempts+1)
			}
			continue
		}

		if err := q.Remove(ctx, item.ID); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Applied++
	}

	if result.Applied > 0 || result.Failed > 0 {
		q.logger.Info("queue flushed",
			"applied", result.Applied,
			"failed", result.Failed,
			"exhausted", result.Exhausted)
	}
	return result
}

// StartAutoFlush flushes on an interval until StopAutoFlush or ctx ends.
func (q *Queue) StartAutoFlush(ctx context.Context, interval time.Duration, apply ApplyFunc) error {
	if interval <= 0 {
		return fmt.Errorf("flush interval must be positive")
	}

	q.mu.Lock()
	if q.autoStop != nil {
		q.mu.Unlock()
		return fmt.Errorf("auto-flush already running")
	}
	stop := make(chan struct{})
	q.autoStop = stop
	q.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				q.Flush(ctx, apply)
			}
		}
	}()
	return nil
}

// StopAutoFlush stops the background flusher.
func (q *Queue) StopAutoFlush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.autoStop != nil {
		close(q.autoStop)
		q.autoStop = nil
	}
}

// Subscribe registers a handler invoked after every flush pass. Handlers run
// on the flushing goroutine and should return quickly.
func (q *Queue) Subscribe(handler func(FlushResult)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subscribers = append(q.subscribers, handler)
}

func (q *Queue) notify(result FlushResult) {
	q.mu.Lock()
	subscribers := make([]func(FlushResult), len(q.subscribers))
	copy(subscribers, q.subscribers)
	q.mu.Unlock()

	for _, h := range subscribers {
		h(result)
	}
}
