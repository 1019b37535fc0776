// Package storage provides the encrypted, versioned local store backing the
// fitvault data layer. Values pass through a JSON -> snappy -> AES-GCM
// pipeline on write and the inverse on read; a single versioned root schema
// document tracks namespace state and gates migration.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	stdSync "sync"
	"time"

	vaultErrors "github.com/fitvault/fitvault/errors"
	"github.com/fitvault/fitvault/logging"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Custom errors for better error handling
var (
	ErrNotInitialized = errors.New("store is not initialized")
	ErrStoreClosed    = errors.New("store is closed")
	ErrBadPassword    = errors.New("could not establish a usable key (wrong password?)")
)

// DefaultQuotaBytes is the advisory device-storage budget (50 MB). Callers
// treat an exceeded quota as a signal to prune history, not a write block.
const DefaultQuotaBytes = 50 * 1024 * 1024

// meta row names
const (
	metaSalt   = "kdf_salt"
	metaSecret = "device_secret"
	metaCheck  = "key_check"
)

// quarantinePrefix namespaces keys whose payload failed to decode.
const quarantinePrefix = "quarantine:"

// canary plaintext sealed at first initialization to detect a wrong key later
var keyCheckPlaintext = []byte("fitvault-key-check-v1")

// Config holds configuration options for the Store.
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	DataSourceName string

	// EnableWAL enables Write-Ahead Logging mode for better concurrency.
	// When true, a "_journal_mode=WAL" option is appended to DataSourceName
	// unless the DSN already sets one.
	EnableWAL bool

	// TableName is the key/value table. Defaults to "vault_data".
	TableName string

	// MetaTableName holds the KDF salt and key-check rows. Defaults to
	// "vault_meta". Meta rows are deliberately outside the encrypted
	// namespace: the salt must be readable before any key exists.
	MetaTableName string

	// QuotaBytes is the advisory storage budget. Defaults to DefaultQuotaBytes.
	QuotaBytes int64

	// Logger is an optional structured logger. Defaults to the package default.
	Logger *logging.Logger

	// Connection pool settings.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// setDefaults applies default values to the config
func (c *Config) setDefaults() {
	if c.TableName == "" {
		c.TableName = "vault_data"
	}
	if c.MetaTableName == "" {
		c.MetaTableName = "vault_meta"
	}
	if c.QuotaBytes == 0 {
		c.QuotaBytes = DefaultQuotaBytes
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 2
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.EnableWAL {
		if !strings.Contains(c.DataSourceName, "_journal_mode=") {
			sep := "?"
			if strings.Contains(c.DataSourceName, "?") {
				sep = "&"
			}
			c.DataSourceName += sep + "_journal_mode=WAL"
		}
	}
}

// DefaultConfig returns a Config with sensible defaults for a device-local
// database file.
func DefaultConfig(dataSourceName string) *Config {
	return &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
}

// Store is the encrypted key/value store. All operations require Initialize
// to have succeeded; calling them earlier is a programmer error surfaced as
// ErrNotInitialized.
type Store struct {
	db     *sql.DB
	config *Config
	logger *logging.Logger

	mu          stdSync.RWMutex
	enc         *Encryptor
	initialized bool
	closed      bool
	usedBytes   int64
}

// New opens the backing database and creates tables. The store is not usable
// until Initialize establishes a key and a valid schema.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	config.setDefaults()

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, vaultErrors.NewInitializationError(vaultErrors.OpInitialize, err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	s := &Store{
		db:     db,
		config: config,
		logger: config.Logger.WithComponent("store"),
	}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, vaultErrors.NewInitializationError(vaultErrors.OpInitialize, err)
	}

	return s, nil
}

// NewWithDataSource is a convenience constructor with default configuration.
func NewWithDataSource(dataSourceName string) (*Store, error) {
	return New(DefaultConfig(dataSourceName))
}

func (s *Store) createTables() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS %s (
		name  TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);`, s.config.TableName, s.config.MetaTableName)

	_, err := s.db.Exec(schema)
	return err
}

// Initialize derives the symmetric key and loads, creates or migrates the
// root schema. It is the one operation allowed to fail fatally: every error
// it returns carries KindInitialization and leaves the store unusable.
//
// With an empty password a random device secret is generated and persisted
// once; on platforms with a real keystore the secret belongs there instead.
func (s *Store) Initialize(ctx context.Context, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return vaultErrors.NewInitializationError(vaultErrors.OpInitialize, ErrStoreClosed)
	}

	salt, err := s.loadOrCreateMeta(ctx, metaSalt, func() ([]byte, error) { return NewSalt() })
	if err != nil {
		return vaultErrors.NewInitializationError(vaultErrors.OpInitialize, err)
	}

	secret := password
	if secret == "" {
		raw, err := s.loadOrCreateMeta(ctx, metaSecret, func() ([]byte, error) {
			gen, err := NewRandomSecret()
			return []byte(gen), err
		})
		if err != nil {
			return vaultErrors.NewInitializationError(vaultErrors.OpInitialize, err)
		}
		secret = string(raw)
	}

	enc, err := NewEncryptor(DeriveMasterKey(secret, salt))
	if err != nil {
		return vaultErrors.NewInitializationError(vaultErrors.OpInitialize, err)
	}

	if err := s.verifyKey(ctx, enc); err != nil {
		return vaultErrors.NewInitializationError(vaultErrors.OpInitialize, err)
	}

	s.enc = enc
	s.initialized = true

	if err := s.ensureSchema(ctx); err != nil {
		s.initialized = false
		s.enc = nil
		return vaultErrors.NewInitializationError(vaultErrors.OpInitialize, err)
	}

	if err := s.recomputeUsageLocked(ctx); err != nil {
		s.logger.Warn("storage usage recomputation failed", "error", err)
	}

	s.logger.Info("store initialized",
		"used_bytes", s.usedBytes,
		"quota_bytes", s.config.QuotaBytes)
	return nil
}

// verifyKey proves the derived key matches the installation by opening the
// sealed canary, writing it on first initialization.
func (s *Store) verifyKey(ctx context.Context, enc *Encryptor) error {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT value FROM %s WHERE name = ?", s.config.MetaTableName),
		metaCheck).Scan(&blob)
	if err == sql.ErrNoRows {
		sealed, err := enc.Seal(keyCheckPlaintext)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (name, value) VALUES (?, ?)", s.config.MetaTableName),
			metaCheck, sealed)
		return err
	}
	if err != nil {
		return err
	}

	opened, err := enc.Open(blob)
	if err != nil || string(opened) != string(keyCheckPlaintext) {
		return ErrBadPassword
	}
	return nil
}

func (s *Store) loadOrCreateMeta(ctx context.Context, name string, generate func() ([]byte, error)) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT value FROM %s WHERE name = ?", s.config.MetaTableName),
		name).Scan(&value)
	if err == nil {
		return value, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	value, err = generate()
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (name, value) VALUES (?, ?)", s.config.MetaTableName),
		name, value)
	if err != nil {
		return nil, err
	}
	return value, nil
}

// ensureSchema loads the root schema, creating the default or migrating an
// older version as needed. Called with s.mu held and s.initialized set.
func (s *Store) ensureSchema(ctx context.Context) error {
	now := time.Now().UTC()

	var schema Schema
	found, err := s.retrieveLocked(ctx, SchemaKey, &schema)
	if err != nil {
		var decodeErr *decodeError
		if !errors.As(err, &decodeErr) {
			return err
		}
		// an unreadable schema must not brick the store; park the blob and
		// start over from the default document
		s.quarantineLocked(ctx, SchemaKey)
		found = false
	}

	if !found {
		fresh := DefaultSchema(now)
		s.logger.Info("creating default schema", "version", fresh.Version)
		return s.storeLocked(ctx, SchemaKey, fresh)
	}

	if schema.Version != CurrentSchemaVersion {
		from := schema.Version
		if err := schema.Migrate(now); err != nil {
			return err
		}
		s.logger.Info("schema migrated",
			"from", from,
			"to", schema.Version)
		return s.storeLocked(ctx, SchemaKey, &schema)
	}

	schema.normalize()
	return schema.validate()
}

// StoreData serializes, compresses, encrypts and writes value under key,
// then recomputes storage usage.
func (s *Store) StoreData(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(); err != nil {
		return err
	}
	if err := s.storeLocked(ctx, key, value); err != nil {
		return err
	}
	if err := s.recomputeUsageLocked(ctx); err != nil {
		s.logger.Warn("storage usage recomputation failed", "error", err)
	}
	return nil
}

func (s *Store) storeLocked(ctx context.Context, key string, value any) error {
	blob, err := encode(s.enc, value)
	if err != nil {
		return vaultErrors.WrapOpComponent(err, vaultErrors.OpStore, "store")
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		s.config.TableName)
	if _, err := s.db.ExecContext(ctx, query, key, blob); err != nil {
		return vaultErrors.WrapOpComponent(err, vaultErrors.OpStore, "store")
	}
	return nil
}

// RetrieveData reads, decrypts, decompresses and deserializes the value under
// key into out. It returns (false, nil) when the key is absent and, per the
// corruption policy, when the payload fails to decode; the corrupt row is
// moved under a quarantine key for post-mortem instead of being returned.
func (s *Store) RetrieveData(ctx context.Context, key string, out any) (bool, error) {
	s.mu.RLock()
	if err := s.guardLocked(); err != nil {
		s.mu.RUnlock()
		return false, err
	}
	found, err := s.retrieveLocked(ctx, key, out)
	s.mu.RUnlock()

	if err != nil {
		var decodeErr *decodeError
		if errors.As(err, &decodeErr) {
			s.quarantine(ctx, key)
			return false, nil
		}
		return false, err
	}
	return found, nil
}

// decodeError marks pipeline failures apart from database failures.
type decodeError struct{ err error }

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (s *Store) retrieveLocked(ctx context.Context, key string, out any) (bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT value FROM %s WHERE key = ?", s.config.TableName),
		key).Scan(&blob)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, vaultErrors.WrapOpComponent(err, vaultErrors.OpRetrieve, "store")
	}

	if err := decode(s.enc, blob, out); err != nil {
		return false, &decodeError{err: vaultErrors.NewCorruptionError(vaultErrors.OpRetrieve, err)}
	}
	return true, nil
}

// quarantine moves a corrupt row under the quarantine namespace. Best effort;
// losing the race with a concurrent writer is fine.
func (s *Store) quarantine(ctx context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quarantineLocked(ctx, key)
}

func (s *Store) quarantineLocked(ctx context.Context, key string) {
	query := fmt.Sprintf(
		"UPDATE %s SET key = ? WHERE key = ?", s.config.TableName)
	if _, err := s.db.ExecContext(ctx, query, quarantinePrefix+key, key); err != nil {
		s.logger.Warn("failed to quarantine corrupt key",
			"key", key, "error", err)
		return
	}
	s.logger.Warn("corrupt payload quarantined", "key", key)
}

// HasKey reports whether a key holds data, without decoding the payload.
func (s *Store) HasKey(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.guardLocked(); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT 1 FROM %s WHERE key = ?", s.config.TableName),
		key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, vaultErrors.WrapOpComponent(err, vaultErrors.OpRetrieve, "store")
	}
	return true, nil
}

// CopyKey copies the stored blob from src to dst without decoding it. Used
// by guest-to-user migration, which must not depend on payload contents.
func (s *Store) CopyKey(ctx context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at)
		SELECT ?, value, CURRENT_TIMESTAMP FROM %s WHERE key = ?
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		s.config.TableName, s.config.TableName)
	res, err := s.db.ExecContext(ctx, query, dst, src)
	if err != nil {
		return vaultErrors.WrapOpComponent(err, vaultErrors.OpStore, "store")
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return vaultErrors.NewWithComponent(vaultErrors.OpStore, "store",
			fmt.Errorf("source key %q holds no data", src))
	}

	if err := s.recomputeUsageLocked(ctx); err != nil {
		s.logger.Warn("storage usage recomputation failed", "error", err)
	}
	return nil
}

// RemoveData deletes one key. Removing an absent key is not an error.
func (s *Store) RemoveData(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE key = ?", s.config.TableName)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return vaultErrors.WrapOpComponent(err, vaultErrors.OpRemove, "store")
	}

	if err := s.recomputeUsageLocked(ctx); err != nil {
		s.logger.Warn("storage usage recomputation failed", "error", err)
	}
	return nil
}

// ClearAll removes every key in the store's namespace and reinitializes a
// fresh empty schema.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.config.TableName)); err != nil {
		return vaultErrors.WrapOpComponent(err, vaultErrors.OpClear, "store")
	}

	if err := s.storeLocked(ctx, SchemaKey, DefaultSchema(time.Now().UTC())); err != nil {
		return err
	}

	if err := s.recomputeUsageLocked(ctx); err != nil {
		s.logger.Warn("storage usage recomputation failed", "error", err)
	}

	s.logger.Info("store cleared")
	return nil
}

// Schema loads the root schema document.
func (s *Store) Schema(ctx context.Context) (*Schema, error) {
	var schema Schema
	found, err := s.RetrieveData(ctx, SchemaKey, &schema)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, vaultErrors.NewInitializationError(vaultErrors.OpLoad,
			fmt.Errorf("root schema is missing"))
	}
	schema.normalize()
	return &schema, nil
}

// SaveSchema validates and persists the root schema document.
func (s *Store) SaveSchema(ctx context.Context, schema *Schema) error {
	schema.normalize()
	if err := schema.validate(); err != nil {
		return vaultErrors.NewWithComponent(vaultErrors.OpStore, "store", err)
	}
	schema.UpdatedAt = time.Now().UTC()
	return s.StoreData(ctx, SchemaKey, schema)
}

// StorageInfo reports usage against the advisory quota.
type StorageInfo struct {
	TotalBytes     int64 `json:"total_bytes"`
	UsedBytes      int64 `json:"used_bytes"`
	AvailableBytes int64 `json:"available_bytes"`
	QuotaExceeded  bool  `json:"quota_exceeded"`
}

// GetStorageInfo returns the usage snapshot maintained after every write.
func (s *Store) GetStorageInfo() (StorageInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.guardLocked(); err != nil {
		return StorageInfo{}, err
	}

	info := StorageInfo{
		TotalBytes: s.config.QuotaBytes,
		UsedBytes:  s.usedBytes,
	}
	info.AvailableBytes = info.TotalBytes - info.UsedBytes
	if info.AvailableBytes < 0 {
		info.AvailableBytes = 0
	}
	info.QuotaExceeded = info.UsedBytes > info.TotalBytes
	return info, nil
}

func (s *Store) recomputeUsageLocked(ctx context.Context) error {
	var used sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT SUM(LENGTH(value)) FROM %s", s.config.TableName)).Scan(&used)
	if err != nil {
		return err
	}
	s.usedBytes = used.Int64
	return nil
}

func (s *Store) guardLocked() error {
	if s.closed {
		return ErrStoreClosed
	}
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

// DB exposes the underlying database handle so sibling components (the sync
// queue) can keep their tables in the same database file and share its
// transactional guarantees. Callers must not touch the store's own tables.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the store and releases resources.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.initialized = false
	return s.db.Close()
}

// Retrieve is a typed convenience over Store.RetrieveData. It returns nil
// when the key is absent or the payload could not be decoded.
func Retrieve[T any](ctx context.Context, s *Store, key string) (*T, error) {
	var out T
	found, err := s.RetrieveData(ctx, key, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &out, nil
}
