package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath selects a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	// Every connection to :memory: is a separate database.
	if cfg.Path == MemoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.cfg.Path
}

// Init opens the database and enables WAL mode for file databases.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path
	if dsn != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate",
			s.cfg.Path, s.cfg.BusyTimeout.Milliseconds())
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// GetPreference retrieves a preference by key
func (s *SQLiteStore) GetPreference(ctx context.Context, key string) (*Preference, error) {
	query := `SELECT key, value, updated_at FROM preferences WHERE key = ?`

	pref := &Preference{}
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, query, key).Scan(&pref.Key, &pref.Value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: preference %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}

	pref.UpdatedAt = time.Unix(0, updatedAt)
	return pref, nil
}

// SetPreference creates or replaces a preference
func (s *SQLiteStore) SetPreference(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to set preference: %w", err)
	}
	return nil
}

// DeletePreference removes a preference
func (s *SQLiteStore) DeletePreference(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: preference %s", ErrNotFound, key)
	}
	return nil
}

// ListPreferences lists all preferences ordered by key
func (s *SQLiteStore) ListPreferences(ctx context.Context) ([]*Preference, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, updated_at FROM preferences ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()

	prefs := []*Preference{}
	for rows.Next() {
		pref := &Preference{}
		var updatedAt int64
		if err := rows.Scan(&pref.Key, &pref.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		pref.UpdatedAt = time.Unix(0, updatedAt)
		prefs = append(prefs, pref)
	}

	return prefs, rows.Err()
}

// AppendJournal records a journal entry. ID and CreatedAt are filled in when empty.
func (s *SQLiteStore) AppendJournal(ctx context.Context, entry *JournalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Level == "" {
		entry.Level = "info"
	}

	data := []byte("{}")
	if len(entry.Data) > 0 {
		var err error
		data, err = json.Marshal(entry.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal journal data: %w", err)
		}
	}

	query := `
		INSERT INTO journal (id, type, source, boot_key, message, level, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Type,
		entry.Source,
		entry.Key,
		entry.Message,
		entry.Level,
		string(data),
		entry.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}

	if seq, err := result.LastInsertId(); err == nil {
		entry.Seq = seq
	}
	return nil
}

// ListJournal returns entries newest first.
func (s *SQLiteStore) ListJournal(ctx context.Context, filter JournalFilter) ([]*JournalEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT seq, id, type, source, boot_key, message, level, data, created_at
		FROM journal
		WHERE (? = '' OR type = ?) AND created_at >= ?
		ORDER BY seq DESC
		LIMIT ?
	`

	var since int64
	if !filter.Since.IsZero() {
		since = filter.Since.UnixNano()
	}

	rows, err := s.db.QueryContext(ctx, query, filter.Type, filter.Type, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}
	defer rows.Close()

	entries := []*JournalEntry{}
	for rows.Next() {
		entry := &JournalEntry{}
		var data string
		var createdAt int64
		err := rows.Scan(
			&entry.Seq,
			&entry.ID,
			&entry.Type,
			&entry.Source,
			&entry.Key,
			&entry.Message,
			&entry.Level,
			&data,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}

		entry.CreatedAt = time.Unix(0, createdAt)
		if data != "" && data != "{}" {
			if err := json.Unmarshal([]byte(data), &entry.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal journal data: %w", err)
			}
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// PruneJournal deletes all but the newest keep entries and returns how many were removed.
func (s *SQLiteStore) PruneJournal(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative")
	}

	query := `
		DELETE FROM journal
		WHERE seq NOT IN (SELECT seq FROM journal ORDER BY seq DESC LIMIT ?)
	`

	result, err := s.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
