package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/encoding"
)

const databaseFile = "machine_health.db"

// ConnectionPool records the pool limits applied to the sql.DB
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool applies pool limits to db
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// SQLiteStore persists history in a local sqlite database
type SQLiteStore struct {
	db       *sql.DB
	pool     *ConnectionPool
	codec    *encoding.Codec
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
	now      func() time.Time
}

// NewSQLiteStore opens (creating if needed) the history database under dataDir
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, databaseFile)
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{
		db:       db,
		pool:     NewConnectionPool(db, 10, 5, 5*time.Minute),
		codec:    encoding.NewCodec(10),
		prepared: make(map[string]*sql.Stmt),
		now:      time.Now,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := store.initPreparedStatements(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("History database initialized",
		"path", dbPath,
		"max_open_conns", store.pool.maxOpenConns,
		"max_idle_conns", store.pool.maxIdleConns)

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			machines TEXT NOT NULL, -- JSON machine -> part -> value
			factory TEXT NOT NULL,
			machine_scores TEXT NOT NULL, -- JSON machine -> score
			created_at INTEGER NOT NULL -- unix nanoseconds
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_user ON snapshots(user_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) initPreparedStatements() error {
	statements := map[string]string{
		"insert_snapshot": `INSERT INTO snapshots (id, user_id, machines, factory, machine_scores, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
		"list_snapshots": `SELECT id, user_id, machines, factory, machine_scores, created_at
			FROM snapshots WHERE user_id = ? ORDER BY seq ASC`,
		"clear_snapshots": `DELETE FROM snapshots WHERE user_id = ?`,
		"prune_snapshots": `DELETE FROM snapshots WHERE created_at < ?`,
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for name, query := range statements {
		stmt, err := s.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		s.prepared[name] = stmt

		slog.Debug("Prepared statement initialized", "name", name)
	}

	return nil
}

func (s *SQLiteStore) statement(name string) (*sql.Stmt, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stmt, exists := s.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}
	return stmt, nil
}

func (s *SQLiteStore) Append(ctx context.Context, user string, snapshot *Snapshot) error {
	if err := stamp(user, snapshot, s.now()); err != nil {
		return err
	}

	machines, err := s.codec.Marshal(snapshot.Machines)
	if err != nil {
		return fmt.Errorf("failed to encode machines: %w", err)
	}
	scores, err := s.codec.Marshal(snapshot.MachineScores)
	if err != nil {
		return fmt.Errorf("failed to encode machine scores: %w", err)
	}

	stmt, err := s.statement("insert_snapshot")
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, snapshot.ID, user, string(machines), snapshot.Factory, string(scores), snapshot.Date.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, user string) ([]Snapshot, error) {
	if user == "" {
		return nil, ErrEmptyUser
	}

	stmt, err := s.statement("list_snapshots")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		var (
			snapshot       Snapshot
			machines       string
			machineScores  string
			createdAtNanos int64
		)
		if err := rows.Scan(&snapshot.ID, &snapshot.User, &machines, &snapshot.Factory, &machineScores, &createdAtNanos); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if err := s.codec.Unmarshal([]byte(machines), &snapshot.Machines); err != nil {
			return nil, fmt.Errorf("failed to decode machines for %s: %w", snapshot.ID, err)
		}
		if err := s.codec.Unmarshal([]byte(machineScores), &snapshot.MachineScores); err != nil {
			return nil, fmt.Errorf("failed to decode machine scores for %s: %w", snapshot.ID, err)
		}
		snapshot.Date = time.Unix(0, createdAtNanos).UTC()
		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return snapshots, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, user string) (int, error) {
	if user == "" {
		return 0, ErrEmptyUser
	}
	return s.execCount(ctx, "clear_snapshots", user)
}

func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	return s.execCount(ctx, "prune_snapshots", olderThan.UnixNano())
}

func (s *SQLiteStore) execCount(ctx context.Context, name string, args ...interface{}) (int, error) {
	stmt, err := s.statement(name)
	if err != nil {
		return 0, err
	}

	result, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute %s: %w", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(affected), nil
}

// PoolStats returns database connection pool statistics
func (s *SQLiteStore) PoolStats() map[string]interface{} {
	return s.pool.GetStats()
}

// Close closes prepared statements and the database
func (s *SQLiteStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for name, stmt := range s.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	s.prepared = make(map[string]*sql.Stmt)

	return s.db.Close()
}
