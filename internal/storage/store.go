package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/health"
)

// Backend names accepted by Open
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// ErrEmptyUser is returned when a history operation is attempted without a user id
var ErrEmptyUser = fmt.Errorf("user id is required")

// Snapshot is one recorded scoring: the submitted readings, the computed
// scores and when it was stored
type Snapshot struct {
	ID            string                        `json:"id"`
	User          string                        `json:"user"`
	Machines      map[string]map[string]float64 `json:"machines"`
	Factory       string                        `json:"factory"`
	MachineScores map[string]string             `json:"machineScores"`
	Date          time.Time                     `json:"date"`
}

// NewSnapshot builds an unsaved snapshot from a request payload and its result
func NewSnapshot(user string, machines map[health.MachineType]map[string]health.Reading, result health.FactoryScore) *Snapshot {
	scores := make(map[string]string, len(result.MachineScores))
	for machineType, score := range result.MachineScores {
		scores[string(machineType)] = score
	}

	return &Snapshot{
		User:          user,
		Machines:      health.FlattenPayload(machines),
		Factory:       result.Factory,
		MachineScores: scores,
	}
}

// HistoryStore persists per-user snapshot lists. List returns snapshots
// oldest first; an unknown user yields an empty list, never an error.
type HistoryStore interface {
	Append(ctx context.Context, user string, snapshot *Snapshot) error
	List(ctx context.Context, user string) ([]Snapshot, error)
	Clear(ctx context.Context, user string) (int, error)
	Prune(ctx context.Context, olderThan time.Time) (int, error)
	Close() error
}

// stamp fills the identity fields every backend sets on append
func stamp(user string, snapshot *Snapshot, now time.Time) error {
	if strings.TrimSpace(user) == "" {
		return ErrEmptyUser
	}
	if snapshot == nil {
		return fmt.Errorf("snapshot is nil")
	}

	snapshot.User = user
	if snapshot.ID == "" {
		snapshot.ID = uuid.New().String()
	}
	if snapshot.Date.IsZero() {
		snapshot.Date = now.UTC()
	}
	return nil
}

// Options selects and configures a backend
type Options struct {
	Backend       string
	DataDir       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Retention     time.Duration
}

// Open creates the configured history store. A redis backend that cannot be
// reached degrades to an in-memory store so the scoring API stays available.
func Open(opts Options) (HistoryStore, *RedisClient, error) {
	switch opts.Backend {
	case BackendMemory:
		slog.Info("Using in-memory history store")
		return NewMemoryStore(), nil, nil

	case BackendRedis:
		client, err := NewRedisClient(opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err != nil || !client.IsEnabled() {
			slog.Warn("Redis history store unavailable, falling back to memory", "error", err)
			return NewMemoryStore(), client, nil
		}
		return NewRedisStore(client, opts.Retention), client, nil

	case BackendSQLite, "":
		store, err := NewSQLiteStore(opts.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
