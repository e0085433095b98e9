package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// DefaultRetention is how long a processed message id is remembered.
const DefaultRetention = 24 * time.Hour

// ProcessedStore records inbound message ids that were already handled so a
// redelivered message is not triaged twice.
type ProcessedStore interface {
	// MarkProcessed records id and returns false if it was already recorded.
	MarkProcessed(ctx context.Context, id string) (bool, error)
	// Prune drops markers older than the retention window.
	Prune(ctx context.Context) (int, error)
}

// MemoryProcessedStore keeps markers in process memory.
type MemoryProcessedStore struct {
	mu        sync.Mutex
	retention time.Duration
	now       func() time.Time
	seen      map[string]time.Time
}

func NewMemoryProcessedStore(retention time.Duration) *MemoryProcessedStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryProcessedStore{retention: retention, now: time.Now, seen: make(map[string]time.Time)}
}

func (s *MemoryProcessedStore) MarkProcessed(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if at, ok := s.seen[id]; ok && now.Sub(at) < s.retention {
		return false, nil
	}
	s.seen[id] = now
	return true, nil
}

func (s *MemoryProcessedStore) Prune(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for id, at := range s.seen {
		if at.Before(cutoff) {
			delete(s.seen, id)
			removed++
		}
	}
	return removed, nil
}

// RedisProcessedStore uses SET NX with an expiry; Redis does the pruning.
type RedisProcessedStore struct {
	client    *redis.Client
	retention time.Duration
	prefix    string
}

func NewRedisProcessedStore(client *redis.Client, retention time.Duration) *RedisProcessedStore {
	if client == nil {
		panic("events: redis client required")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisProcessedStore{client: client, retention: retention, prefix: "leadtriage:processed:"}
}

func (s *RedisProcessedStore) MarkProcessed(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+id, "1", s.retention).Result()
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ok, nil
}

func (s *RedisProcessedStore) Prune(context.Context) (int, error) {
	return 0, nil
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresProcessedStore keeps markers in the processed_messages table.
type PostgresProcessedStore struct {
	pool      rowQuerier
	retention time.Duration
}

func NewPostgresProcessedStore(pool *pgxpool.Pool, retention time.Duration) *PostgresProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return newPostgresProcessedStoreWithExec(pool, retention)
}

func newPostgresProcessedStoreWithExec(exec rowQuerier, retention time.Duration) *PostgresProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &PostgresProcessedStore{pool: exec, retention: retention}
}

// AlreadyProcessed checks for a live marker without recording one.
func (s *PostgresProcessedStore) AlreadyProcessed(ctx context.Context, id string) (bool, error) {
	query := `SELECT 1 FROM processed_messages WHERE message_id = $1 AND processed_at > now() - make_interval(secs => $2)`
	var exists int
	if err := s.pool.QueryRow(ctx, query, id, s.retention.Seconds()).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

func (s *PostgresProcessedStore) MarkProcessed(ctx context.Context, id string) (bool, error) {
	query := `
		INSERT INTO processed_messages (message_id)
		VALUES ($1)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *PostgresProcessedStore) Prune(ctx context.Context) (int, error) {
	query := `DELETE FROM processed_messages WHERE processed_at < now() - make_interval(secs => $1)`
	ct, err := s.pool.Exec(ctx, query, s.retention.Seconds())
	if err != nil {
		return 0, fmt.Errorf("events: prune processed: %w", err)
	}
	return int(ct.RowsAffected()), nil
}
