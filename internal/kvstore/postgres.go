package kvstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps documents in the kv_documents table (see migrations).
type PostgresStore struct {
	db rowQuerier
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("kvstore: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithExec(exec rowQuerier) *PostgresStore {
	if exec == nil {
		panic("kvstore: exec required")
	}
	return &PostgresStore{db: exec}
}

func (s *PostgresStore) Load(ctx context.Context, key string, dst any) (bool, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT value FROM kv_documents WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, persistErr("postgres select", key, err)
	}
	if err := decode(key, raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) Save(ctx context.Context, key string, value any) error {
	raw, err := encode(key, value)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO kv_documents (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := s.db.Exec(ctx, query, key, raw); err != nil {
		return persistErr("postgres upsert", key, err)
	}
	return nil
}
