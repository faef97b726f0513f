package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PGQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type PGQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgSchemaSQL = `CREATE TABLE IF NOT EXISTS console_session_token (
	slot SMALLINT PRIMARY KEY DEFAULT 1 CHECK (slot = 1),
	token TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	pgLoadSQL  = `SELECT token FROM console_session_token WHERE slot = 1`
	pgSaveSQL  = `INSERT INTO console_session_token (slot, token, updated_at) VALUES (1, $1, now())
ON CONFLICT (slot) DO UPDATE SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at`
	pgClearSQL = `DELETE FROM console_session_token WHERE slot = 1`
)

// PGStore keeps the token in a one-row table.
type PGStore struct {
	db PGQuerier
}

// NewPGStore constructs a PGStore.
func NewPGStore(db PGQuerier) *PGStore {
	return &PGStore{db: db}
}

// EnsureSchema creates the backing table when missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, pgSchemaSQL); err != nil {
		return fmt.Errorf("create token table: %w", err)
	}
	return nil
}

func (s *PGStore) Load(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRow(ctx, pgLoadSQL).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select token: %w", err)
	}
	return token, nil
}

func (s *PGStore) Save(ctx context.Context, token string) error {
	if _, err := s.db.Exec(ctx, pgSaveSQL, token); err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

func (s *PGStore) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, pgClearSQL); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
