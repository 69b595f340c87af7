package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresBackend{pool: pool}, nil
}

func (p *PostgresBackend) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			key TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

func (p *PostgresBackend) Load(ctx context.Context, key string) ([]byte, error) {
	var body string
	err := p.pool.QueryRow(ctx, `SELECT body FROM documents WHERE key = $1`, key).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	return []byte(body), nil
}

func (p *PostgresBackend) Save(ctx context.Context, key string, data []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO documents (key, body, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
	`, key, string(data), time.Now().UTC())
	return err
}

func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}
