package accounts

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists accounts in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and returns a store handle.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// LoadAll returns every stored account.
func (s *PostgresStore) LoadAll(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, password, privileges FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Name, &rec.Password, &rec.Privileges); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return records, nil
}

// Save upserts one account.
func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (name, password, privileges)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE
		 SET password = EXCLUDED.password, privileges = EXCLUDED.privileges`,
		rec.Name, rec.Password, rec.Privileges,
	)
	if err != nil {
		return fmt.Errorf("saving account %q: %w", rec.Name, err)
	}
	return nil
}

// Delete removes one account.
func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM accounts WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting account %q: %w", name, err)
	}
	return nil
}
