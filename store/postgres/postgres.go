// postgres package provides a Postgres-backed penalty store for deployments
// that share endpoint penalties across hosts or want durability beyond the
// local filesystem.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	selectPenalty = `SELECT penalty FROM endpoint_penalties WHERE host = $1`

	selectAllPenalties = `SELECT host, penalty FROM endpoint_penalties ORDER BY penalty DESC`

	upsertPenalty = `INSERT INTO endpoint_penalties (host, penalty)
		VALUES ($1, $2)
		ON CONFLICT (host) DO UPDATE SET penalty = EXCLUDED.penalty`
)

// penaltyStore satisfies the cdn.PenaltyStore interface on top of a pgx
// connection pool.
type penaltyStore struct {
	db *pgxpool.Pool
}

/*
NewPenaltyStore
- Creates a pool of connections to a PostgreSQL database using the provided connection string.
- Parses the connection string into a pgx pool configuration object.
- Returns the store, a cleanup function closing the pool, and any setup error.

Expected schema:

	CREATE TABLE endpoint_penalties (
	    host    TEXT PRIMARY KEY,
	    penalty BIGINT NOT NULL DEFAULT 0
	);
*/
func NewPenaltyStore(connectionString string) (*penaltyStore, func() error, error) {
	config, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, nil, err
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool.NewWithConfig: %v", err)
	}

	cleanup := func() error {
		pool.Close()
		return nil
	}

	return &penaltyStore{db: pool}, cleanup, nil
}

func (s *penaltyStore) Get(ctx context.Context, host string) (int64, error) {
	var penalty int64
	err := s.db.QueryRow(ctx, selectPenalty, host).Scan(&penalty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("querying endpoint penalty: %w", err)
	}
	return penalty, nil
}

// All returns every stored penalty, keyed by host.
func (s *penaltyStore) All(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.Query(ctx, selectAllPenalties)
	if err != nil {
		return nil, fmt.Errorf("querying endpoint penalties: %w", err)
	}
	defer rows.Close()

	all := make(map[string]int64)
	for rows.Next() {
		var host string
		var penalty int64
		if err := rows.Scan(&host, &penalty); err != nil {
			return nil, fmt.Errorf("scanning endpoint penalty row: %w", err)
		}
		all[host] = penalty
	}
	return all, rows.Err()
}

func (s *penaltyStore) Set(ctx context.Context, host string, penalty int64) error {
	if _, err := s.db.Exec(ctx, upsertPenalty, host, penalty); err != nil {
		return fmt.Errorf("upserting endpoint penalty: %w", err)
	}
	return nil
}
