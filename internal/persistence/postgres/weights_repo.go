// Package postgres implements the learned-weight source against Postgres.
// The optimizer writes one row per published snapshot; the decision core
// only ever reads the newest one.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/argusquant/argusd/internal/domain/regime"
	"github.com/argusquant/argusd/internal/weights"
)

const fetchTimeout = 5 * time.Second

// Schema for reference; migrations live with the optimizer that writes it.
//
//	CREATE TABLE learned_weights (
//	    version    BIGSERIAL PRIMARY KEY,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    core       JSONB NOT NULL,
//	    pulse      JSONB NOT NULL
//	);

// WeightsRepo reads learned weight snapshots.
type WeightsRepo struct {
	db *sqlx.DB
}

// NewWeightsRepo connects and verifies the database is reachable.
func NewWeightsRepo(dsn string) (*WeightsRepo, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &WeightsRepo{db: db}, nil
}

// Close releases the connection pool.
func (r *WeightsRepo) Close() error {
	return r.db.Close()
}

type weightsRow struct {
	Version   int64     `db:"version"`
	UpdatedAt time.Time `db:"updated_at"`
	Core      []byte    `db:"core"`
	Pulse     []byte    `db:"pulse"`
}

// Fetch returns the newest snapshot, or nil when none has been published.
func (r *WeightsRepo) Fetch(ctx context.Context) (*weights.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var row weightsRow
	err := r.db.GetContext(ctx, &row, `
		SELECT version, updated_at, core, pulse
		FROM learned_weights
		ORDER BY version DESC
		LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query learned weights: %w", err)
	}

	snap := &weights.Snapshot{
		Version:   row.Version,
		UpdatedAt: row.UpdatedAt,
		Core:      make(regime.WeightVector),
		Pulse:     make(regime.WeightVector),
	}
	if err := json.Unmarshal(row.Core, &snap.Core); err != nil {
		return nil, fmt.Errorf("decode core weights v%d: %w", row.Version, err)
	}
	if err := json.Unmarshal(row.Pulse, &snap.Pulse); err != nil {
		return nil, fmt.Errorf("decode pulse weights v%d: %w", row.Version, err)
	}
	return snap, nil
}
