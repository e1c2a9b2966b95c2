package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/global-done/pkg/model"
)

// PostgresRunRepository implements RunRepository for PostgreSQL over
// database/sql.
type PostgresRunRepository struct {
	db *sql.DB
}

// NewPostgresRunRepository creates a new PostgresRunRepository.
func NewPostgresRunRepository(db *sql.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

// SaveRun stores one mode's aggregate result of a run.
func (r *PostgresRunRepository) SaveRun(ctx context.Context, rec *model.RunRecord) error {
	row := fromModel(rec)
	query := `
		INSERT INTO bench_run
			(run_uuid, mode, npes, leaf_size, branch_factor, policy, broadcast,
			 episodes, min_us, avg_us, max_us, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		row.RunUUID, row.Mode, row.NPEs, row.LeafSize, row.BranchFactor,
		row.Policy, row.Broadcast, row.Episodes, row.MinUs, row.AvgUs, row.MaxUs,
		row.Detail,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}
	return nil
}

// RunsByUUID retrieves every mode record of a run.
func (r *PostgresRunRepository) RunsByUUID(ctx context.Context, runUUID string) ([]*model.RunRecord, error) {
	query := selectRunColumns + ` WHERE run_uuid = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, runUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	return scanRunRows(rows)
}

// RecentRuns retrieves the most recent records, newest first.
func (r *PostgresRunRepository) RecentRuns(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	query := selectRunColumns + ` ORDER BY id DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent runs: %w", err)
	}
	defer rows.Close()

	return scanRunRows(rows)
}
