package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/global-done/pkg/model"
)

// MySQLRunRepository implements RunRepository for MySQL over database/sql.
type MySQLRunRepository struct {
	db *sql.DB
}

// NewMySQLRunRepository creates a new MySQLRunRepository.
func NewMySQLRunRepository(db *sql.DB) *MySQLRunRepository {
	return &MySQLRunRepository{db: db}
}

// SaveRun stores one mode's aggregate result of a run.
func (r *MySQLRunRepository) SaveRun(ctx context.Context, rec *model.RunRecord) error {
	row := fromModel(rec)
	query := `
		INSERT INTO bench_run
			(run_uuid, mode, npes, leaf_size, branch_factor, policy, broadcast,
			 episodes, min_us, avg_us, max_us, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())
	`

	res, err := r.db.ExecContext(ctx, query,
		row.RunUUID, row.Mode, row.NPEs, row.LeafSize, row.BranchFactor,
		row.Policy, row.Broadcast, row.Episodes, row.MinUs, row.AvgUs, row.MaxUs,
		row.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}

	if id, idErr := res.LastInsertId(); idErr == nil {
		rec.ID = id
	}
	return nil
}

// RunsByUUID retrieves every mode record of a run.
func (r *MySQLRunRepository) RunsByUUID(ctx context.Context, runUUID string) ([]*model.RunRecord, error) {
	query := selectRunColumns + ` WHERE run_uuid = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, runUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	return scanRunRows(rows)
}

// RecentRuns retrieves the most recent records, newest first.
func (r *MySQLRunRepository) RecentRuns(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	query := selectRunColumns + ` ORDER BY id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent runs: %w", err)
	}
	defer rows.Close()

	return scanRunRows(rows)
}

const selectRunColumns = `
	SELECT id, run_uuid, mode, npes, leaf_size, branch_factor, policy,
		   broadcast, episodes, min_us, avg_us, max_us, detail, created_at
	FROM bench_run`

// scanRunRows converts a result set into run records.
func scanRunRows(rows *sql.Rows) ([]*model.RunRecord, error) {
	var records []*model.RunRecord
	for rows.Next() {
		var row BenchRun
		err := rows.Scan(
			&row.ID, &row.RunUUID, &row.Mode, &row.NPEs, &row.LeafSize,
			&row.BranchFactor, &row.Policy, &row.Broadcast, &row.Episodes,
			&row.MinUs, &row.AvgUs, &row.MaxUs, &row.Detail, &row.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		records = append(records, row.ToModel())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run records: %w", err)
	}
	return records, nil
}
