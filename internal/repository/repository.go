// Package repository persists benchmark run history.
package repository

import (
	"context"

	"github.com/global-done/pkg/model"
)

// RunRepository defines the database operations for benchmark runs.
type RunRepository interface {
	// SaveRun stores one mode's aggregate result of a run.
	SaveRun(ctx context.Context, rec *model.RunRecord) error

	// RunsByUUID retrieves every mode record of a run.
	RunsByUUID(ctx context.Context, runUUID string) ([]*model.RunRecord, error)

	// RecentRuns retrieves the most recent records, newest first.
	RecentRuns(ctx context.Context, limit int) ([]*model.RunRecord, error)
}
