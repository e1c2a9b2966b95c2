package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/global-done/pkg/model"
)

// GormRunRepository implements RunRepository using GORM.
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GormRunRepository.
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// SaveRun stores one mode's aggregate result of a run.
func (r *GormRunRepository) SaveRun(ctx context.Context, rec *model.RunRecord) error {
	row := fromModel(rec)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}
	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt
	return nil
}

// RunsByUUID retrieves every mode record of a run.
func (r *GormRunRepository) RunsByUUID(ctx context.Context, runUUID string) ([]*model.RunRecord, error) {
	var rows []BenchRun

	err := r.db.WithContext(ctx).Where("run_uuid = ?", runUUID).Order("id").Find(&rows).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run not found: %s", runUUID)
		}
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	records := make([]*model.RunRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].ToModel()
	}
	return records, nil
}

// RecentRuns retrieves the most recent records, newest first.
func (r *GormRunRepository) RecentRuns(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	var rows []BenchRun

	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent runs: %w", err)
	}

	records := make([]*model.RunRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].ToModel()
	}
	return records, nil
}
