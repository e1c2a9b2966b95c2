package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRunRepository_SaveRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRunRepository(db)

	mock.ExpectQuery("INSERT INTO bench_run").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	rec := sampleRecord()
	require.NoError(t, repo.SaveRun(context.Background(), rec))
	assert.Equal(t, int64(42), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunRepository_SaveRun_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRunRepository(db)

	mock.ExpectQuery("INSERT INTO bench_run").
		WillReturnError(assert.AnError)

	err = repo.SaveRun(context.Background(), sampleRecord())
	assert.Error(t, err)
}

func TestPostgresRunRepository_RunsByUUID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRunRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "run_uuid", "mode", "npes", "leaf_size", "branch_factor",
		"policy", "broadcast", "episodes", "min_us", "avg_us", "max_us",
		"detail", "created_at",
	}).AddRow(
		int64(3), "run-3", "allreduce", 32, 8, 8,
		"last_arrival", "flat", 10, int64(5), 6.5, int64(9),
		nil, time.Now(),
	)

	mock.ExpectQuery("SELECT id, run_uuid, mode").
		WithArgs("run-3").
		WillReturnRows(rows)

	records, err := repo.RunsByUUID(context.Background(), "run-3")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(3), records[0].ID)
	assert.Equal(t, 32, records[0].NPEs)
}

func TestPostgresRunRepository_RecentRuns_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRunRepository(db)

	mock.ExpectQuery("SELECT id, run_uuid, mode").
		WillReturnError(assert.AnError)

	_, err = repo.RecentRuns(context.Background(), 3)
	assert.Error(t, err)
}
