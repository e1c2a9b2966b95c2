package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/global-done/pkg/model"
)

func sampleRecord() *model.RunRecord {
	return &model.RunRecord{
		RunUUID:      "run-1",
		Mode:         model.ModeDetector,
		NPEs:         16,
		LeafSize:     4,
		BranchFactor: 2,
		Policy:       model.PolicyLastArrival,
		Broadcast:    model.BroadcastTree,
		Episodes:     3,
		MinUs:        100,
		AvgUs:        200,
		MaxUs:        300,
		DurationsUs:  []int64{100, 200, 300},
	}
}

func TestMySQLRunRepository_SaveRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMySQLRunRepository(db)

	mock.ExpectExec("INSERT INTO bench_run").
		WillReturnResult(sqlmock.NewResult(7, 1))

	rec := sampleRecord()
	require.NoError(t, repo.SaveRun(context.Background(), rec))
	assert.Equal(t, int64(7), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLRunRepository_SaveRun_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMySQLRunRepository(db)

	mock.ExpectExec("INSERT INTO bench_run").
		WillReturnError(assert.AnError)

	err = repo.SaveRun(context.Background(), sampleRecord())
	assert.Error(t, err)
}

func TestMySQLRunRepository_RunsByUUID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMySQLRunRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "run_uuid", "mode", "npes", "leaf_size", "branch_factor",
		"policy", "broadcast", "episodes", "min_us", "avg_us", "max_us",
		"detail", "created_at",
	}).AddRow(
		int64(1), "run-1", "detector", 16, 4, 2,
		"last_arrival", "tree", 3, int64(100), 200.0, int64(300),
		[]byte(`[100,200,300]`), time.Now(),
	).AddRow(
		int64(2), "run-1", "naive", 16, 4, 2,
		"last_arrival", "tree", 3, int64(150), 250.0, int64(350),
		nil, time.Now(),
	)

	mock.ExpectQuery("SELECT id, run_uuid, mode").
		WithArgs("run-1").
		WillReturnRows(rows)

	records, err := repo.RunsByUUID(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.ModeDetector, records[0].Mode)
	assert.Equal(t, []int64{100, 200, 300}, records[0].DurationsUs)
	assert.Equal(t, model.ModeNaive, records[1].Mode)
	assert.Nil(t, records[1].DurationsUs)
}

func TestMySQLRunRepository_RecentRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMySQLRunRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "run_uuid", "mode", "npes", "leaf_size", "branch_factor",
		"policy", "broadcast", "episodes", "min_us", "avg_us", "max_us",
		"detail", "created_at",
	}).AddRow(
		int64(9), "run-9", "detector", 8, 4, 2,
		"first_observer", "flat", 5, int64(10), 20.0, int64(30),
		nil, time.Now(),
	)

	mock.ExpectQuery("SELECT id, run_uuid, mode").
		WithArgs(5).
		WillReturnRows(rows)

	records, err := repo.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "run-9", records[0].RunUUID)
	assert.Equal(t, model.PolicyFirstObserver, records[0].Policy)
}
