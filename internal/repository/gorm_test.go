package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/global-done/pkg/model"
)

func newMigratedDB(t *testing.T) *GormRunRepository {
	t.Helper()
	db := newTestGormDB(t)
	require.NoError(t, db.AutoMigrate(&BenchRun{}))
	return NewGormRunRepository(db)
}

func TestGormRunRepository_SaveAndFetch(t *testing.T) {
	repo := newMigratedDB(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, repo.SaveRun(ctx, rec))
	assert.NotZero(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := repo.RunsByUUID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, rec.ID, got[0].ID)
	assert.Equal(t, model.ModeDetector, got[0].Mode)
	assert.Equal(t, 16, got[0].NPEs)
	assert.Equal(t, model.PolicyLastArrival, got[0].Policy)
	assert.Equal(t, model.BroadcastTree, got[0].Broadcast)
	assert.Equal(t, int64(100), got[0].MinUs)
	assert.InDelta(t, 200.0, got[0].AvgUs, 0.001)
	assert.Equal(t, int64(300), got[0].MaxUs)
	assert.Equal(t, []int64{100, 200, 300}, got[0].DurationsUs)
}

func TestGormRunRepository_MultipleModesPerRun(t *testing.T) {
	repo := newMigratedDB(t)
	ctx := context.Background()

	for _, mode := range []model.Mode{model.ModeDetector, model.ModeNaive, model.ModeAllReduce} {
		rec := sampleRecord()
		rec.Mode = mode
		require.NoError(t, repo.SaveRun(ctx, rec))
	}

	got, err := repo.RunsByUUID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, model.ModeDetector, got[0].Mode)
	assert.Equal(t, model.ModeAllReduce, got[2].Mode)
}

func TestGormRunRepository_RunsByUUID_Empty(t *testing.T) {
	repo := newMigratedDB(t)

	got, err := repo.RunsByUUID(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGormRunRepository_RecentRuns(t *testing.T) {
	repo := newMigratedDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := sampleRecord()
		rec.RunUUID = "run-" + string(rune('a'+i))
		require.NoError(t, repo.SaveRun(ctx, rec))
	}

	got, err := repo.RecentRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Newest first.
	assert.Equal(t, "run-e", got[0].RunUUID)
	assert.Equal(t, "run-c", got[2].RunUUID)
}

func TestGormRunRepository_NoDurations(t *testing.T) {
	repo := newMigratedDB(t)
	ctx := context.Background()

	rec := sampleRecord()
	rec.DurationsUs = nil
	require.NoError(t, repo.SaveRun(ctx, rec))

	got, err := repo.RunsByUUID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].DurationsUs)
}
