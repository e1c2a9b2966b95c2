package integration

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/global-done/internal/bench"
	"github.com/global-done/internal/repository"
	"github.com/global-done/internal/storage"
	"github.com/global-done/pkg/config"
	"github.com/global-done/pkg/model"
)

// pipelineConfig builds a small but multi-level benchmark configuration
// with a sqlite run history and local report storage under tempDir.
func pipelineConfig(t *testing.T, tempDir string) *config.Config {
	t.Helper()

	cfg, err := config.LoadFromReader("yaml", []byte("{}"))
	require.NoError(t, err)

	cfg.Runtime.NPEs = 9
	cfg.Detect.LeafSize = 4
	cfg.Detect.BranchFactor = 2
	cfg.Bench.Episodes = 2
	cfg.Bench.Warmup = 1
	cfg.Bench.WorkMinMs = 0
	cfg.Bench.WorkMaxMs = 1
	cfg.Bench.Modes = []string{"detector", "naive", "allreduce"}
	cfg.Bench.OutputDir = filepath.Join(tempDir, "results")
	cfg.Database.Type = "sqlite"
	cfg.Database.Path = filepath.Join(tempDir, "runs.db")
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = filepath.Join(tempDir, "objects")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestFullBenchPipeline(t *testing.T) {
	tempDir := t.TempDir()
	cfg := pipelineConfig(t, tempDir)
	ctx := context.Background()

	// Step 1: Open the run-history database
	db, err := repository.NewGormDB(&cfg.Database)
	require.NoError(t, err)
	repos := repository.NewRepositories(db, cfg.Database.Type)
	defer repos.Close()

	// Step 2: Open report storage
	store, err := storage.NewStorage(&cfg.Storage)
	require.NoError(t, err)

	// Step 3: Run the full benchmark
	harness := bench.New(cfg,
		bench.WithRepository(repos.Run),
		bench.WithStorage(store),
	)
	report, err := harness.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)
	require.Len(t, report.Results, 3)

	// Step 4: Every mode aggregate landed in the database
	recs, err := repos.Run.RunsByUUID(ctx, report.RunUUID)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for _, rec := range recs {
		assert.Equal(t, report.RunUUID, rec.RunUUID)
		assert.Equal(t, 9, rec.NPEs)
		assert.Equal(t, 2, rec.Episodes)
		assert.Len(t, rec.DurationsUs, 2)
	}

	// Step 5: The report file on disk parses back to the same run
	raw, err := os.ReadFile(cfg.ReportPath(report.RunUUID))
	require.NoError(t, err)

	var onDisk model.BenchReport
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, report.RunUUID, onDisk.RunUUID)
	assert.Len(t, onDisk.Results, 3)

	// Step 6: The uploaded object is valid gzip of the same report
	rc, err := store.Download(ctx, "reports/"+report.RunUUID+".json.gz")
	require.NoError(t, err)
	defer rc.Close()

	packed, err := io.ReadAll(rc)
	require.NoError(t, err)

	gzReader, err := gzip.NewReader(bytes.NewReader(packed))
	require.NoError(t, err)
	defer gzReader.Close()

	decompressed, err := io.ReadAll(gzReader)
	require.NoError(t, err)

	var uploaded model.BenchReport
	require.NoError(t, json.Unmarshal(decompressed, &uploaded))
	assert.Equal(t, report.RunUUID, uploaded.RunUUID)

	t.Logf("Run %s: %d modes, report %d bytes, object %d bytes",
		report.RunUUID, len(report.Results), len(raw), len(packed))
}

func TestFullBenchPipeline_RecentRuns(t *testing.T) {
	tempDir := t.TempDir()
	cfg := pipelineConfig(t, tempDir)
	cfg.Bench.Modes = []string{"detector"}
	ctx := context.Background()

	db, err := repository.NewGormDB(&cfg.Database)
	require.NoError(t, err)
	repos := repository.NewRepositories(db, cfg.Database.Type)
	defer repos.Close()

	// Two back-to-back runs against the same database
	first, err := bench.New(cfg, bench.WithRepository(repos.Run)).Run(ctx)
	require.NoError(t, err)
	second, err := bench.New(cfg, bench.WithRepository(repos.Run)).Run(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.RunUUID, second.RunUUID)

	recent, err := repos.Run.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.RunUUID, recent[0].RunUUID)
}
