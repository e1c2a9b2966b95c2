package pprof

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProfileTypes(t *testing.T) {
	types, err := ParseProfileTypes("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfileTypes(), types)

	types, err = ParseProfileTypes("heap, goroutine")
	require.NoError(t, err)
	assert.Equal(t, []ProfileType{ProfileHeap, ProfileGoroutine}, types)

	_, err = ParseProfileTypes("cpu,flame")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	// Disabled configs pass regardless of content.
	cfg.OutputDir = ""
	require.NoError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Enabled = true
	require.NoError(t, cfg.Validate())

	cfg.Mode = "periodic"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Enabled = true
	cfg.FileConfig.CPUDuration = cfg.FileConfig.Interval
	assert.Error(t, cfg.Validate())
}

func TestCollectorFileMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.OutputDir = t.TempDir()
	cfg.Profiles = []ProfileType{ProfileHeap, ProfileGoroutine}
	cfg.FileConfig.Interval = time.Hour
	cfg.FileConfig.CPUDuration = time.Second

	collector, err := NewCollector(cfg)
	require.NoError(t, err)

	require.NoError(t, collector.Start())
	assert.Error(t, collector.Start(), "second start must be rejected")
	require.NoError(t, collector.Stop())

	status := collector.Status()
	assert.False(t, status.Running)
	assert.GreaterOrEqual(t, status.SnapshotCount[ProfileHeap], int64(1))
	assert.GreaterOrEqual(t, status.SnapshotCount[ProfileGoroutine], int64(1))

	files, err := collector.Writer().ListFiles(ProfileHeap)
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}

func TestCollectorSnapshot(t *testing.T) {
	collector, err := NewCollector(nil)
	require.NoError(t, err)

	data, err := collector.Snapshot(ProfileGoroutine)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	_, err = collector.Snapshot(ProfileCPU)
	assert.Error(t, err, "CPU profiles go through SnapshotCPU")
}

func TestWriterRotation(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 2, true)
	require.NoError(t, w.EnsureDir([]ProfileType{ProfileHeap}))

	for i := 0; i < 4; i++ {
		_, err := w.Write(ProfileHeap, []byte("snapshot"))
		require.NoError(t, err)
		// Distinct timestamps keep the rotation order stable.
		time.Sleep(10 * time.Millisecond)
	}

	files, err := w.ListFiles(ProfileHeap)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(files), 2)
}
