package pprof

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// FileMode snapshots the configured profiles on a fixed interval while
// the process runs, then once more at shutdown.
type FileMode struct {
	config    *FileConfig
	collector *Collector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFileMode creates a new FileMode.
func NewFileMode(config *FileConfig) *FileMode {
	if config == nil {
		config = DefaultConfig().FileConfig
	}
	return &FileMode{config: config}
}

// Name returns the mode name.
func (fm *FileMode) Name() string {
	return "file"
}

// Start launches the periodic snapshot loop.
func (fm *FileMode) Start(ctx context.Context, collector *Collector) error {
	fm.collector = collector
	fm.ctx, fm.cancel = context.WithCancel(ctx)

	// Block and mutex profiles need their runtime rates raised first.
	cfg := collector.Config()
	if cfg.HasProfile(ProfileBlock) {
		runtime.SetBlockProfileRate(1)
	}
	if cfg.HasProfile(ProfileMutex) {
		runtime.SetMutexProfileFraction(1)
	}

	fm.wg.Add(1)
	go func() {
		defer fm.wg.Done()
		fm.loop()
	}()
	return nil
}

// Stop ends the loop, takes a final snapshot and restores the runtime
// profiling rates.
func (fm *FileMode) Stop() error {
	if fm.cancel != nil {
		fm.cancel()
	}
	fm.wg.Wait()

	fm.snapshotAll(true)

	runtime.SetBlockProfileRate(0)
	runtime.SetMutexProfileFraction(0)
	return nil
}

func (fm *FileMode) loop() {
	ticker := time.NewTicker(fm.config.Interval)
	defer ticker.Stop()

	// An immediate first snapshot, so short runs still produce output.
	fm.snapshotAll(false)

	for {
		select {
		case <-fm.ctx.Done():
			return
		case <-ticker.C:
			fm.snapshotAll(false)
		}
	}
}

// snapshotAll captures every configured profile once. In the final pass
// after Stop, CPU is skipped since a timed capture would stall shutdown.
func (fm *FileMode) snapshotAll(final bool) {
	for _, pt := range fm.collector.Config().Profiles {
		if !final {
			select {
			case <-fm.ctx.Done():
				return
			default:
			}
		}

		var data []byte
		var err error
		switch {
		case pt == ProfileCPU && final:
			continue
		case pt == ProfileCPU:
			data, err = fm.collector.SnapshotCPU(fm.ctx, fm.config.CPUDuration)
		default:
			data, err = fm.collector.Snapshot(pt)
		}
		if err != nil {
			fm.collector.addError(fmt.Sprintf("snapshot %s: %v", pt, err))
			continue
		}

		// WriteSnapshot records its own errors on the collector.
		_, _ = fm.collector.WriteSnapshot(pt, data)
	}
}
