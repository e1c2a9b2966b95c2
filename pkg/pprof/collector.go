package pprof

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"
)

// Collector owns the runtime profile capture for a single process and
// hands the data to its mode (file or HTTP).
type Collector struct {
	config *Config
	mode   Mode
	writer *Writer

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	status *Status

	// cpuMu serializes CPU profiles; the runtime allows only one at a time.
	cpuMu sync.Mutex
}

// Status is a point-in-time view of what the collector has captured.
type Status struct {
	Running       bool                      `json:"running"`
	Mode          ModeType                  `json:"mode"`
	StartTime     time.Time                 `json:"start_time"`
	SnapshotCount map[ProfileType]int64     `json:"snapshot_count"`
	LastSnapshot  map[ProfileType]time.Time `json:"last_snapshot"`
	Errors        []string                  `json:"errors"`
}

// Mode is a capture strategy plugged into the Collector.
type Mode interface {
	Name() string
	Start(ctx context.Context, collector *Collector) error
	Stop() error
}

// NewCollector builds a collector for the configured mode. A nil cfg means
// the defaults, which profile to ./pprof in file mode.
func NewCollector(cfg *Config) (*Collector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	fc := cfg.FileConfig
	if fc == nil {
		fc = DefaultConfig().FileConfig
	}

	c := &Collector{
		config: cfg,
		writer: NewWriter(cfg.OutputDir, fc.MaxFiles, fc.AutoRotate),
		status: &Status{
			SnapshotCount: make(map[ProfileType]int64),
			LastSnapshot:  make(map[ProfileType]time.Time),
			Errors:        make([]string, 0),
		},
	}

	switch cfg.Mode {
	case ModeFile:
		c.mode = NewFileMode(cfg.FileConfig)
	case ModeHTTP:
		c.mode = NewHTTPMode(cfg.HTTPConfig)
	default:
		return nil, fmt.Errorf("unknown mode: %s", cfg.Mode)
	}

	return c, nil
}

// Start brings up the mode. Starting a running collector is an error.
func (c *Collector) Start() error {
	c.mu.Lock()
	if c.status.Running {
		c.mu.Unlock()
		return fmt.Errorf("collector is already running")
	}

	if err := c.writer.EnsureDir(c.config.Profiles); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.status.Running = true
	c.status.Mode = c.config.Mode
	c.status.StartTime = time.Now()
	c.mu.Unlock()

	if err := c.mode.Start(c.ctx, c); err != nil {
		c.mu.Lock()
		c.status.Running = false
		c.mu.Unlock()
		return fmt.Errorf("failed to start mode: %w", err)
	}

	return nil
}

// Stop shuts the mode down. Stopping an idle collector is a no-op.
func (c *Collector) Stop() error {
	c.mu.Lock()
	running := c.status.Running
	c.mu.Unlock()
	if !running {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	if err := c.mode.Stop(); err != nil {
		c.addError(fmt.Sprintf("mode stop error: %v", err))
	}

	c.mu.Lock()
	c.status.Running = false
	c.mu.Unlock()

	return nil
}

// Status returns a copy of the current status.
func (c *Collector) Status() *Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := &Status{
		Running:       c.status.Running,
		Mode:          c.status.Mode,
		StartTime:     c.status.StartTime,
		SnapshotCount: make(map[ProfileType]int64, len(c.status.SnapshotCount)),
		LastSnapshot:  make(map[ProfileType]time.Time, len(c.status.LastSnapshot)),
		Errors:        append([]string(nil), c.status.Errors...),
	}
	for k, v := range c.status.SnapshotCount {
		out.SnapshotCount[k] = v
	}
	for k, v := range c.status.LastSnapshot {
		out.LastSnapshot[k] = v
	}

	return out
}

// Snapshot captures one profile of the given type. CPU profiles need a
// duration and go through SnapshotCPU instead.
func (c *Collector) Snapshot(pt ProfileType) ([]byte, error) {
	var buf bytes.Buffer

	switch pt {
	case ProfileCPU:
		return nil, fmt.Errorf("use SnapshotCPU for CPU profiles")
	case ProfileHeap:
		// A GC right before the snapshot keeps dead objects out of it.
		runtime.GC()
		if err := pprof.WriteHeapProfile(&buf); err != nil {
			return nil, fmt.Errorf("failed to write heap profile: %w", err)
		}
	case ProfileGoroutine, ProfileBlock, ProfileMutex, ProfileAllocs:
		if err := writeNamedProfile(&buf, string(pt)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown profile type: %s", pt)
	}

	return buf.Bytes(), nil
}

func writeNamedProfile(buf *bytes.Buffer, name string) error {
	p := pprof.Lookup(name)
	if p == nil {
		return fmt.Errorf("%s profile not found", name)
	}
	if err := p.WriteTo(buf, 0); err != nil {
		return fmt.Errorf("failed to write %s profile: %w", name, err)
	}
	return nil
}

// SnapshotCPU samples the CPU for the given duration. Cancelling ctx aborts
// the capture and discards the partial profile.
func (c *Collector) SnapshotCPU(ctx context.Context, duration time.Duration) ([]byte, error) {
	c.cpuMu.Lock()
	defer c.cpuMu.Unlock()

	var buf bytes.Buffer
	if err := pprof.StartCPUProfile(&buf); err != nil {
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}

	select {
	case <-time.After(duration):
	case <-ctx.Done():
		pprof.StopCPUProfile()
		return nil, ctx.Err()
	}

	pprof.StopCPUProfile()
	return buf.Bytes(), nil
}

// WriteSnapshot persists a captured profile and bumps the counters.
func (c *Collector) WriteSnapshot(pt ProfileType, data []byte) (string, error) {
	filePath, err := c.writer.Write(pt, data)
	if err != nil {
		c.addError(fmt.Sprintf("write %s error: %v", pt, err))
		return "", err
	}

	c.mu.Lock()
	c.status.SnapshotCount[pt]++
	c.status.LastSnapshot[pt] = time.Now()
	c.mu.Unlock()

	return filePath, nil
}

// Config returns the collector configuration.
func (c *Collector) Config() *Config {
	return c.config
}

// Writer returns the file writer.
func (c *Collector) Writer() *Writer {
	return c.writer
}

// addError records a timestamped error, keeping at most the last 100.
func (c *Collector) addError(err string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.status.Errors) >= 100 {
		c.status.Errors = c.status.Errors[1:]
	}
	c.status.Errors = append(c.status.Errors, fmt.Sprintf("[%s] %s", time.Now().Format(time.RFC3339), err))
}
