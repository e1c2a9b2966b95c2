// Package bench times the termination detector against its baselines. A
// harness runs warmup and measured episodes for each configured mode
// inside a single job, aggregates per-episode latencies, and optionally
// persists and uploads the resulting report.
package bench

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/global-done/internal/collective"
	"github.com/global-done/internal/detector"
	"github.com/global-done/internal/registry"
	"github.com/global-done/internal/repository"
	"github.com/global-done/internal/statistics"
	"github.com/global-done/internal/storage"
	"github.com/global-done/internal/substrate"
	"github.com/global-done/internal/topology"
	"github.com/global-done/pkg/compression"
	"github.com/global-done/pkg/config"
	"github.com/global-done/pkg/model"
	"github.com/global-done/pkg/utils"
	"github.com/global-done/pkg/writer"
)

// Harness runs benchmark episodes for the configured modes.
type Harness struct {
	cfg    *config.Config
	logger utils.Logger
	repo   repository.RunRepository
	store  storage.Storage
	sink   io.Writer
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the harness logger.
func WithLogger(l utils.Logger) Option {
	return func(b *Harness) { b.logger = l }
}

// WithRepository enables run-history persistence.
func WithRepository(r repository.RunRepository) Option {
	return func(b *Harness) { b.repo = r }
}

// WithStorage enables report upload.
func WithStorage(s storage.Storage) Option {
	return func(b *Harness) { b.store = s }
}

// WithStatsSink directs the detector's completion-latency line to w.
// Benchmarks discard it by default to keep timing loops quiet.
func WithStatsSink(w io.Writer) Option {
	return func(b *Harness) { b.sink = w }
}

// New builds a Harness from validated configuration.
func New(cfg *config.Config, opts ...Option) *Harness {
	b := &Harness{
		cfg:    cfg,
		logger: &utils.NullLogger{},
		sink:   io.Discard,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes every configured mode and returns the report. Episode
// latency is measured at process 0, from the end of its simulated work to
// the end of the episode, so the number captures how long global
// completion takes to detect once the observer itself is done.
func (b *Harness) Run(ctx context.Context) (*model.BenchReport, error) {
	started := time.Now()

	ctx, sp := otel.Tracer("bench").Start(ctx, "bench.run",
		oteltrace.WithAttributes(attribute.Int("npes", b.cfg.Runtime.NPEs)))
	defer sp.End()

	modes := make([]model.Mode, 0, len(b.cfg.Bench.Modes))
	for _, s := range b.cfg.Bench.Modes {
		m, err := model.ParseMode(s)
		if err != nil {
			return nil, err
		}
		modes = append(modes, m)
	}
	policy, err := model.ParsePolicy(b.cfg.Detect.Policy)
	if err != nil {
		return nil, err
	}
	bcast, err := model.ParseBroadcast(b.cfg.Detect.Broadcast)
	if err != nil {
		return nil, err
	}

	npes := b.cfg.Runtime.NPEs
	topo, err := topology.Plan(npes, b.cfg.Detect.LeafSize, b.cfg.Detect.BranchFactor)
	if err != nil {
		return nil, err
	}

	poll := time.Duration(b.cfg.Runtime.PollIntervalUs) * time.Microsecond
	det, err := detector.New(policy, bcast,
		detector.WithLogger(b.logger),
		detector.WithPollInterval(poll),
		detector.WithStatsSink(b.sink),
	)
	if err != nil {
		return nil, err
	}

	job, err := substrate.NewJob(npes,
		substrate.WithLogger(b.logger),
		substrate.WithPollInterval(poll),
		substrate.WithHeapSlots(b.cfg.Runtime.HeapSlots),
	)
	if err != nil {
		return nil, err
	}

	warmup := b.cfg.Bench.Warmup
	episodes := b.cfg.Bench.Episodes
	durations := make(map[model.Mode][]int64, len(modes))

	timer := utils.NewTimer("bench", utils.WithLogger(b.logger))
	jobPhase := timer.Start("episodes")

	code, err := job.Run(ctx, func(h substrate.Handle) error {
		arena, jobErr := registry.New(h, topo)
		if jobErr != nil {
			return jobErr
		}
		naive, jobErr := detector.NewNaiveArena(h)
		if jobErr != nil {
			return jobErr
		}
		comm, jobErr := collective.NewMaxComm(h)
		if jobErr != nil {
			return jobErr
		}

		rng := rand.New(rand.NewSource(b.cfg.Bench.Seed + int64(h.Rank())))

		for _, mode := range modes {
			for ep := 0; ep < warmup+episodes; ep++ {
				h.Barrier()

				workStart := time.Now()
				b.simulateWork(rng)
				workDur := time.Since(workStart)
				detectStart := time.Now()

				switch mode {
				case model.ModeDetector:
					if jobErr := det.Run(h, arena, workDur); jobErr != nil {
						return jobErr
					}
				case model.ModeNaive:
					if jobErr := det.RunNaive(h, naive); jobErr != nil {
						return jobErr
					}
				case model.ModeAllReduce:
					comm.AllReduceMax(h, int64(1))
				}

				h.Barrier()
				if h.Rank() == 0 && ep >= warmup {
					durations[mode] = append(durations[mode], time.Since(detectStart).Microseconds())
				}

				switch mode {
				case model.ModeDetector:
					arena.Reset(h)
				case model.ModeNaive:
					naive.Reset(h)
				}
			}
		}
		return nil
	})
	jobPhase.Stop()
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("benchmark job exited with code %d", code)
	}

	report := b.buildReport(modes, durations, started)
	persistPhase := timer.Start("persist")
	if err := b.persist(ctx, report, durations); err != nil {
		return nil, err
	}
	persistPhase.Stop()

	b.logger.Debug("%s", timer.Summary())
	return report, nil
}

// simulateWork sleeps for a pseudo-random span inside the configured work
// window. The generator is seeded per process, so a given seed reproduces
// the same completion order.
func (b *Harness) simulateWork(rng *rand.Rand) {
	span := b.cfg.Bench.WorkMaxMs - b.cfg.Bench.WorkMinMs
	ms := b.cfg.Bench.WorkMinMs
	if span > 0 {
		ms += rng.Intn(span + 1)
	}
	if ms > 0 {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
}

func (b *Harness) buildReport(modes []model.Mode, durations map[model.Mode][]int64, started time.Time) *model.BenchReport {
	report := &model.BenchReport{
		RunUUID: uuid.NewString(),
		Config: model.RunConfig{
			NPEs:         b.cfg.Runtime.NPEs,
			LeafSize:     b.cfg.Detect.LeafSize,
			BranchFactor: b.cfg.Detect.BranchFactor,
			Policy:       model.Policy(b.cfg.Detect.Policy),
			Broadcast:    model.Broadcast(b.cfg.Detect.Broadcast),
		},
		StartedAt: started,
		Duration:  time.Since(started).String(),
	}

	for _, mode := range modes {
		samples := durations[mode]
		result := model.ModeResult{
			Mode:     mode,
			Episodes: make([]model.EpisodeResult, len(samples)),
			Summary:  statistics.Summarize(samples),
		}
		for i, us := range samples {
			result.Episodes[i] = model.EpisodeResult{Index: i, DurationUs: us}
		}
		report.Results = append(report.Results, result)

		b.logger.Info("mode %s: %s", mode, statistics.FormatLine(result.Summary))
	}
	return report
}

// persist saves run records, writes the report file and uploads the
// compressed report, each step only where the harness was given a
// destination.
func (b *Harness) persist(ctx context.Context, report *model.BenchReport, durations map[model.Mode][]int64) error {
	log := b.logger.WithField("run", report.RunUUID)
	if b.repo != nil {
		for _, result := range report.Results {
			rec := &model.RunRecord{
				RunUUID:      report.RunUUID,
				Mode:         result.Mode,
				NPEs:         report.Config.NPEs,
				LeafSize:     report.Config.LeafSize,
				BranchFactor: report.Config.BranchFactor,
				Policy:       report.Config.Policy,
				Broadcast:    report.Config.Broadcast,
				Episodes:     result.Summary.Count,
				MinUs:        result.Summary.MinUs,
				AvgUs:        result.Summary.AvgUs,
				MaxUs:        result.Summary.MaxUs,
				DurationsUs:  durations[result.Mode],
			}
			if err := b.repo.SaveRun(ctx, rec); err != nil {
				return fmt.Errorf("failed to persist run record: %w", err)
			}
		}
		log.Debug("saved %d run records", len(report.Results))
	}

	if b.cfg.Bench.OutputDir != "" {
		if err := b.cfg.EnsureOutputDir(); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		w := writer.NewPrettyJSONWriter[*model.BenchReport]()
		if err := w.WriteToFile(report, b.cfg.ReportPath(report.RunUUID)); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		log.Debug("report written to %s", b.cfg.ReportPath(report.RunUUID))
	}

	if b.store != nil {
		if err := b.upload(ctx, report); err != nil {
			return err
		}
	}
	return nil
}

// upload packs the JSON report with the configured codec and pushes it to
// object storage.
func (b *Harness) upload(ctx context.Context, report *model.BenchReport) error {
	var buf bytes.Buffer
	if err := writer.NewJSONWriter[*model.BenchReport]().Write(report, &buf); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	codec, err := compression.ParseType(b.cfg.Bench.Compression)
	if err != nil {
		return err
	}
	comp, err := compression.New(codec, compression.LevelDefault)
	if err != nil {
		return fmt.Errorf("failed to create compressor: %w", err)
	}
	defer compression.Close(comp)

	packed, err := comp.Compress(buf.Bytes())
	if err != nil {
		return fmt.Errorf("failed to compress report: %w", err)
	}

	key := "reports/" + report.RunUUID + ".json" + codec.Extension()
	if err := b.store.Upload(ctx, key, bytes.NewReader(packed)); err != nil {
		return fmt.Errorf("failed to upload report: %w", err)
	}
	b.logger.Info("report uploaded to %s", key)
	return nil
}
