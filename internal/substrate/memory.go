package substrate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/global-done/pkg/errors"
	"github.com/global-done/pkg/parallel"
	"github.com/global-done/pkg/utils"
)

// defaultHeapSlots caps the total symmetric slots a job may allocate per
// process. Generous for any realistic topology; the cap exists so that the
// fatal-allocation path is reachable and testable.
const defaultHeapSlots = 1 << 20

// defaultPollInterval is the backoff between predicate checks in WaitUntil
// and Barrier.
const defaultPollInterval = 50 * time.Microsecond

// peExit is the panic payload used to unwind a process goroutine when the
// job exits. It never escapes Job.Run.
type peExit struct {
	code int
}

// Job is an in-process SPMD job: Size processes, each running as one
// goroutine over shared memory. It implements the symmetric-memory model of
// the substrate interfaces with sync/atomic, which makes Quiet a no-op
// (every Put is immediately coherent) while keeping call sites honest about
// where a real one-sided substrate would need a fence.
type Job struct {
	npes     int
	clock    utils.Clock
	logger   utils.Logger
	poll     time.Duration
	heapCap  int
	mu       sync.Mutex
	regions  []*memRegion
	slotsUse int

	exitArmed atomic.Bool
	exitCode  atomic.Int64

	barCount atomic.Int64
	barPhase atomic.Int64
}

// JobOption customizes a Job.
type JobOption func(*Job)

// WithClock injects the clock used for poll backoff.
func WithClock(c utils.Clock) JobOption {
	return func(j *Job) { j.clock = c }
}

// WithLogger injects the job logger.
func WithLogger(l utils.Logger) JobOption {
	return func(j *Job) { j.logger = l }
}

// WithPollInterval sets the backoff between wait-predicate checks.
func WithPollInterval(d time.Duration) JobOption {
	return func(j *Job) {
		if d > 0 {
			j.poll = d
		}
	}
}

// WithHeapSlots caps the total symmetric slots per process.
func WithHeapSlots(n int) JobOption {
	return func(j *Job) {
		if n > 0 {
			j.heapCap = n
		}
	}
}

// NewJob creates an in-process job of npes processes.
func NewJob(npes int, opts ...JobOption) (*Job, error) {
	if npes < 1 {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "process count must be at least 1, got %d", npes)
	}
	j := &Job{
		npes:    npes,
		clock:   utils.NewRealClock(),
		logger:  &utils.NullLogger{},
		poll:    defaultPollInterval,
		heapCap: defaultHeapSlots,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Size returns the job's process count.
func (j *Job) Size() int {
	return j.npes
}

// ExitCode returns the code the job exited with, 0 if it ran to completion.
func (j *Job) ExitCode() int {
	return int(j.exitCode.Load())
}

// Run executes main once per process, each on its own goroutine, and blocks
// until every process has returned or the job exited. It returns the job
// exit code and the first error returned by any process main.
func (j *Job) Run(ctx context.Context, main func(Handle) error) (int, error) {
	ranks := make([]int, j.npes)
	for i := range ranks {
		ranks[i] = i
	}

	// One worker per rank: process mains block on each other (barriers,
	// waits), so they must all be scheduled concurrently.
	cfg := parallel.DefaultPoolConfig().WithWorkers(j.npes)
	_, err := parallel.ForEach(ctx, ranks, cfg, func(_ context.Context, rank int) (runErr error) {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(peExit); ok {
					runErr = nil
					return
				}
				panic(r)
			}
		}()
		return main(&memHandle{job: j, rank: rank})
	})

	code := int(j.exitCode.Load())
	if code != 0 {
		return code, apperrors.Newf(apperrors.CodeAbortError, "job exited with code %d", code)
	}
	return 0, err
}

// arm records the job exit code exactly once.
func (j *Job) arm(code int) {
	if j.exitArmed.CompareAndSwap(false, true) {
		j.exitCode.Store(int64(code))
	}
}

// checkExit unwinds the calling process goroutine if the job has exited.
func (j *Job) checkExit() {
	if j.exitArmed.Load() {
		panic(peExit{code: int(j.exitCode.Load())})
	}
}

// getRegion returns region idx, creating it on first arrival. Symmetric
// discipline guarantees idx <= len(regions) for a correct program.
func (j *Job) getRegion(idx, slots int) (*memRegion, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if idx < len(j.regions) {
		r := j.regions[idx]
		if r.slots != slots {
			return nil, apperrors.Newf(apperrors.CodeAllocError,
				"asymmetric allocation: region %d has %d slots, caller wants %d", idx, r.slots, slots)
		}
		return r, nil
	}
	if idx > len(j.regions) {
		return nil, apperrors.Newf(apperrors.CodeAllocError, "out-of-order allocation of region %d", idx)
	}
	if slots < 1 {
		return nil, apperrors.Newf(apperrors.CodeAllocError, "region slot count must be positive, got %d", slots)
	}
	if j.slotsUse+slots > j.heapCap {
		return nil, apperrors.Newf(apperrors.CodeAllocError,
			"symmetric heap exhausted: %d slots in use, %d requested, cap %d", j.slotsUse, slots, j.heapCap)
	}

	r := &memRegion{
		job:   j,
		slots: slots,
		data:  make([]int64, j.npes*slots),
	}
	j.regions = append(j.regions, r)
	j.slotsUse += slots
	return r, nil
}

// memHandle is one process's view of an in-process Job.
type memHandle struct {
	job       *Job
	rank      int
	allocNext int
}

func (h *memHandle) Rank() int { return h.rank }

func (h *memHandle) Size() int { return h.job.npes }

func (h *memHandle) Alloc(slots int) (Region, error) {
	h.job.checkExit()
	idx := h.allocNext
	h.allocNext++
	mem, err := h.job.getRegion(idx, slots)
	if err != nil {
		return nil, err
	}
	return &boundRegion{mem: mem, rank: h.rank}, nil
}

// Barrier is a phase-counted rendezvous. The last arriver resets the count
// and advances the phase; everyone else polls the phase with backoff.
func (h *memHandle) Barrier() {
	j := h.job
	j.checkExit()
	phase := j.barPhase.Load()
	if j.barCount.Add(1) == int64(j.npes) {
		j.barCount.Store(0)
		j.barPhase.Add(1)
		return
	}
	for j.barPhase.Load() == phase {
		j.checkExit()
		j.clock.Sleep(j.poll)
	}
}

// Quiet is the visibility fence. The in-process backing store is already
// sequentially consistent through sync/atomic, so there is nothing to
// flush; the call still checks for job exit so fences stay cancellation
// points like every other substrate operation.
func (h *memHandle) Quiet() {
	h.job.checkExit()
}

func (h *memHandle) Exit(code int) {
	h.job.logger.Debug("PE %d requested job exit with code %d", h.rank, code)
	h.job.arm(code)
	panic(peExit{code: code})
}

// memRegion backs one symmetric object with a single shared array,
// npes*slots long, indexed rank-major. Handles see it through boundRegion
// so local waits know which copy is theirs.
type memRegion struct {
	job   *Job
	slots int
	data  []int64
}

func (r *memRegion) cell(pe, slot int) *int64 {
	return &r.data[pe*r.slots+slot]
}

// boundRegion is a memRegion viewed from one process.
type boundRegion struct {
	mem  *memRegion
	rank int
}

func (r *boundRegion) Slots() int { return r.mem.slots }

func (r *boundRegion) Get(pe, slot int) int64 {
	r.mem.job.checkExit()
	return atomic.LoadInt64(r.mem.cell(pe, slot))
}

func (r *boundRegion) Put(pe, slot int, v int64) {
	r.mem.job.checkExit()
	atomic.StoreInt64(r.mem.cell(pe, slot), v)
}

func (r *boundRegion) FetchInc(pe, slot int) int64 {
	r.mem.job.checkExit()
	return atomic.AddInt64(r.mem.cell(pe, slot), 1) - 1
}

func (r *boundRegion) CompareSwap(pe, slot int, old, new int64) int64 {
	r.mem.job.checkExit()
	addr := r.mem.cell(pe, slot)
	for {
		cur := atomic.LoadInt64(addr)
		if cur != old {
			return cur
		}
		if atomic.CompareAndSwapInt64(addr, old, new) {
			return old
		}
	}
}

func (r *boundRegion) WaitUntil(slot int, cmp Compare, v int64) {
	j := r.mem.job
	addr := r.mem.cell(r.rank, slot)
	for {
		j.checkExit()
		if satisfied(cmp, atomic.LoadInt64(addr), v) {
			return
		}
		j.clock.Sleep(j.poll)
	}
}
