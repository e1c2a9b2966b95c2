// Package detector implements hierarchical termination detection: upward
// fan-in through leader election level by level, a one-time side effect at
// the root, downward fan-out of the termination token, and an
// acknowledgment-counted shutdown. One call to Run per process per episode.
package detector

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/global-done/internal/election"
	"github.com/global-done/internal/registry"
	"github.com/global-done/internal/statistics"
	"github.com/global-done/internal/substrate"
	"github.com/global-done/pkg/collections"
	apperrors "github.com/global-done/pkg/errors"
	"github.com/global-done/pkg/model"
	"github.com/global-done/pkg/utils"
)

// State is a process's position in the shutdown state machine. Non-root
// processes move Running -> Aggregating -> AwaitingSignal -> Acknowledging
// -> Exited; the root moves Running -> Aggregating -> SideEffect ->
// Releasing -> AwaitingAcks -> Exited.
type State int

const (
	StateRunning State = iota
	StateAggregating
	StateAwaitingSignal
	StateAcknowledging
	StateSideEffect
	StateReleasing
	StateAwaitingAcks
	StateExited
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateAggregating:
		return "aggregating"
	case StateAwaitingSignal:
		return "awaiting_signal"
	case StateAcknowledging:
		return "acknowledging"
	case StateSideEffect:
		return "side_effect"
	case StateReleasing:
		return "releasing"
	case StateAwaitingAcks:
		return "awaiting_acks"
	case StateExited:
		return "exited"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const defaultPollInterval = 50 * time.Microsecond

// Detector runs termination episodes under a fixed election policy and
// broadcast topology. It holds no per-episode state; episode state lives
// in the registry arena, so one Detector serves any number of episodes.
type Detector struct {
	policy election.Policy
	bcast  model.Broadcast

	clock  utils.Clock
	logger utils.Logger
	poll   time.Duration
	sink   io.Writer
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock substitutes the clock used for poll backoff.
func WithClock(c utils.Clock) Option {
	return func(d *Detector) { d.clock = c }
}

// WithLogger sets the trace logger.
func WithLogger(l utils.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// WithPollInterval sets the backoff between polls at wait points.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Detector) { d.poll = interval }
}

// WithStatsSink redirects the aggregate statistics line.
func WithStatsSink(w io.Writer) Option {
	return func(d *Detector) { d.sink = w }
}

// New builds a Detector for the given policy and broadcast topology.
func New(policy model.Policy, bcast model.Broadcast, opts ...Option) (*Detector, error) {
	p, err := election.New(policy)
	if err != nil {
		return nil, err
	}
	if bcast != model.BroadcastFlat && bcast != model.BroadcastTree {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "unknown broadcast topology %q", bcast)
	}

	d := &Detector{
		policy: p,
		bcast:  bcast,
		clock:  utils.NewRealClock(),
		logger: &utils.NullLogger{},
		poll:   defaultPollInterval,
		sink:   os.Stdout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run executes one termination episode for the calling process. It is
// called once the process judges its local work complete; elapsed is the
// caller's completion latency from episode start and feeds the aggregate
// line the root emits. Run returns only when it is safe for the caller to
// stop issuing one-sided operations.
func (d *Detector) Run(h substrate.Handle, a *registry.Arena, elapsed time.Duration) error {
	me := h.Rank()
	a.RecordElapsed(me, elapsed.Microseconds())
	h.Quiet()

	d.trace(me, StateAggregating)
	d.aggregate(h, a)

	if me == a.Topology().RootPE() {
		return d.runRoot(h, a)
	}

	d.trace(me, StateAwaitingSignal)
	d.awaitSignal(h, a)

	d.trace(me, StateAcknowledging)
	h.Quiet()
	a.AckExit()

	d.trace(me, StateExited)
	return nil
}

// runRoot is the root's tail of the episode: the one-time side effect,
// token release and the acknowledgment wait.
func (d *Detector) runRoot(h substrate.Handle, a *registry.Arena) error {
	me := h.Rank()
	d.awaitRootDone(h, a)

	d.trace(me, StateSideEffect)
	if a.ClaimStatsOnce() {
		d.emitStats(h, a)
	}

	d.trace(me, StateReleasing)
	h.Quiet()
	d.broadcast(h, a)

	d.trace(me, StateAwaitingAcks)
	if n := h.Size(); n > 1 {
		a.ExitLedgerRegion().WaitUntil(registry.ExitLedgerSlot, substrate.CmpGE, int64(n-1))
	}

	d.trace(me, StateExited)
	return nil
}

// emitStats gathers every process's completion timestamp and prints the
// single aggregate line. Timestamps are visible here: each process fences
// its own before arriving, and every arrival precedes root completion.
func (d *Detector) emitStats(h substrate.Handle, a *registry.Arena) {
	samples := collections.GetInt64Slice()
	defer collections.PutInt64Slice(samples)

	for pe := 0; pe < h.Size(); pe++ {
		*samples = append(*samples, a.ElapsedOf(pe))
	}
	fmt.Fprintln(d.sink, statistics.FormatLine(statistics.Summarize(*samples)))
}

func (d *Detector) trace(pe int, s State) {
	d.logger.Debug("pe %d -> %s", pe, s)
}
