// Package registry owns the symmetric state the termination protocol
// mutates: per-group done flags, leader identities and arrival counters,
// the per-process termination token, the per-process completion timestamp
// and the root-hosted shutdown cells. The package only allocates,
// initializes and addresses storage; no call in it ever blocks.
package registry

import (
	apperrors "github.com/global-done/pkg/errors"
	"github.com/global-done/internal/substrate"
	"github.com/global-done/internal/topology"
)

// Field values. A group's done flag moves 0 -> 1 at most once; its leader
// field is written at most once, from LeaderUnset to a process rank. The
// token cell moves TokenPending -> TokenTerminated exactly once per run.
const (
	LeaderUnset     int64 = -1
	GroupPending    int64 = 0
	GroupDone       int64 = 1
	TokenPending    int64 = 0
	TokenTerminated int64 = 1
)

// Slots of the root-hosted coordination region.
const (
	rootSlotStatsOnce = 0
	rootSlotExitAcks  = 1
	rootSlots         = 2
)

// Arena holds every symmetric region of one termination episode, indexed by
// group reference. Group records live at the group's anchor process; write
// authority over them belongs to whichever process is elected leader, an
// explicit split the accessors preserve by always addressing the anchor.
type Arena struct {
	topo *topology.Topology

	done   []substrate.Region // per level, one slot per group
	leader []substrate.Region
	count  []substrate.Region // arrival counters (leaf: members, internal: children)
	bcast  []substrate.Region // downward broadcast tokens, one slot per group

	token   substrate.Region // per-process termination token, 1 slot
	elapsed substrate.Region // per-process completion timestamp in micros, 1 slot
	root    substrate.Region // root-hosted stats-once flag and exit ledger
}

// New collectively allocates the arena for the given topology and leaves
// every field initialized. All processes must call it. Allocation failure
// is returned for the caller to escalate into a whole-job abort.
func New(h substrate.Handle, topo *topology.Topology) (*Arena, error) {
	a := &Arena{topo: topo}

	for l := 0; l < topo.Levels; l++ {
		ng := topo.Groups(l)
		for _, dst := range []*[]substrate.Region{&a.done, &a.leader, &a.count, &a.bcast} {
			r, err := h.Alloc(ng)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeAllocError, "group record allocation failed", err)
			}
			*dst = append(*dst, r)
		}
	}

	var err error
	if a.token, err = h.Alloc(1); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAllocError, "token allocation failed", err)
	}
	if a.elapsed, err = h.Alloc(1); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAllocError, "timestamp allocation failed", err)
	}
	if a.root, err = h.Alloc(rootSlots); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAllocError, "root ledger allocation failed", err)
	}

	a.Reset(h)
	return a, nil
}

// Reset reinitializes every locally hosted field and rendezvouses, so a new
// episode starts from clean state on all processes. Each process writes
// only its own copies; the closing barrier makes the wipe globally visible
// before anyone proceeds.
func (a *Arena) Reset(h substrate.Handle) {
	me := h.Rank()
	for l := 0; l < a.topo.Levels; l++ {
		for g := 0; g < a.topo.Groups(l); g++ {
			a.done[l].Put(me, g, GroupPending)
			a.leader[l].Put(me, g, LeaderUnset)
			a.count[l].Put(me, g, 0)
			a.bcast[l].Put(me, g, TokenPending)
		}
	}
	a.token.Put(me, 0, TokenPending)
	a.elapsed.Put(me, 0, 0)
	a.root.Put(me, rootSlotStatsOnce, 0)
	a.root.Put(me, rootSlotExitAcks, 0)
	h.Quiet()
	h.Barrier()
}

// Topology returns the topology the arena was sized from.
func (a *Arena) Topology() *topology.Topology {
	return a.topo
}

// IsDone reads a group's done flag at its anchor.
func (a *Arena) IsDone(g topology.GroupRef) bool {
	return a.done[g.Level].Get(a.topo.Anchor(g), g.Index) == GroupDone
}

// ClaimDone attempts the 0 -> 1 transition of a group's done flag at its
// anchor. It returns true for exactly one caller per group.
func (a *Arena) ClaimDone(g topology.GroupRef) bool {
	return a.done[g.Level].CompareSwap(a.topo.Anchor(g), g.Index, GroupPending, GroupDone) == GroupPending
}

// Leader reads a group's elected leader, or LeaderUnset.
func (a *Arena) Leader(g topology.GroupRef) int64 {
	return a.leader[g.Level].Get(a.topo.Anchor(g), g.Index)
}

// SetLeader records pe as the group's leader at the anchor. Only the
// process that won the group's election may call it.
func (a *Arena) SetLeader(g topology.GroupRef, pe int) {
	a.leader[g.Level].Put(a.topo.Anchor(g), g.Index, int64(pe))
}

// Arrive performs one atomic arrival on the group's counter at the anchor
// and returns the prior count.
func (a *Arena) Arrive(g topology.GroupRef) int64 {
	return a.count[g.Level].FetchInc(a.topo.Anchor(g), g.Index)
}

// Arrivals reads the group's arrival counter.
func (a *Arena) Arrivals(g topology.GroupRef) int64 {
	return a.count[g.Level].Get(a.topo.Anchor(g), g.Index)
}

// RootDoneRegion exposes the done region of the top level so the root
// process can block on its locally hosted root flag.
func (a *Arena) RootDoneRegion() substrate.Region {
	return a.done[a.topo.Levels-1]
}

// Token returns the per-process termination token region.
func (a *Arena) Token() substrate.Region {
	return a.token
}

// PublishToken drives pe's token cell to its terminal value.
func (a *Arena) PublishToken(pe int) {
	a.token.Put(pe, 0, TokenTerminated)
}

// BcastToken addresses the downward broadcast token of a group.
func (a *Arena) BcastToken(g topology.GroupRef) substrate.Region {
	return a.bcast[g.Level]
}

// SetBcastToken sets a group's broadcast token at its anchor.
func (a *Arena) SetBcastToken(g topology.GroupRef) {
	a.bcast[g.Level].Put(a.topo.Anchor(g), g.Index, TokenTerminated)
}

// RecordElapsed stores the caller's completion timestamp (microseconds from
// episode start) in its own copy.
func (a *Arena) RecordElapsed(me int, micros int64) {
	a.elapsed.Put(me, 0, micros)
}

// ElapsedOf reads pe's completion timestamp.
func (a *Arena) ElapsedOf(pe int) int64 {
	return a.elapsed.Get(pe, 0)
}

// ClaimStatsOnce wins the right to emit the aggregate statistics line.
// The guard is a root-hosted compare-and-swap, so the side effect happens
// exactly once regardless of which code path reaches it first.
func (a *Arena) ClaimStatsOnce() bool {
	return a.root.CompareSwap(a.topo.RootPE(), rootSlotStatsOnce, 0, 1) == 0
}

// AckExit increments the root-hosted exit ledger and returns the prior
// count. Every non-root process calls it exactly once during shutdown.
func (a *Arena) AckExit() int64 {
	return a.root.FetchInc(a.topo.RootPE(), rootSlotExitAcks)
}

// ExitAcks reads the exit ledger.
func (a *Arena) ExitAcks() int64 {
	return a.root.Get(a.topo.RootPE(), rootSlotExitAcks)
}

// ExitLedgerRegion exposes the root region so the root process can block
// until the ledger reaches its terminal count.
func (a *Arena) ExitLedgerRegion() substrate.Region {
	return a.root
}

// ExitLedgerSlot is the slot of the exit ledger within ExitLedgerRegion.
const ExitLedgerSlot = rootSlotExitAcks
