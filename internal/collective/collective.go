// Package collective provides binomial-tree reductions over the one-sided
// substrate. The benchmark harness uses AllReduceMax as the conventional
// alternative to hierarchical termination detection: every process
// contributes a "done" value and learns the global maximum.
package collective

import (
	"math/bits"

	"github.com/global-done/internal/substrate"
	apperrors "github.com/global-done/pkg/errors"
)

// MaxComm is the symmetric communication state for max reductions. Signal
// cells are monotonic call counters rather than flags, so the same comm
// serves any number of calls without a reset, as long as every process
// makes the same calls in the same order.
type MaxComm struct {
	rounds int

	inbox   substrate.Region // upward partials, one slot per round
	ready   substrate.Region // upward signal counters
	down    substrate.Region // downward results, one slot per round
	release substrate.Region // downward signal counters

	upSeq   int64
	downSeq int64
}

// NewMaxComm collectively allocates reduction state for the job. All
// processes must call it.
func NewMaxComm(h substrate.Handle) (*MaxComm, error) {
	c := &MaxComm{rounds: bits.Len(uint(h.Size() - 1))}

	slots := c.rounds
	if slots == 0 {
		slots = 1
	}
	for _, dst := range []*substrate.Region{&c.inbox, &c.ready, &c.down, &c.release} {
		r, err := h.Alloc(slots)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeAllocError, "reduction state allocation failed", err)
		}
		*dst = r
	}
	return c, nil
}

// ReduceMax folds every process's contribution to the global maximum at
// process 0. The result is only valid where ok is true. Collective.
func (c *MaxComm) ReduceMax(h substrate.Handle, v int64) (result int64, ok bool) {
	me, n := h.Rank(), h.Size()
	c.upSeq++

	acc := v
	for r := 0; r < c.rounds; r++ {
		bit := 1 << r
		if me&bit != 0 {
			peer := me - bit
			c.inbox.Put(peer, r, acc)
			h.Quiet()
			c.ready.FetchInc(peer, r)
			return 0, false
		}
		if me+bit < n {
			c.ready.WaitUntil(r, substrate.CmpGE, c.upSeq)
			if got := c.inbox.Get(me, r); got > acc {
				acc = got
			}
		}
	}
	return acc, me == 0
}

// BroadcastMax disseminates process 0's value down the binomial tree and
// returns it on every process. Non-root inputs are ignored. Collective.
func (c *MaxComm) BroadcastMax(h substrate.Handle, v int64) int64 {
	me, n := h.Rank(), h.Size()
	c.downSeq++

	val := v
	for r := c.rounds - 1; r >= 0; r-- {
		bit := 1 << r
		if me&(bit-1) != 0 {
			continue
		}
		if me&bit != 0 {
			c.release.WaitUntil(r, substrate.CmpGE, c.downSeq)
			val = c.down.Get(me, r)
			continue
		}
		if me+bit < n {
			c.down.Put(me+bit, r, val)
			h.Quiet()
			c.release.FetchInc(me+bit, r)
		}
	}
	return val
}

// AllReduceMax returns the global maximum on every process. Collective.
func (c *MaxComm) AllReduceMax(h substrate.Handle, v int64) int64 {
	result, _ := c.ReduceMax(h, v)
	return c.BroadcastMax(h, result)
}
