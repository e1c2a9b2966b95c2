package detector

import (
	"github.com/global-done/internal/registry"
	"github.com/global-done/internal/substrate"
	"github.com/global-done/pkg/collections"
	apperrors "github.com/global-done/pkg/errors"
)

// naiveSlots of the root-hosted cells backing the scan variant.
const (
	naiveSlotExitAcks = 0
	naiveSlots        = 1
)

// NaiveArena is the symmetric state of the linear-scan baseline: one done
// flag per process, one token per process and a root-hosted exit ledger.
type NaiveArena struct {
	npes  int
	flags substrate.Region
	token substrate.Region
	root  substrate.Region
}

// NewNaiveArena collectively allocates the baseline's state. All processes
// must call it.
func NewNaiveArena(h substrate.Handle) (*NaiveArena, error) {
	a := &NaiveArena{npes: h.Size()}

	var err error
	if a.flags, err = h.Alloc(1); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAllocError, "flag allocation failed", err)
	}
	if a.token, err = h.Alloc(1); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAllocError, "token allocation failed", err)
	}
	if a.root, err = h.Alloc(naiveSlots); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAllocError, "root ledger allocation failed", err)
	}

	a.Reset(h)
	return a, nil
}

// Reset reinitializes the locally hosted cells and rendezvouses.
func (a *NaiveArena) Reset(h substrate.Handle) {
	me := h.Rank()
	a.flags.Put(me, 0, 0)
	a.token.Put(me, 0, registry.TokenPending)
	a.root.Put(me, naiveSlotExitAcks, 0)
	h.Quiet()
	h.Barrier()
}

// RunNaive executes one episode of the linear-scan baseline. Every process
// raises its own done flag; the root repeatedly sweeps all flags by remote
// reads until it has seen every one, then releases the token flat and
// collects acknowledgments. The sweep skips flags already seen, tracked in
// a local bitset, so each flag is fetched remotely only until it first
// reads done.
func (d *Detector) RunNaive(h substrate.Handle, a *NaiveArena) error {
	me := h.Rank()

	a.flags.Put(me, 0, 1)
	h.Quiet()

	if me == 0 {
		d.scan(h, a)
		h.Quiet()
		for pe := 0; pe < a.npes; pe++ {
			a.token.Put(pe, 0, registry.TokenTerminated)
		}
		h.Quiet()
		if a.npes > 1 {
			a.root.WaitUntil(naiveSlotExitAcks, substrate.CmpGE, int64(a.npes-1))
		}
		return nil
	}

	a.token.WaitUntil(0, substrate.CmpEQ, registry.TokenTerminated)
	h.Quiet()
	a.root.FetchInc(0, naiveSlotExitAcks)
	return nil
}

// scan blocks the root until every process's done flag reads set.
func (d *Detector) scan(h substrate.Handle, a *NaiveArena) {
	seen := collections.NewBitset(a.npes)
	for seen.Count() < a.npes {
		for pe := 0; pe < a.npes; pe++ {
			if seen.Test(pe) {
				continue
			}
			if a.flags.Get(pe, 0) == 1 {
				seen.Set(pe)
			}
		}
		if seen.Count() < a.npes {
			d.clock.Sleep(d.poll)
		}
	}
}
