package detector

import (
	"github.com/global-done/internal/registry"
	"github.com/global-done/internal/substrate"
	"github.com/global-done/internal/topology"
)

// aggregate performs the caller's upward fan-in contribution. The leaf
// arrival always happens exactly once; what follows depends on the policy.
// Under last-arrival a win starts an unbroken promotion chain that climbs
// until the caller first fails to arrive last. Under first-observer the
// arrival only feeds the leaf counter and claims happen opportunistically
// from the wait loops, where the caller keeps observing every level it
// belongs to.
func (d *Detector) aggregate(h substrate.Handle, a *registry.Arena) {
	leaf := a.Topology().GroupOf(h.Rank(), 0)
	if d.policy.Arrive(h, a, leaf) {
		d.climb(h, a, leaf)
	}
	d.observeOwned(h, a)
}

// climb promotes the caller one level at a time for as long as it keeps
// winning. Each parent arrival records the completion of the child group
// the caller just led.
func (d *Detector) climb(h substrate.Handle, a *registry.Arena, g topology.GroupRef) {
	topo := a.Topology()
	for !topo.IsRoot(g) {
		g = topo.Parent(g)
		if !d.policy.Arrive(h, a, g) {
			return
		}
		d.logger.Debug("pe %d promoted to leader of level %d group %d", h.Rank(), g.Level, g.Index)
	}
}

// observeOwned gives a polling policy one claim attempt at every group the
// caller belongs to, from the leaves up so a claim can cascade within a
// single pass. Non-polling policies make no claims here.
func (d *Detector) observeOwned(h substrate.Handle, a *registry.Arena) {
	if !d.policy.Polls() {
		return
	}
	topo := a.Topology()
	for l := 0; l < topo.Levels; l++ {
		d.policy.Observe(h, a, topo.GroupOf(h.Rank(), l))
	}
}

// awaitRootDone blocks the root process until the root group's done flag,
// hosted locally, is set. Polling policies keep contributing claims while
// waiting; last-arrival has nothing left to do and blocks outright.
func (d *Detector) awaitRootDone(h substrate.Handle, a *registry.Arena) {
	root := a.Topology().Root()
	if !d.policy.Polls() {
		a.RootDoneRegion().WaitUntil(root.Index, substrate.CmpEQ, registry.GroupDone)
		return
	}
	for !a.IsDone(root) {
		d.observeOwned(h, a)
		d.clock.Sleep(d.poll)
	}
}
