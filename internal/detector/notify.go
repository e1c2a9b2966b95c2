package detector

import (
	"github.com/global-done/internal/registry"
	"github.com/global-done/internal/substrate"
	"github.com/global-done/internal/topology"
	"github.com/global-done/pkg/collections"
	"github.com/global-done/pkg/model"
)

// broadcast disseminates the termination token from the root. The caller
// has already fenced the writes the token must order behind.
func (d *Detector) broadcast(h substrate.Handle, a *registry.Arena) {
	switch d.bcast {
	case model.BroadcastFlat:
		for pe := 0; pe < h.Size(); pe++ {
			a.PublishToken(pe)
		}
	case model.BroadcastTree:
		d.forward(h, a, a.Topology().Root())
	}
	h.Quiet()
}

// forward relays the token downward from a group the caller anchors.
// Internal groups pass a group-level token to each child's anchor; leaf
// groups write the member tokens directly. A child anchored at the caller
// itself is pushed onto the work stack instead of signaled remotely, so
// each anchor drains its whole anchored spine in one call.
func (d *Detector) forward(h substrate.Handle, a *registry.Arena, g topology.GroupRef) {
	topo := a.Topology()
	pending := collections.NewStack[topology.GroupRef](topo.Levels)
	pending.Push(g)

	for {
		cur, ok := pending.Pop()
		if !ok {
			return
		}
		if cur.Level == 0 {
			start := topo.Anchor(cur)
			for i := 0; i < topo.Members(cur); i++ {
				a.PublishToken(start + i)
			}
			continue
		}
		for i := 0; i < topo.Children(cur); i++ {
			child := topo.Child(cur, i)
			if topo.Anchor(child) == h.Rank() {
				pending.Push(child)
				continue
			}
			a.SetBcastToken(child)
		}
	}
}

// awaitSignal blocks a non-root process until its own token cell is set,
// performing its relay duty first when the tree topology routes the token
// through a group it anchors. Polling policies keep observing their owned
// groups throughout, since aggregation may still need their claims.
func (d *Detector) awaitSignal(h substrate.Handle, a *registry.Arena) {
	me := h.Rank()

	if d.bcast == model.BroadcastTree {
		if g, ok := d.relayGroup(a.Topology(), me); ok {
			d.awaitBcastToken(h, a, g)
			d.forward(h, a, g)
			h.Quiet()
			return
		}
	}

	if !d.policy.Polls() {
		a.Token().WaitUntil(0, substrate.CmpEQ, registry.TokenTerminated)
		return
	}
	for a.Token().Get(me, 0) != registry.TokenTerminated {
		d.observeOwned(h, a)
		d.clock.Sleep(d.poll)
	}
}

// awaitBcastToken blocks until the group-level token for g, hosted at the
// caller, is written by the parent's relay.
func (d *Detector) awaitBcastToken(h substrate.Handle, a *registry.Arena, g topology.GroupRef) {
	if !d.policy.Polls() {
		a.BcastToken(g).WaitUntil(g.Index, substrate.CmpEQ, registry.TokenTerminated)
		return
	}
	for a.BcastToken(g).Get(h.Rank(), g.Index) != registry.TokenTerminated {
		d.observeOwned(h, a)
		d.clock.Sleep(d.poll)
	}
}

// relayGroup returns the highest-level group pe anchors, the point where
// the tree broadcast hands the token to pe. Anchoring is nested: a process
// anchoring level l anchors every level below, and forward descends that
// whole spine, so only the top of the spine waits on a group token. The
// root group is excluded; its anchor initiates instead of relaying.
func (d *Detector) relayGroup(topo *topology.Topology, pe int) (topology.GroupRef, bool) {
	if pe%topo.Span(0) != 0 {
		return topology.GroupRef{}, false
	}
	g := topo.GroupOf(pe, 0)
	for l := 1; l < topo.Levels; l++ {
		if pe%topo.Span(l) != 0 {
			break
		}
		next := topo.GroupOf(pe, l)
		if topo.IsRoot(next) {
			break
		}
		g = next
	}
	return g, true
}
