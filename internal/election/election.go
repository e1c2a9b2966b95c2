// Package election decides which process becomes a group's leader. Both
// strategies run over the same registry fields and are resolved purely by
// hardware atomics (exactly one winner, never a retry loop); they differ in
// who wins and in whether non-winners must keep polling.
package election

import (
	"github.com/global-done/internal/registry"
	"github.com/global-done/internal/substrate"
	"github.com/global-done/internal/topology"
	apperrors "github.com/global-done/pkg/errors"
	"github.com/global-done/pkg/model"
)

// Policy is a leader-election strategy for one group.
//
// Arrive records one completed contribution to the group (a member's local
// completion at the leaf level, a finished child group above) and reports
// whether that arrival elected the caller. Observe attempts an
// opportunistic claim based on currently visible registry state. Polls
// reports whether non-winning processes must keep calling Observe for
// propagation to complete.
type Policy interface {
	Name() model.Policy
	Arrive(h substrate.Handle, a *registry.Arena, g topology.GroupRef) bool
	Observe(h substrate.Handle, a *registry.Arena, g topology.GroupRef) bool
	Polls() bool
}

// New returns the policy implementation for the given name.
func New(name model.Policy) (Policy, error) {
	switch name {
	case model.PolicyLastArrival:
		return &LastArrival{}, nil
	case model.PolicyFirstObserver:
		return &FirstObserver{}, nil
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "unknown election policy %q", name)
	}
}

// LastArrival elects the process whose fetch-and-increment returns
// (group size - 1). The counter serializes arrivals, so exactly one member
// observes that value; the winner is causally the last finisher, and
// non-winners have nothing left to do for the group.
type LastArrival struct{}

// Name implements Policy.
func (p *LastArrival) Name() model.Policy { return model.PolicyLastArrival }

// Arrive implements Policy. The winner marks the group done and records
// itself as leader, fencing before anything downstream reads the flags.
func (p *LastArrival) Arrive(h substrate.Handle, a *registry.Arena, g topology.GroupRef) bool {
	need := int64(a.Topology().Children(g))
	prior := a.Arrive(g)
	if prior != need-1 {
		return false
	}
	a.ClaimDone(g)
	a.SetLeader(g, h.Rank())
	h.Quiet()
	return true
}

// Observe implements Policy. Last-arrival never claims by observation.
func (p *LastArrival) Observe(substrate.Handle, *registry.Arena, topology.GroupRef) bool {
	return false
}

// Polls implements Policy.
func (p *LastArrival) Polls() bool { return false }

// FirstObserver elects whichever process first wins the compare-and-swap
// of the group's done flag after observing the group's precondition: all
// member arrivals at the leaf level, all children done above. The winner is
// only guaranteed to be *a* winner, possibly racing ahead of the true last
// finisher, and losers take no further action for the group.
type FirstObserver struct{}

// Name implements Policy.
func (p *FirstObserver) Name() model.Policy { return model.PolicyFirstObserver }

// Arrive implements Policy. Arrivals only feed the leaf precondition;
// election happens in Observe.
func (p *FirstObserver) Arrive(_ substrate.Handle, a *registry.Arena, g topology.GroupRef) bool {
	a.Arrive(g)
	return false
}

// Observe implements Policy.
func (p *FirstObserver) Observe(h substrate.Handle, a *registry.Arena, g topology.GroupRef) bool {
	if a.IsDone(g) {
		return false
	}
	if !preconditionMet(a, g) {
		return false
	}
	if !a.ClaimDone(g) {
		return false
	}
	a.SetLeader(g, h.Rank())
	h.Quiet()
	return true
}

// Polls implements Policy.
func (p *FirstObserver) Polls() bool { return true }

// preconditionMet reports whether every contribution to g is visible: the
// full member count at the leaf level, every child group's done flag above.
func preconditionMet(a *registry.Arena, g topology.GroupRef) bool {
	topo := a.Topology()
	if g.Level == 0 {
		return a.Arrivals(g) >= int64(topo.Members(g))
	}
	for i := 0; i < topo.Children(g); i++ {
		if !a.IsDone(topo.Child(g, i)) {
			return false
		}
	}
	return true
}
