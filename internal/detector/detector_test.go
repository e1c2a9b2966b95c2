package detector

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/global-done/internal/registry"
	"github.com/global-done/internal/substrate"
	"github.com/global-done/internal/topology"
	"github.com/global-done/pkg/model"
)

// syncBuffer guards the stats sink; only one process writes it, but the
// test goroutine reads it after the job.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestNew_RejectsUnknownNames(t *testing.T) {
	_, err := New(model.Policy("quorum"), model.BroadcastFlat)
	assert.Error(t, err)

	_, err = New(model.PolicyLastArrival, model.Broadcast("ring"))
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "aggregating", StateAggregating.String())
	assert.Equal(t, "exited", StateExited.String())
	assert.Equal(t, "state(99)", State(99).String())
}

// runEpisode executes one full episode with a per-process completion delay
// schedule and returns the stats output plus the leaders and ledger count
// captured by rank 0 before the job ends.
func runEpisode(t *testing.T, npes, leaf, branch int, policy model.Policy, bcast model.Broadcast, delays []time.Duration) (string, map[topology.GroupRef]int64, int64) {
	t.Helper()
	topo, err := topology.Plan(npes, leaf, branch)
	require.NoError(t, err)

	sink := &syncBuffer{}
	det, err := New(policy, bcast, WithStatsSink(sink))
	require.NoError(t, err)

	job, err := substrate.NewJob(npes)
	require.NoError(t, err)

	leaders := make(map[topology.GroupRef]int64)
	var acks int64

	code, err := job.Run(context.Background(), func(h substrate.Handle) error {
		a, newErr := registry.New(h, topo)
		if newErr != nil {
			return newErr
		}

		start := time.Now()
		if delays != nil {
			time.Sleep(delays[h.Rank()])
		}
		if runErr := det.Run(h, a, time.Since(start)); runErr != nil {
			return runErr
		}

		h.Barrier()
		if h.Rank() == 0 {
			for l := 0; l < topo.Levels; l++ {
				for g := 0; g < topo.Groups(l); g++ {
					ref := topology.GroupRef{Level: l, Index: g}
					leaders[ref] = a.Leader(ref)
				}
			}
			acks = a.ExitAcks()
		}
		h.Barrier()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, code)

	return sink.String(), leaders, acks
}

// schedule builds a delay table from a completion order, spacing arrivals
// far enough apart that goroutine scheduling jitter cannot reorder them.
func schedule(order []int) []time.Duration {
	delays := make([]time.Duration, len(order))
	for pos, pe := range order {
		delays[pe] = time.Duration(pos) * 10 * time.Millisecond
	}
	return delays
}

func TestDetector_LastArrival_CompletionOrder(t *testing.T) {
	// 8 processes, 2 leaf groups of 4, branch factor 2. Completion order
	// [0,1,2,3,7,6,5,4]: process 3 finishes its leaf last, process 4 its.
	delays := schedule([]int{0, 1, 2, 3, 7, 6, 5, 4})

	out, leaders, acks := runEpisode(t, 8, 4, 2, model.PolicyLastArrival, model.BroadcastTree, delays)

	assert.Equal(t, int64(3), leaders[topology.GroupRef{Level: 0, Index: 0}])
	assert.Equal(t, int64(4), leaders[topology.GroupRef{Level: 0, Index: 1}])
	// The root leader is the leaf leader that arrived at the root last.
	assert.Equal(t, int64(4), leaders[topology.GroupRef{Level: 1, Index: 0}])

	assert.Equal(t, int64(7), acks)
	assert.Equal(t, 1, strings.Count(out, "completion latency"))
}

func TestDetector_LastArrival_FlatBroadcast(t *testing.T) {
	out, leaders, acks := runEpisode(t, 8, 4, 2, model.PolicyLastArrival, model.BroadcastFlat, nil)

	for ref, leader := range leaders {
		assert.NotEqual(t, registry.LeaderUnset, leader, "group %+v has no leader", ref)
	}
	assert.Equal(t, int64(7), acks)
	assert.Equal(t, 1, strings.Count(out, "completion latency"))
}

func TestDetector_FirstObserver_EveryGroupLed(t *testing.T) {
	for _, bcast := range []model.Broadcast{model.BroadcastFlat, model.BroadcastTree} {
		out, leaders, acks := runEpisode(t, 12, 3, 2, model.PolicyFirstObserver, bcast, nil)

		for ref, leader := range leaders {
			assert.NotEqual(t, registry.LeaderUnset, leader, "group %+v has no leader", ref)
		}
		assert.Equal(t, int64(11), acks)
		assert.Equal(t, 1, strings.Count(out, "completion latency"))
	}
}

func TestDetector_SingleProcess(t *testing.T) {
	for _, policy := range []model.Policy{model.PolicyLastArrival, model.PolicyFirstObserver} {
		for _, bcast := range []model.Broadcast{model.BroadcastFlat, model.BroadcastTree} {
			out, leaders, acks := runEpisode(t, 1, 8, 2, policy, bcast, nil)

			assert.Equal(t, int64(0), leaders[topology.GroupRef{Level: 0, Index: 0}])
			assert.Equal(t, int64(0), acks)
			assert.Equal(t, 1, strings.Count(out, "completion latency"))
		}
	}
}

func TestDetector_TailGroups(t *testing.T) {
	// 10 processes, leaf 4: leaf groups of 4, 4 and 2, two levels above.
	_, leaders, acks := runEpisode(t, 10, 4, 2, model.PolicyLastArrival, model.BroadcastTree, nil)

	for ref, leader := range leaders {
		assert.NotEqual(t, registry.LeaderUnset, leader, "group %+v has no leader", ref)
	}
	assert.Equal(t, int64(9), acks)
}

func TestDetector_ReplayAfterReset(t *testing.T) {
	// Identical completion order reproduces identical leaders and the
	// side effect fires once per episode.
	const npes = 8
	topo, err := topology.Plan(npes, 4, 2)
	require.NoError(t, err)

	sink := &syncBuffer{}
	det, err := New(model.PolicyLastArrival, model.BroadcastTree, WithStatsSink(sink))
	require.NoError(t, err)

	job, err := substrate.NewJob(npes)
	require.NoError(t, err)

	delays := schedule([]int{0, 1, 2, 3, 7, 6, 5, 4})
	episodes := make([]map[topology.GroupRef]int64, 2)

	code, err := job.Run(context.Background(), func(h substrate.Handle) error {
		a, newErr := registry.New(h, topo)
		if newErr != nil {
			return newErr
		}

		for ep := 0; ep < 2; ep++ {
			time.Sleep(delays[h.Rank()])
			if runErr := det.Run(h, a, 0); runErr != nil {
				return runErr
			}

			h.Barrier()
			if h.Rank() == 0 {
				captured := make(map[topology.GroupRef]int64)
				for l := 0; l < topo.Levels; l++ {
					for g := 0; g < topo.Groups(l); g++ {
						ref := topology.GroupRef{Level: l, Index: g}
						captured[ref] = a.Leader(ref)
					}
				}
				episodes[ep] = captured
			}
			h.Barrier()
			a.Reset(h)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, code)

	assert.Equal(t, episodes[0], episodes[1])
	assert.Equal(t, int64(3), episodes[0][topology.GroupRef{Level: 0, Index: 0}])
	assert.Equal(t, 2, strings.Count(sink.String(), "completion latency"))
}

func TestDetector_Naive(t *testing.T) {
	const npes = 9
	det, err := New(model.PolicyLastArrival, model.BroadcastFlat)
	require.NoError(t, err)

	job, err := substrate.NewJob(npes)
	require.NoError(t, err)

	code, err := job.Run(context.Background(), func(h substrate.Handle) error {
		a, newErr := NewNaiveArena(h)
		if newErr != nil {
			return newErr
		}
		for ep := 0; ep < 2; ep++ {
			if runErr := det.RunNaive(h, a); runErr != nil {
				return runErr
			}
			a.Reset(h)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, code)
}
