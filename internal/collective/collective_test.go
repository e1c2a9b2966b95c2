package collective

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/global-done/internal/substrate"
)

func runCommJob(t *testing.T, npes int, main func(substrate.Handle, *MaxComm) error) {
	t.Helper()
	job, err := substrate.NewJob(npes)
	require.NoError(t, err)

	code, err := job.Run(context.Background(), func(h substrate.Handle) error {
		c, newErr := NewMaxComm(h)
		if newErr != nil {
			return newErr
		}
		return main(h, c)
	})
	require.NoError(t, err)
	require.Equal(t, 0, code)
}

func TestReduceMax(t *testing.T) {
	// Non-power-of-two size exercises the clipped binomial tree.
	const npes = 7
	runCommJob(t, npes, func(h substrate.Handle, c *MaxComm) error {
		v, ok := c.ReduceMax(h, int64(h.Rank()*10))
		if h.Rank() == 0 {
			assert.True(t, ok)
			assert.Equal(t, int64(60), v)
		} else {
			assert.False(t, ok)
		}
		return nil
	})
}

func TestReduceMax_MaxNotAtEdge(t *testing.T) {
	const npes = 8
	runCommJob(t, npes, func(h substrate.Handle, c *MaxComm) error {
		contrib := int64(h.Rank() * 10)
		if h.Rank() == 3 {
			contrib = 1000
		}
		v, ok := c.ReduceMax(h, contrib)
		if ok {
			assert.Equal(t, int64(1000), v)
		}
		return nil
	})
}

func TestAllReduceMax(t *testing.T) {
	const npes = 6
	runCommJob(t, npes, func(h substrate.Handle, c *MaxComm) error {
		got := c.AllReduceMax(h, int64(100-h.Rank()))
		assert.Equal(t, int64(100), got)
		return nil
	})
}

func TestAllReduceMax_RepeatedCalls(t *testing.T) {
	// Back-to-back calls share signal counters; no reset between them.
	const npes = 5
	runCommJob(t, npes, func(h substrate.Handle, c *MaxComm) error {
		for i := 0; i < 10; i++ {
			got := c.AllReduceMax(h, int64(h.Rank()+i))
			assert.Equal(t, int64(npes-1+i), got)
		}
		return nil
	})
}

func TestAllReduceMax_SingleProcess(t *testing.T) {
	runCommJob(t, 1, func(h substrate.Handle, c *MaxComm) error {
		assert.Equal(t, int64(42), c.AllReduceMax(h, 42))
		return nil
	})
}
