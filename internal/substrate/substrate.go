// Package substrate defines the one-sided communication layer the
// termination protocol runs on: symmetric memory regions addressable by
// process rank, remote atomics, a visibility fence, a collective barrier
// and a whole-job exit primitive. The protocol core only ever talks to
// these interfaces; the in-process implementation in memory.go runs every
// process as a goroutine and is what the CLI, benchmarks and tests use.
package substrate

// Compare selects the predicate used by Region.WaitUntil.
type Compare int

const (
	// CmpEQ waits until the cell equals the operand.
	CmpEQ Compare = iota
	// CmpNE waits until the cell differs from the operand.
	CmpNE
	// CmpGE waits until the cell is greater than or equal to the operand.
	CmpGE
)

// Region is a symmetric memory object: every process holds an identically
// sized array of int64 slots, and any process may target any other
// process's copy by rank. Writes become visible to remote readers only
// after the writer calls Handle.Quiet; WaitUntil blocks on the local copy.
type Region interface {
	// Slots returns the per-process slot count.
	Slots() int

	// Get reads slot from the copy hosted at pe.
	Get(pe, slot int) int64

	// Put writes v into slot of the copy hosted at pe.
	Put(pe, slot int, v int64)

	// FetchInc atomically increments slot at pe and returns the prior value.
	FetchInc(pe, slot int) int64

	// CompareSwap atomically replaces slot at pe with new if it holds old,
	// returning the value observed before the swap.
	CompareSwap(pe, slot int, old, new int64) int64

	// WaitUntil blocks until the local copy's slot satisfies cmp against v.
	// There is no bound on wake latency.
	WaitUntil(slot int, cmp Compare, v int64)
}

// Handle is one process's view of the job. Alloc and Barrier are
// collective: every process must call them, in the same order.
type Handle interface {
	// Rank returns the calling process's rank in [0, Size).
	Rank() int

	// Size returns the number of processes in the job.
	Size() int

	// Alloc collectively allocates a symmetric region of the given slot
	// count. Allocation failure is fatal to the whole job.
	Alloc(slots int) (Region, error)

	// Barrier blocks until every process has entered the barrier.
	Barrier()

	// Quiet fences: all of the caller's prior Puts and atomics are remotely
	// visible once Quiet returns.
	Quiet()

	// Exit aborts or finishes the whole job with the given code. It does
	// not return.
	Exit(code int)
}

// satisfied reports whether value matches the predicate.
func satisfied(cmp Compare, value, operand int64) bool {
	switch cmp {
	case CmpEQ:
		return value == operand
	case CmpNE:
		return value != operand
	case CmpGE:
		return value >= operand
	default:
		return false
	}
}
