// Package collections provides small data structures shared by the
// detection runtime and its benchmarks.
package collections

import (
	"sync"
)

// SlicePool recycles slices of T. The detector borrows scratch slices per
// episode, so pooling keeps the steady state allocation-free.
type SlicePool[T any] struct {
	pool       sync.Pool
	initialCap int
}

// NewSlicePool returns a pool whose fresh slices have the given capacity.
func NewSlicePool[T any](initialCap int) *SlicePool[T] {
	if initialCap <= 0 {
		initialCap = 256
	}
	p := &SlicePool[T]{initialCap: initialCap}
	p.pool.New = func() any {
		s := make([]T, 0, initialCap)
		return &s
	}
	return p
}

// Get borrows a slice from the pool.
func (p *SlicePool[T]) Get() *[]T {
	return p.pool.Get().(*[]T)
}

// Put truncates the slice and returns it to the pool.
func (p *SlicePool[T]) Put(s *[]T) {
	*s = (*s)[:0]
	p.pool.Put(s)
}

// Int64SlicePool backs the latency sample buffers collected per episode.
var Int64SlicePool = NewSlicePool[int64](256)

// GetInt64Slice borrows a sample buffer.
func GetInt64Slice() *[]int64 {
	return Int64SlicePool.Get()
}

// PutInt64Slice returns a sample buffer.
func PutInt64Slice(s *[]int64) {
	Int64SlicePool.Put(s)
}

// Stack is a LIFO of T. The token broadcast walks group trees iteratively
// with one of these instead of recursing.
type Stack[T any] struct {
	data []T
}

// NewStack returns a stack preallocated for capacity items.
func NewStack[T any](capacity int) *Stack[T] {
	return &Stack[T]{data: make([]T, 0, capacity)}
}

// Push adds v on top.
func (s *Stack[T]) Push(v T) {
	s.data = append(s.data, v)
}

// Pop removes and returns the top item. ok is false on an empty stack.
func (s *Stack[T]) Pop() (v T, ok bool) {
	if len(s.data) == 0 {
		return v, false
	}
	last := len(s.data) - 1
	v = s.data[last]
	s.data = s.data[:last]
	return v, true
}

// IsEmpty reports whether the stack holds no items.
func (s *Stack[T]) IsEmpty() bool {
	return len(s.data) == 0
}

// Len returns the number of items on the stack.
func (s *Stack[T]) Len() int {
	return len(s.data)
}
