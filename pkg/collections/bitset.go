package collections

import "math/bits"

// Bitset tracks which processes have been observed done during a linear
// completion scan. One bit per process keeps the scan state small enough
// to rebuild every episode without pressure on the allocator.
type Bitset struct {
	words []uint64
	size  int
}

func wordAndMask(i int) (int, uint64) {
	return i >> 6, 1 << (i & 63)
}

// NewBitset creates a bitset sized for the given number of processes.
func NewBitset(size int) *Bitset {
	if size <= 0 {
		size = 64
	}
	return &Bitset{
		words: make([]uint64, (size+63)/64),
		size:  size,
	}
}

// Set marks index i. Indices beyond the current size grow the set.
func (b *Bitset) Set(i int) {
	if i < 0 {
		return
	}
	w, mask := wordAndMask(i)
	if w >= len(b.words) {
		b.grow(i + 1)
	}
	b.words[w] |= mask
	if i >= b.size {
		b.size = i + 1
	}
}

// Test reports whether index i is marked.
func (b *Bitset) Test(i int) bool {
	if i < 0 {
		return false
	}
	w, mask := wordAndMask(i)
	return w < len(b.words) && b.words[w]&mask != 0
}

// Count returns the number of marked indices.
func (b *Bitset) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

func (b *Bitset) grow(newSize int) {
	need := (newSize + 63) / 64
	if need <= len(b.words) {
		return
	}
	grown := make([]uint64, max(need, len(b.words)*2))
	copy(grown, b.words)
	b.words = grown
}
