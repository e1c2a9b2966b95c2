package statistics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]int64{3000, 1000, 2000})
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, int64(1000), s.MinUs)
	assert.Equal(t, int64(3000), s.MaxUs)
	assert.InDelta(t, 2000.0, s.AvgUs, 0.001)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.Count)
	assert.Equal(t, int64(0), s.MinUs)
	assert.Equal(t, int64(0), s.MaxUs)
	assert.Equal(t, 0.0, s.AvgUs)
}

func TestSummarize_SingleSample(t *testing.T) {
	s := Summarize([]int64{500})
	assert.Equal(t, int64(500), s.MinUs)
	assert.Equal(t, int64(500), s.MaxUs)
	assert.InDelta(t, 500.0, s.AvgUs, 0.001)
}

func TestFormatLine(t *testing.T) {
	line := FormatLine(Summarize([]int64{1000, 2000, 3000}))
	assert.Contains(t, line, "3 processes")
	assert.Contains(t, line, "min 1.000 ms")
	assert.Contains(t, line, "avg 2.000 ms")
	assert.Contains(t, line, "max 3.000 ms")
}
