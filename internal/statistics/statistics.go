// Package statistics aggregates per-process timing samples into the
// min/avg/max summary reported once per run.
package statistics

import (
	"fmt"

	"github.com/global-done/pkg/model"
)

// Summarize folds a set of microsecond samples into a latency summary.
// An empty input yields the zero summary.
func Summarize(samples []int64) model.LatencySummary {
	s := model.LatencySummary{Count: len(samples)}
	if len(samples) == 0 {
		return s
	}

	var sum int64
	s.MinUs = samples[0]
	s.MaxUs = samples[0]
	for _, v := range samples {
		if v < s.MinUs {
			s.MinUs = v
		}
		if v > s.MaxUs {
			s.MaxUs = v
		}
		sum += v
	}
	s.AvgUs = float64(sum) / float64(len(samples))
	return s
}

// FormatLine renders the one-per-run aggregate line.
func FormatLine(s model.LatencySummary) string {
	return fmt.Sprintf("completion latency over %d processes: min %.3f ms, avg %.3f ms, max %.3f ms",
		s.Count, float64(s.MinUs)/1000.0, s.AvgUs/1000.0, float64(s.MaxUs)/1000.0)
}
