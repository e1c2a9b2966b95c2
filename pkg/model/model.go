// Package model defines the shared types that cross layer boundaries:
// protocol configuration enums, episode results and persisted run records.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Policy selects the leader-election strategy.
type Policy string

const (
	// PolicyLastArrival elects the process whose atomic arrival increment
	// completes the group; the leader is causally the last finisher.
	PolicyLastArrival Policy = "last_arrival"

	// PolicyFirstObserver elects whichever process first wins the
	// compare-and-swap on the group's done flag after observing the
	// group's precondition.
	PolicyFirstObserver Policy = "first_observer"
)

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyLastArrival:
		return PolicyLastArrival, nil
	case PolicyFirstObserver:
		return PolicyFirstObserver, nil
	default:
		return "", fmt.Errorf("unknown election policy: %q", s)
	}
}

// Broadcast selects the termination-token dissemination topology.
type Broadcast string

const (
	// BroadcastFlat has the root write every process's token directly.
	BroadcastFlat Broadcast = "flat"

	// BroadcastTree cascades the token through the group hierarchy.
	BroadcastTree Broadcast = "tree"
)

// ParseBroadcast parses a broadcast topology name.
func ParseBroadcast(s string) (Broadcast, error) {
	switch Broadcast(strings.ToLower(strings.TrimSpace(s))) {
	case BroadcastFlat:
		return BroadcastFlat, nil
	case BroadcastTree:
		return BroadcastTree, nil
	default:
		return "", fmt.Errorf("unknown broadcast topology: %q", s)
	}
}

// Mode names what a benchmark episode measured.
type Mode string

const (
	// ModeDetector measures the hierarchical termination detector.
	ModeDetector Mode = "detector"

	// ModeNaive measures the linear-scan baseline.
	ModeNaive Mode = "naive"

	// ModeAllReduce measures the all-reduce primitive.
	ModeAllReduce Mode = "allreduce"
)

// ParseMode parses a benchmark mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDetector:
		return ModeDetector, nil
	case ModeNaive:
		return ModeNaive, nil
	case ModeAllReduce:
		return ModeAllReduce, nil
	default:
		return "", fmt.Errorf("unknown benchmark mode: %q", s)
	}
}

// RunConfig captures the shape of one run for reporting and persistence.
type RunConfig struct {
	NPEs         int       `json:"npes"`
	LeafSize     int       `json:"leaf_size"`
	BranchFactor int       `json:"branch_factor"`
	Policy       Policy    `json:"policy"`
	Broadcast    Broadcast `json:"broadcast"`
}

// EpisodeResult is one timed benchmark episode.
type EpisodeResult struct {
	Index      int   `json:"index"`
	DurationUs int64 `json:"duration_us"`
}

// LatencySummary is an aggregate over a set of microsecond measurements.
type LatencySummary struct {
	Count int     `json:"count"`
	MinUs int64   `json:"min_us"`
	AvgUs float64 `json:"avg_us"`
	MaxUs int64   `json:"max_us"`
}

// ModeResult holds a benchmark mode's episodes and their aggregate.
type ModeResult struct {
	Mode     Mode            `json:"mode"`
	Episodes []EpisodeResult `json:"episodes"`
	Summary  LatencySummary  `json:"summary"`
}

// BenchReport is the JSON document a benchmark run produces.
type BenchReport struct {
	RunUUID   string       `json:"run_uuid"`
	Config    RunConfig    `json:"config"`
	Results   []ModeResult `json:"results"`
	StartedAt time.Time    `json:"started_at"`
	Duration  string       `json:"duration"`
}

// RunRecord is the persisted form of one benchmark mode's aggregate.
type RunRecord struct {
	ID           int64     `json:"id"`
	RunUUID      string    `json:"run_uuid"`
	Mode         Mode      `json:"mode"`
	NPEs         int       `json:"npes"`
	LeafSize     int       `json:"leaf_size"`
	BranchFactor int       `json:"branch_factor"`
	Policy       Policy    `json:"policy"`
	Broadcast    Broadcast `json:"broadcast"`
	Episodes     int       `json:"episodes"`
	MinUs        int64     `json:"min_us"`
	AvgUs        float64   `json:"avg_us"`
	MaxUs        int64     `json:"max_us"`
	DurationsUs  []int64   `json:"durations_us,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
