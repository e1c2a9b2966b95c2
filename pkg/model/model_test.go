package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected Policy
		wantErr  bool
	}{
		{"last_arrival", PolicyLastArrival, false},
		{"first_observer", PolicyFirstObserver, false},
		{"  Last_Arrival ", PolicyLastArrival, false},
		{"", "", true},
		{"quorum", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePolicy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestParseBroadcast(t *testing.T) {
	b, err := ParseBroadcast("flat")
	require.NoError(t, err)
	assert.Equal(t, BroadcastFlat, b)

	b, err = ParseBroadcast("TREE")
	require.NoError(t, err)
	assert.Equal(t, BroadcastTree, b)

	_, err = ParseBroadcast("ring")
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("detector")
	require.NoError(t, err)
	assert.Equal(t, ModeDetector, m)

	m, err = ParseMode(" Naive ")
	require.NoError(t, err)
	assert.Equal(t, ModeNaive, m)

	m, err = ParseMode("allreduce")
	require.NoError(t, err)
	assert.Equal(t, ModeAllReduce, m)

	_, err = ParseMode("barrier")
	assert.Error(t, err)
}
