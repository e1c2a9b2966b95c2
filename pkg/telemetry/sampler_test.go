package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/sdk/trace"
)

func TestCreateSampler(t *testing.T) {
	// Every recognized name must yield a usable sampler; unknown or empty
	// names fall back to sampling everything.
	cases := map[string]string{
		"":                         "",
		"always_on":                "",
		"always_off":               "",
		"traceidratio":             "0.5",
		"parentbased_always_on":    "",
		"parentbased_always_off":   "",
		"parentbased_traceidratio": "0.1",
		"no_such_sampler":          "",
	}

	for name, arg := range cases {
		var s trace.Sampler = createSampler(&Config{Sampler: name, SamplerArg: arg})
		assert.NotNil(t, s, "sampler %q", name)
	}
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{"empty defaults to full sampling", "", 1.0},
		{"half", "0.5", 0.5},
		{"zero", "0", 0},
		{"one", "1", 1.0},
		{"tiny", "0.001", 0.001},
		{"garbage defaults to full sampling", "invalid", 1.0},
		{"negative clamps to zero", "-0.5", 0},
		{"above one clamps to one", "1.5", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseRatio(tt.input))
		})
	}
}
