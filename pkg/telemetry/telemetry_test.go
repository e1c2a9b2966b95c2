package telemetry

import (
	"context"
	"os"
	"sync"
	"testing"
)

func TestInit_Disabled(t *testing.T) {
	resetGlobalConfig()
	os.Unsetenv("OTEL_ENABLED")

	ctx := context.Background()
	shutdown, err := Init(ctx)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if shutdown == nil {
		t.Fatal("Expected shutdown function to be non-nil")
	}

	// The no-op shutdown must be safe to defer unconditionally.
	if err := shutdown(ctx); err != nil {
		t.Errorf("Expected no error on shutdown, got %v", err)
	}
}

func TestEnabled(t *testing.T) {
	resetGlobalConfig()

	os.Unsetenv("OTEL_ENABLED")
	if Enabled() {
		t.Error("Expected Enabled() to return false")
	}
}

// resetGlobalConfig clears the cached env config between tests.
func resetGlobalConfig() {
	globalConfig = nil
	configOnce = sync.Once{}
}
