package logging

import "testing"

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus", ""} {
		logger := New(level)
		if logger == nil || logger.Logger == nil {
			t.Fatalf("New(%q) returned nil logger", level)
		}
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default returned nil")
	}
}

func TestWithTenant(t *testing.T) {
	logger := New("info").WithTenant("clinic-1")
	if logger == nil || logger.Logger == nil {
		t.Fatal("WithTenant returned nil logger")
	}

	var nilLogger *Logger
	if nilLogger.WithTenant("clinic-1") == nil {
		t.Fatal("WithTenant on nil logger should fall back to default")
	}
}
