package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	logger, err := New(Config{Level: "debug", Format: "console"})
	if err != nil {
		t.Fatalf("new debug logger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level enabled")
	}

	logger, err = New(Config{})
	if err != nil {
		t.Fatalf("new default logger: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) || !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info as the default level")
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	cases := []Config{{Level: "loud"}, {Format: "xml"}}
	for _, cfg := range cases {
		if _, err := New(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("expected a nop logger for nil")
	}
}
