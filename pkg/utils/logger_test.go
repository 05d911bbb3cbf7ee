package utils

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
	}{
		{"development", true, true},
		{"production", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.debug)
			if err != nil {
				t.Fatalf("NewLogger(%v) error: %v", tt.debug, err)
			}
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}

func TestNewLogger_serviceField(t *testing.T) {
	for _, debug := range []bool{true, false} {
		core, logs := observer.New(zapcore.InfoLevel)
		logger, err := NewLogger(debug, zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))
		if err != nil {
			t.Fatal(err)
		}
		logger.Info("started")

		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("debug=%v: got %d entries, want 1", debug, len(entries))
		}
		if got := entries[0].ContextMap()["service"]; got != "elastipass" {
			t.Errorf("debug=%v: service = %v, want elastipass", debug, got)
		}
	}
}
