package observability

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{" WARN ", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPrettyOutput(t *testing.T) {
	if !PrettyOutput("console", 0) {
		t.Error("Expected console format to be pretty")
	}
	if PrettyOutput("json", 0) {
		t.Error("Expected json format not to be pretty")
	}
	// A descriptor that is not open is never a terminal.
	if PrettyOutput("auto", ^uintptr(0)) {
		t.Error("Expected auto on an invalid descriptor not to be pretty")
	}
}

func TestNewRequestID(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	if a == "" || a == b {
		t.Errorf("Expected distinct non-empty IDs, got %q and %q", a, b)
	}
	if len(a) != 36 {
		t.Errorf("Expected UUID string of length 36, got %d", len(a))
	}
}
