package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{" WARN ", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"info", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
		{"", logrus.InfoLevel},
	}

	for _, tt := range tests {
		SetLevel(tt.in)
		if got := Logger.GetLevel(); got != tt.want {
			t.Errorf("SetLevel(%q) -> %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestEnvLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LIVEOCR_LOG_LEVEL", "")
	if got := envLevel(); got != "warn" {
		t.Errorf("fallback = %q, want warn", got)
	}

	t.Setenv("LIVEOCR_LOG_LEVEL", "debug")
	if got := envLevel(); got != "debug" {
		t.Errorf("prefixed = %q, want debug", got)
	}
}
