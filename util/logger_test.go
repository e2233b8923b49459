package util

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOutput(2, &buf)

	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Debug("d")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), output)
	}

	wantPrefixes := []string{"[ERR]", "[WRN]", "[INF]", "[DBG]"}
	for i, prefix := range wantPrefixes {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d %q missing prefix %q", i, lines[i], prefix)
		}
	}
}

func TestLogger_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOutput(0, &buf)

	l.Info("should not appear")
	l.Warn("should not appear")
	l.Debug("should not appear")
	l.Error("always appears")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 1 {
		t.Errorf("expected 1 line in quiet mode, got %d:\n%s", len(lines), output)
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOutput(1, &buf)

	l.Info("connected", zap.String("addr", "127.0.0.1:9000"))

	if !strings.Contains(buf.String(), `"addr": "127.0.0.1:9000"`) {
		t.Errorf("expected addr field, got %q", buf.String())
	}
}

func TestLogger_Timestamps(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOutput(3, &buf)

	l.Info("test")

	// "HH:MM:SS.mmm [INF] test"
	output := buf.String()
	if strings.HasPrefix(output, "[INF]") || !strings.Contains(output, ":") {
		t.Errorf("expected timestamp prefix, got %q", output)
	}
}
