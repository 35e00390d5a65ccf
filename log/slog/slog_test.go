package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	ac "github.com/unkn0wn-root/analysiscache"
)

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo}))}

	l.Debug("hidden", ac.Fields{"key": "k"})
	l.Info("invalidated", ac.Fields{"key": "lesson:1"})

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "msg=invalidated") || !strings.Contains(out, "key=lesson:1") {
		t.Fatalf("out=%q", out)
	}
}
