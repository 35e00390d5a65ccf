package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	ac "github.com/unkn0wn-root/analysiscache"
)

func TestLoggerForwardsLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Info("generation started", ac.Fields{"key": "k", "gen": uint64(2)})
	l.Error("store write failed", ac.Fields{"err": errors.New("disk full")})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries=%d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[0].ContextMap()["key"] != "k" {
		t.Fatalf("first=%+v", entries[0])
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].ContextMap()["err"] != "disk full" {
		t.Fatalf("second=%+v", entries[1].ContextMap())
	}
}

func TestNilLoggerIsNop(t *testing.T) {
	New(nil).Warn("ignored", nil)
}
