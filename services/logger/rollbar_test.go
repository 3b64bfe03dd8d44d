package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/user"
)

func newTestLogger() (*RollbarLogger, *observer.ObservedLogs) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	l := NewRollbarLogger(zap.New(obsCore).Sugar(), &core.Config{Env: "TEST"})
	l.Enable(false)
	return l, logs
}

func TestRollbarLogger_fields(t *testing.T) {
	l, logs := newTestLogger()
	usr := user.User{ID: "u-1", Username: "jdoe"}
	err := errors.New("boom")

	l.Error("sweep failed", err, map[string]interface{}{"invoice": "INV-2024-0001"}, usr, user.User{ID: "u-2"})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		e := entries[0]
		assert.Equal(t, zapcore.ErrorLevel, e.Level)
		assert.Equal(t, "sweep failed", e.Message)
		ctx := e.ContextMap()
		assert.Equal(t, "boom", ctx["error"])
		assert.Equal(t, "INV-2024-0001", ctx["invoice"])
		assert.Equal(t, "u-1", ctx["user_id"], "only the first user is kept")
	}
}

func TestRollbarLogger_levels(t *testing.T) {
	l, logs := newTestLogger()

	l.Debug("d")
	l.Info("i")
	l.Warn("w")

	levels := make([]zapcore.Level, 0, 3)
	for _, e := range logs.All() {
		levels = append(levels, e.Level)
	}
	assert.Equal(t, []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel}, levels)
}
