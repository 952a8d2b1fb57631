package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	for _, mode := range []string{"stdio", "server"} {
		l, err := New(mode, "debug")
		require.NoError(t, err)
		require.NotNil(t, l.SugaredLogger)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestRedactsSecrets(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("provider ready", "provider", "openai", "api_key", "sk-secret")
	l.With("token", "abc").Warn("retrying")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "[REDACTED]", entries[0].ContextMap()["api_key"])
	assert.Equal(t, "openai", entries[0].ContextMap()["provider"])
	assert.Equal(t, "[REDACTED]", entries[1].ContextMap()["token"])
}

func TestRedactLeavesInputUntouched(t *testing.T) {
	kv := []interface{}{"api_key", "sk", "model", "m"}
	out := redact(kv)
	assert.Equal(t, "sk", kv[1])
	assert.Equal(t, "[REDACTED]", out[1])

	plain := []interface{}{"model", "m"}
	assert.Equal(t, plain, redact(plain))
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Debug("ignored", "k", 1)
	l.Sync()
}
