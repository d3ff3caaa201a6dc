package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("dev mode", func(t *testing.T) {
		log, err := New(true, "")
		require.NoError(t, err)
		require.NotNil(t, log)
		Sync(log)
	})

	t.Run("production mode", func(t *testing.T) {
		log, err := New(false, "")
		require.NoError(t, err)
		require.NotNil(t, log)
		Sync(log)
	})

	t.Run("level override", func(t *testing.T) {
		log, err := New(false, "debug")
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := New(false, "loud")
		require.Error(t, err)
	})
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(false, zapcore.AddSync(&buf))

	log.Info("driver probe complete", zap.String("driver", "nvidia"))
	log.Debug("suppressed in production")
	Sync(log)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "driver probe complete", entry["msg"])
	assert.Equal(t, "nvidia", entry["driver"])
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, buf.String(), "suppressed in production")
}
