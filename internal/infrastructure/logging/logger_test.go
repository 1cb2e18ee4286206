package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level   string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(Config{Level: tt.level})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			assert.False(t, logger.Core().Enabled(tt.want-1))
		})
	}
}

func TestDevelopmentLogger(t *testing.T) {
	logger, err := New(Config{Level: "debug", Development: true, Service: "sketchgui"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestSetLevelReachesChildren(t *testing.T) {
	logger, err := New(Config{Level: "info"})
	require.NoError(t, err)
	gui := logger.Component("gui")
	assert.False(t, gui.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, logger.SetLevel("debug"))
	assert.True(t, gui.Core().Enabled(zapcore.DebugLevel))
	assert.Equal(t, "debug", logger.Level())

	assert.Error(t, logger.SetLevel("loud"))
	assert.Equal(t, "debug", logger.Level())
}
