package logger

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/erpsync/internal/config"
)

func TestBuild_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{level: "debug", want: zapcore.DebugLevel},
		{level: "WARN", want: zapcore.WarnLevel},
		{level: "nonsense", want: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := Build(config.Observability{LogLevel: tt.level, LogEncoding: "json", ServiceName: "erpsync"})
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestBuild_ConsoleAndDefaultEncoding(t *testing.T) {
	_, err := Build(config.Observability{LogEncoding: "console"})
	require.NoError(t, err)
	_, err = Build(config.Observability{})
	require.NoError(t, err)
}

func TestIgnoreStreamSync(t *testing.T) {
	assert.NoError(t, ignoreStreamSync(nil))
	assert.NoError(t, ignoreStreamSync(fmt.Errorf("sync /dev/stdout: %w", syscall.EINVAL)))
	assert.Error(t, ignoreStreamSync(errors.New("disk full")))
}
