package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huynhanx03/attackq/pkg/settings"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		wantErr bool
	}{
		{"debug", "debug", false},
		{"info", "info", false},
		{"warn", "warn", false},
		{"error", "error", false},
		{"bogus", "chatty", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(settings.Logger{LogLevel: tt.level})
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, log)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attackq.log")

	log, err := New(settings.Logger{LogLevel: "info", FileLogName: path})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("queue drained")
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.True(t, strings.Contains(content, `"msg":"queue drained"`), content)
	assert.False(t, strings.Contains(content, "hidden"))
}

func TestNewRotator_Defaults(t *testing.T) {
	r := newRotator(settings.Logger{FileLogName: "x.log"})
	assert.Equal(t, defaultMaxSize, r.MaxSize)
	assert.Equal(t, defaultMaxBackups, r.MaxBackups)
	assert.Equal(t, defaultMaxAge, r.MaxAge)

	r = newRotator(settings.Logger{FileLogName: "x.log", MaxSize: 1, MaxBackups: 2, MaxAge: 3, Compress: true})
	assert.Equal(t, 1, r.MaxSize)
	assert.Equal(t, 2, r.MaxBackups)
	assert.Equal(t, 3, r.MaxAge)
	assert.True(t, r.Compress)
}
