package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/outlay-dev/outlay/internal/config"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "outlay.log")
	log, err := New(config.LogConfig{Level: "info", File: path})
	require.NoError(t, err)

	log.Info("expense created", zap.Uint(FieldOwner, 3))
	log.Debug("dropped below level")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"expense created"`)
	assert.Contains(t, string(data), `"owner_id":3`)
	assert.NotContains(t, string(data), "dropped below level")
}

func TestNewBadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "chatty"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing log level")
}
