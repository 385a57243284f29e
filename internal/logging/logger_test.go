package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSONToDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	logger, err := New(DefaultConfig(dir))
	require.NoError(t, err)

	logger.Info("hello", zap.String("url", "gemini://example.org/"))
	logger.Debug("filtered out")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry), "exactly one JSON line expected: %s", data)
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "gemini://example.org/", entry["url"])
	assert.Contains(t, entry, "time")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud", OutputPaths: []string{"stderr"}})
	assert.Error(t, err)
}
