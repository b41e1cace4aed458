package simplelogger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesAndAppends(t *testing.T) {
	t.Setenv(EnvVar, filepath.Join(t.TempDir(), "mergeview.log"))

	logger, closeFn := New()
	logger.Info("hello", zap.String("who", "world"))
	logger.Warn("second", zap.Int("n", 123))
	closeFn()

	b, err := os.ReadFile(os.Getenv(EnvVar))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"msg":"hello"`)
	require.Contains(t, lines[0], `"who":"world"`)
	require.Contains(t, lines[1], `"n":123`)
}

func TestNew_NoOpWhenUnset(t *testing.T) {
	t.Setenv(EnvVar, "")
	logger, closeFn := New()
	defer closeFn()
	logger.Info("should not panic")
}

func TestNew_NoOpWhenPathIsDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvVar, dir)

	logger, closeFn := New()
	logger.Info("ignored")
	closeFn()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
