package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerAppliesSizeAndBackupDefaults(t *testing.T) {
	l, err := NewLogger(Config{Level: INFO})
	require.NoError(t, err)
	assert.Equal(t, int64(10*1024*1024), l.config.MaxSize)
	assert.Equal(t, 3, l.config.MaxBackups)
}

func TestNewLoggerWritesToConfiguredFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "app.log")

	l, err := NewLogger(Config{Level: DEBUG, OutputFile: logPath})
	require.NoError(t, err)
	defer l.Close()

	l.Info("hello world")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello world")
}

func TestRotateIfNeededRenamesOversizedFileToBackup(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(logPath, make([]byte, 100), 0o644))

	l := &Logger{config: Config{OutputFile: logPath, MaxSize: 10, MaxBackups: 3}}
	require.NoError(t, l.rotateIfNeeded())

	_, err := os.Stat(logPath)
	assert.True(t, os.IsNotExist(err), "oversized log file must be moved out of the way")
	_, err = os.Stat(logPath + ".1")
	assert.NoError(t, err, "oversized log file must become the .1 backup")
}

func TestRotateIfNeededLeavesSmallFileInPlace(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(logPath, []byte("small"), 0o644))

	l := &Logger{config: Config{OutputFile: logPath, MaxSize: 10 * 1024, MaxBackups: 3}}
	require.NoError(t, l.rotateIfNeeded())

	_, err := os.Stat(logPath)
	assert.NoError(t, err)
	_, err = os.Stat(logPath + ".1")
	assert.True(t, os.IsNotExist(err))
}

func TestToSlogLevelMapsFatalAndErrorToSameSlogLevel(t *testing.T) {
	l := &Logger{}
	assert.Equal(t, l.toSlogLevel(ERROR), l.toSlogLevel(FATAL))
}

func TestCloseWithoutOpenFileIsSafe(t *testing.T) {
	l := &Logger{}
	assert.NoError(t, l.Close())
}

func TestDefaultConfigUsesJSONInProductionAndTextInDebug(t *testing.T) {
	prod := DefaultConfig(false)
	assert.True(t, prod.JSONFormat)
	assert.False(t, prod.AddSource)
	assert.Equal(t, INFO, prod.Level)

	dbg := DefaultConfig(true)
	assert.False(t, dbg.JSONFormat)
	assert.True(t, dbg.AddSource)
	assert.Equal(t, DEBUG, dbg.Level)
}

func TestDebugConfigIsStdoutOnlyTextFormat(t *testing.T) {
	c := DebugConfig()
	assert.Empty(t, c.OutputFile)
	assert.False(t, c.JSONFormat)
	assert.Equal(t, DEBUG, c.Level)
}

func TestProductionConfigUsesLargerRotationDefaults(t *testing.T) {
	c := ProductionConfig("/var/log/blargraph.log")
	assert.Equal(t, "/var/log/blargraph.log", c.OutputFile)
	assert.Equal(t, int64(50*1024*1024), c.MaxSize)
	assert.Equal(t, 10, c.MaxBackups)
	assert.True(t, c.JSONFormat)
}
