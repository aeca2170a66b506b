package test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// SetupTestFilesystem creates a temporary directory and returns an
// afero filesystem rooted in it. Unlike MemMapFs, a BasePathFs over
// the OS filesystem supports symlinks, which several actions need.
func SetupTestFilesystem(t *testing.T) afero.Fs {
	tempDir, err := os.MkdirTemp("", "basecamp-test-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	return afero.NewBasePathFs(afero.NewOsFs(), tempDir)
}

// SetupMockFilesystem creates an in-memory filesystem for tests that
// do not touch symlinks.
func SetupMockFilesystem(t *testing.T) afero.Fs {
	return afero.NewMemMapFs()
}

// CreateTestFile creates a file with content in the test filesystem.
func CreateTestFile(t *testing.T, fs afero.Fs, path, content string) {
	err := fs.MkdirAll(filepath.Dir(path), 0o755)
	require.NoError(t, err)
	err = afero.WriteFile(fs, path, []byte(content), 0o644)
	require.NoError(t, err)
}

// CreateTestDir creates a directory in the test filesystem.
func CreateTestDir(t *testing.T, fs afero.Fs, path string) {
	err := fs.MkdirAll(path, 0o755)
	require.NoError(t, err)
}

// AssertFileExists checks that a file exists and, when expectedContent
// is non-empty, that it has that content.
func AssertFileExists(t *testing.T, fs afero.Fs, path, expectedContent string) {
	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	require.True(t, exists, "File %s should exist", path)

	if expectedContent != "" {
		content, err := afero.ReadFile(fs, path)
		require.NoError(t, err)
		require.Equal(t, expectedContent, string(content))
	}
}

// AssertFileNotExists checks that a file does not exist.
func AssertFileNotExists(t *testing.T, fs afero.Fs, path string) {
	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	require.False(t, exists, "File %s should not exist", path)
}

// AssertCommandExecuted checks that a command was executed by the mock runner.
func AssertCommandExecuted(t *testing.T, runner *MockCommandRunner, command string) {
	require.Contains(t, runner.Commands, command, "Command should have been executed: %s", command)
}

// AssertCommandNotExecuted checks that a command was not executed.
func AssertCommandNotExecuted(t *testing.T, runner *MockCommandRunner, command string) {
	require.NotContains(t, runner.Commands, command, "Command should not have been executed: %s", command)
}
