package system_test

import (
	"testing"

	"basecamp/pkg/test"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHost_ExistsAndLexists(t *testing.T) {
	fs := test.SetupTestFilesystem(t)
	host := test.NewTestHost(fs, test.NewMockCommandRunner())
	test.CreateTestFile(t, fs, "/etc/target.conf", "content\n")

	exists, err := host.Exists("/etc/target.conf")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = host.Exists("/etc/absent.conf")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHost_SymlinkRoundTrip(t *testing.T) {
	fs := test.SetupTestFilesystem(t)
	host := test.NewTestHost(fs, test.NewMockCommandRunner())
	test.CreateTestFile(t, fs, "/lib/unit.service", "[Unit]\n")
	test.CreateTestDir(t, fs, "/etc/systemd/system")

	require.NoError(t, host.Symlink("/lib/unit.service", "/etc/systemd/system/unit.service"))

	isLink, err := host.IsSymlink("/etc/systemd/system/unit.service")
	require.NoError(t, err)
	assert.True(t, isLink)

	isLink, err = host.IsSymlink("/lib/unit.service")
	require.NoError(t, err)
	assert.False(t, isLink)

	matches, err := host.LinkTargetMatches("/etc/systemd/system/unit.service", "/lib/unit.service")
	require.NoError(t, err)
	assert.True(t, matches)

	matches, err = host.LinkTargetMatches("/etc/systemd/system/unit.service", "/lib/other.service")
	require.NoError(t, err)
	assert.False(t, matches)
}

func TestHost_LexistsSeesDanglingSymlink(t *testing.T) {
	fs := test.SetupTestFilesystem(t)
	host := test.NewTestHost(fs, test.NewMockCommandRunner())
	test.CreateTestDir(t, fs, "/etc")

	require.NoError(t, host.Symlink("/nowhere/gone.conf", "/etc/dangling.conf"))

	// Stat follows the link and finds nothing; Lstat sees the link itself.
	exists, err := host.Exists("/etc/dangling.conf")
	require.NoError(t, err)
	assert.False(t, exists)

	lexists, err := host.Lexists("/etc/dangling.conf")
	require.NoError(t, err)
	assert.True(t, lexists)
}

func TestHost_MemMapFsHasNoSymlinks(t *testing.T) {
	host := test.NewTestHost(afero.NewMemMapFs(), test.NewMockCommandRunner())

	err := host.Symlink("/a", "/b")
	require.Error(t, err)

	_, err = host.Readlink("/b")
	require.Error(t, err)
}

func TestHost_IsSymlinkOnMissingPath(t *testing.T) {
	fs := test.SetupTestFilesystem(t)
	host := test.NewTestHost(fs, test.NewMockCommandRunner())

	isLink, err := host.IsSymlink("/no/such/path")
	require.NoError(t, err)
	assert.False(t, isLink)
}
