//go:build integration
// +build integration

package integration

import (
	"errors"
	"log/slog"
	"testing"

	"basecamp/pkg/plan"
	"basecamp/pkg/settings"
	"basecamp/pkg/system"
	"basecamp/pkg/test"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupSystemdEnvironment lays out a systemd-booted host: the boot
// sentinel, the distribution's unit sources, and a symlink-capable
// filesystem. Commands go through the mock runner so no real systemd
// is touched.
func setupSystemdEnvironment(t *testing.T) (afero.Fs, *test.MockCommandRunner, *system.Host) {
	fs := test.SetupTestFilesystem(t)
	runner := test.NewMockCommandRunner()
	host := test.NewTestHost(fs, runner)

	test.CreateTestDir(t, fs, "/run/systemd/system")
	test.CreateTestDir(t, fs, "/etc/systemd/system")
	test.CreateTestDir(t, fs, "/etc/tmpfiles.d")
	test.CreateTestFile(t, fs, "/opt/basecamp/bin/basecampd", "#!/bin/sh\n")
	test.CreateTestFile(t, fs, "/opt/basecamp/lib/systemd/system/basecampd.service", "[Unit]\nDescription=Basecamp Daemon\n")
	test.CreateTestFile(t, fs, "/opt/basecamp/lib/systemd/system/basecampd.socket", "[Socket]\nListenStream=/run/basecampd.sock\n")
	test.CreateTestFile(t, fs, "/opt/basecamp/lib/tmpfiles.d/basecampd.conf", "d /opt/basecamp/var 0755 root root -\n")

	return fs, runner, host
}

func systemdSettings() settings.InstallSettings {
	s := settings.Default()
	s.InitSystem = settings.InitSystemd
	s.StartDaemon = true
	s.DaemonConfig = "listen = \"/run/basecampd.sock\"\n"
	return s
}

func TestSystemdInstallReceiptRevert(t *testing.T) {
	fs, runner, host := setupSystemdEnvironment(t)
	logger := test.SlogLogger(slog.LevelDebug)
	test.CreateTestFile(t, fs, "/etc/systemd/system/unrelated.service", "[Unit]\n")

	p, err := plan.New(systemdSettings(), host)
	require.NoError(t, err)

	receipt, err := p.Install(host, logger)
	require.NoError(t, err)
	require.NoError(t, receipt.Save(fs, plan.DefaultReceiptPath))

	// The steady state after install: config placed, units linked,
	// socket enabled and started.
	test.AssertFileExists(t, fs, "/opt/basecamp/etc/basecampd.conf", "listen = \"/run/basecampd.sock\"\n")
	for _, link := range []string{
		"/etc/systemd/system/basecampd.service",
		"/etc/systemd/system/basecampd.socket",
		"/etc/tmpfiles.d/basecampd.conf",
	} {
		isLink, err := host.IsSymlink(link)
		require.NoError(t, err)
		assert.True(t, isLink, "%s should be a symlink", link)
	}
	test.AssertCommandExecuted(t, runner, "systemctl daemon-reload")
	test.AssertCommandExecuted(t, runner, "systemctl enable /opt/basecamp/lib/systemd/system/basecampd.socket --now")

	// A cold process reverts purely from the receipt.
	loaded, err := plan.LoadReceipt(fs, plan.DefaultReceiptPath)
	require.NoError(t, err)
	runner.Reset()
	require.NoError(t, loaded.Revert(host, logger))

	test.AssertFileNotExists(t, fs, "/opt/basecamp/etc/basecampd.conf")
	test.AssertFileNotExists(t, fs, "/etc/systemd/system/basecampd.service")
	test.AssertFileNotExists(t, fs, "/etc/systemd/system/basecampd.socket")
	test.AssertFileNotExists(t, fs, "/etc/tmpfiles.d/basecampd.conf")
	test.AssertCommandExecuted(t, runner, "systemd-tmpfiles --remove --prefix=/opt/basecamp/var")
	test.AssertCommandExecuted(t, runner, "systemctl daemon-reload")

	// Nothing else in the host's unit directory was disturbed.
	test.AssertFileExists(t, fs, "/etc/systemd/system/unrelated.service", "[Unit]\n")
}

func TestSystemdInstallRollsBackOnFailure(t *testing.T) {
	fs, runner, host := setupSystemdEnvironment(t)
	logger := test.SlogLogger(slog.LevelDebug)

	p, err := plan.New(systemdSettings(), host)
	require.NoError(t, err)

	// The last action fails mid-flight; everything completed before it
	// must be unwound.
	runner.SetError("", "systemctl daemon-reload", errors.New("dbus connection refused"))

	_, err = p.Install(host, logger)
	require.Error(t, err)

	test.AssertFileNotExists(t, fs, "/opt/basecamp/etc/basecampd.conf")
	exists, err := afero.DirExists(fs, "/opt/basecamp/etc")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = afero.DirExists(fs, "/opt/basecamp/var")
	require.NoError(t, err)
	assert.False(t, exists)

	// The failing action never got to enable anything.
	test.AssertCommandNotExecuted(t, runner, "systemctl enable /opt/basecamp/lib/systemd/system/basecampd.socket --now")
}
