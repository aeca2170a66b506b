package actions

import (
	"errors"
	"fmt"
	"strings"

	"basecamp/pkg/log"
	"basecamp/pkg/settings"
	"basecamp/pkg/system"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// TagConfigureInitService identifies the init-service registration action.
const TagConfigureInitService = "configure_init_service"

// Fixed destinations per backend. The sources live inside the
// distribution prefix and are placed there before this action runs.
const (
	daemonBin = "/opt/basecamp/bin/basecampd"

	serviceUnit = "basecampd.service"
	socketUnit  = "basecampd.socket"

	serviceSrc     = "/opt/basecamp/lib/systemd/system/basecampd.service"
	serviceDest    = "/etc/systemd/system/basecampd.service"
	socketSrc      = "/opt/basecamp/lib/systemd/system/basecampd.socket"
	socketDest     = "/etc/systemd/system/basecampd.socket"
	tmpfilesSrc    = "/opt/basecamp/lib/tmpfiles.d/basecampd.conf"
	tmpfilesDest   = "/etc/tmpfiles.d/basecampd.conf"
	tmpfilesPrefix = "/opt/basecamp/var"

	openrcScript = "/etc/init.d/basecampd"

	runitServiceDir = "/etc/sv/basecampd"
	runitRunPath    = "/etc/sv/basecampd/run"
	runitSymlink    = "/var/service/basecampd"

	launchdPlistSrc  = "/opt/basecamp/Library/LaunchDaemons/io.basecamp.basecampd.plist"
	launchdPlistDest = "/Library/LaunchDaemons/io.basecamp.basecampd.plist"
	launchdDomain    = "system"
	launchdService   = "io.basecamp.basecampd"

	systemdSentinel = "/run/systemd/system"
	openrcSentinel  = "/run/openrc"
	runitSentinel   = "/run/runit"
)

// ConfigureInitService registers basecampd with the host's service
// supervisor. It is the most involved action: each backend has its own
// liveness and conflict checks, execution steps, and compensations.
type ConfigureInitService struct {
	Init        settings.InitSystem `json:"init"`
	StartDaemon bool                `json:"start_daemon"`
	OnConflict  settings.OnConflict `json:"on_conflict"`
}

func NewConfigureInitService(s settings.InstallSettings) *ConfigureInitService {
	return &ConfigureInitService{
		Init:        s.InitSystem,
		StartDaemon: s.StartDaemon,
		OnConflict:  s.OnConflict,
	}
}

func (a *ConfigureInitService) Tag() string {
	return TagConfigureInitService
}

func (a *ConfigureInitService) tagged(err error) error {
	if err == nil {
		return nil
	}
	return &ActionError{Tag: a.Tag(), Err: err}
}

// allowConflict suppresses a conflict error when the policy is force;
// execute then removes the conflicting destination before recreating it.
func (a *ConfigureInitService) allowConflict(err error) error {
	if err == nil || a.OnConflict != settings.ConflictForce {
		return err
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return nil
	}
	return err
}

// Plan checks that the selected supervisor is live and that no foreign
// artifact sits at any destination this action would write.
func (a *ConfigureInitService) Plan(host *system.Host) error {
	switch a.Init {
	case settings.InitSystemd:
		// /run/systemd/system existing means the machine was booted
		// with systemd, per sd_booted(3).
		if err := a.checkSupervisor(host, systemdSentinel, "systemctl"); err != nil {
			return err
		}
		if err := a.allowConflict(a.checkSystemdUnit(host, serviceSrc, serviceDest)); err != nil {
			return a.tagged(err)
		}
		if err := a.allowConflict(a.checkSystemdUnit(host, socketSrc, socketDest)); err != nil {
			return a.tagged(err)
		}
	case settings.InitOpenRC:
		if err := a.checkSupervisor(host, openrcSentinel, "rc-update"); err != nil {
			return err
		}
		exists, err := host.Lexists(openrcScript)
		if err != nil {
			return a.tagged(err)
		}
		if exists {
			if err := a.allowConflict(&ConflictError{Path: openrcScript, Kind: ConflictFile}); err != nil {
				return a.tagged(err)
			}
		}
	case settings.InitRunit:
		if err := a.checkSupervisor(host, runitSentinel, "sv"); err != nil {
			return err
		}
		exists, err := host.Lexists(runitServiceDir)
		if err != nil {
			return a.tagged(err)
		}
		if exists {
			if err := a.allowConflict(&ConflictError{Path: runitServiceDir, Kind: ConflictDir}); err != nil {
				return a.tagged(err)
			}
		}
	case settings.InitLaunchd:
		// The plist destination is always safely overwritable.
	case settings.InitNone:
		// No supervisor, nothing to check.
	}
	return nil
}

func (a *ConfigureInitService) checkSupervisor(host *system.Host, sentinel, controlBinary string) error {
	live, err := host.Exists(sentinel)
	if err != nil {
		return a.tagged(err)
	}
	if !live {
		return a.tagged(&SupervisorMissingError{Init: string(a.Init)})
	}
	if _, err := host.LookPath(controlBinary); err != nil {
		return a.tagged(&SupervisorMissingError{Init: string(a.Init)})
	}
	return nil
}

func (a *ConfigureInitService) checkSystemdUnit(host *system.Host, src, dest string) error {
	exists, err := host.Lexists(dest)
	if err != nil {
		return err
	}
	if exists {
		isLink, err := host.IsSymlink(dest)
		if err != nil {
			return err
		}
		if !isLink {
			return &ConflictError{Path: dest, Kind: ConflictFile}
		}
		match, err := host.LinkTargetMatches(dest, src)
		if err != nil {
			return err
		}
		if !match {
			return &ConflictError{Path: dest, Kind: ConflictSymlink}
		}
	}
	// Drop-in override directories are the other well-known place a
	// foreign configuration could hide.
	overrideDir := dest + ".d"
	overrides, err := host.Exists(overrideDir)
	if err != nil {
		return err
	}
	if overrides {
		return &ConflictError{Path: overrideDir, Kind: ConflictDir}
	}
	return nil
}

func (a *ConfigureInitService) Execute(host *system.Host, logger log.Logger) error {
	switch a.Init {
	case settings.InitSystemd:
		return a.executeSystemd(host, logger)
	case settings.InitOpenRC:
		return a.executeOpenRC(host, logger)
	case settings.InitRunit:
		return a.executeRunit(host, logger)
	case settings.InitLaunchd:
		return a.executeLaunchd(host, logger)
	case settings.InitNone:
		logger.Info("No init system selected, leaving the daemon unconfigured")
	}
	return nil
}

// executeSystemd drives the host to the socket-activation steady state:
// the service unit linked but not enabled, the socket unit linked and
// enabled, the socket active iff the start flag is set or it was
// already active before this run.
func (a *ConfigureInitService) executeSystemd(host *system.Host, logger log.Logger) error {
	socketWasActive := systemdUnitActive(host, socketUnit)

	// Clear any previous enablement so the re-link below starts from a
	// known state. Stopping is recorded first so an already-running
	// socket comes back up at the end.
	if systemdUnitEnabled(host, socketUnit) {
		if _, err := runCmd(host, "systemctl disable "+socketUnit); err != nil {
			return a.tagged(err)
		}
	}
	if socketWasActive {
		if _, err := runCmd(host, "systemctl stop "+socketUnit); err != nil {
			return a.tagged(err)
		}
	}
	if systemdUnitEnabled(host, serviceUnit) {
		cmd := "systemctl disable " + serviceUnit
		if systemdUnitActive(host, serviceUnit) {
			cmd += " --now"
		}
		if _, err := runCmd(host, cmd); err != nil {
			return a.tagged(err)
		}
	} else if systemdUnitActive(host, serviceUnit) {
		if _, err := runCmd(host, "systemctl stop "+serviceUnit); err != nil {
			return a.tagged(err)
		}
	}

	tmpfilesLinked, err := host.Lexists(tmpfilesDest)
	if err != nil {
		return a.tagged(err)
	}
	if !tmpfilesLinked {
		logger.Debug("Symlinking tmpfiles config", "src", tmpfilesSrc, "dest", tmpfilesDest)
		if err := host.Symlink(tmpfilesSrc, tmpfilesDest); err != nil {
			return a.tagged(fmt.Errorf("symlinking %s to %s: %w", tmpfilesSrc, tmpfilesDest, err))
		}
	}
	if _, err := runCmd(host, "systemd-tmpfiles --create --prefix="+tmpfilesPrefix); err != nil {
		return a.tagged(err)
	}

	// The conflict check already proved anything at the destinations
	// either matches or does not exist (or the policy is force), so a
	// stale entry is removed and re-linked.
	for _, unit := range []struct{ src, dest string }{
		{serviceSrc, serviceDest},
		{socketSrc, socketDest},
	} {
		if err := a.relink(host, logger, unit.src, unit.dest); err != nil {
			return err
		}
	}

	if _, err := runCmd(host, "systemctl daemon-reload"); err != nil {
		return a.tagged(err)
	}

	enable := "systemctl enable " + socketSrc
	if a.StartDaemon || socketWasActive {
		enable += " --now"
	}
	if _, err := runCmd(host, enable); err != nil {
		return a.tagged(err)
	}
	return nil
}

func (a *ConfigureInitService) relink(host *system.Host, logger log.Logger, src, dest string) error {
	stale, err := host.Lexists(dest)
	if err != nil {
		return a.tagged(err)
	}
	if stale {
		logger.Debug("Removing stale unit entry", "path", dest)
		if err := host.Fs.Remove(dest); err != nil {
			return a.tagged(fmt.Errorf("removing %s: %w", dest, err))
		}
	}
	if a.OnConflict == settings.ConflictForce {
		if overrides, _ := host.Exists(dest + ".d"); overrides {
			logger.Warn("Removing override directory", "path", dest+".d")
			if err := host.Fs.RemoveAll(dest + ".d"); err != nil {
				return a.tagged(fmt.Errorf("removing %s.d: %w", dest, err))
			}
		}
	}
	logger.Debug("Symlinking unit", "src", src, "dest", dest)
	if err := host.Symlink(src, dest); err != nil {
		return a.tagged(fmt.Errorf("symlinking %s to %s: %w", src, dest, err))
	}
	return nil
}

func (a *ConfigureInitService) executeOpenRC(host *system.Host, logger log.Logger) error {
	content := strings.Join([]string{
		"#!/sbin/openrc-run",
		`name=$RC_SVCNAME`,
		`description="Basecamp Daemon"`,
		`supervisor="supervise-daemon"`,
		fmt.Sprintf(`command="%s"`, daemonBin),
		`command_args="--daemon"`,
	}, "\n")

	logger.Info("Writing OpenRC init script", "path", openrcScript)
	if err := afero.WriteFile(host.Fs, openrcScript, []byte(content), 0o755); err != nil {
		return a.tagged(fmt.Errorf("writing %s: %w", openrcScript, err))
	}
	if err := host.Fs.Chmod(openrcScript, 0o755); err != nil {
		return a.tagged(fmt.Errorf("setting permissions on %s: %w", openrcScript, err))
	}

	if _, err := runCmd(host, "rc-update add basecampd default"); err != nil {
		return a.tagged(err)
	}
	if a.StartDaemon {
		if _, err := runCmd(host, "rc-service basecampd start"); err != nil {
			return a.tagged(err)
		}
	}
	return nil
}

func (a *ConfigureInitService) executeRunit(host *system.Host, logger log.Logger) error {
	logger.Info("Creating runit service directory", "path", runitServiceDir)
	if err := host.Fs.MkdirAll(runitServiceDir, 0o755); err != nil {
		return a.tagged(fmt.Errorf("creating %s: %w", runitServiceDir, err))
	}

	if !a.StartDaemon {
		// A down marker keeps runsvdir from auto-starting the service
		// the moment the symlink appears in the scan directory.
		down := runitServiceDir + "/down"
		if err := afero.WriteFile(host.Fs, down, []byte{}, 0o644); err != nil {
			return a.tagged(fmt.Errorf("writing %s: %w", down, err))
		}
	}

	run := fmt.Sprintf("#!/bin/sh\nexec %s\n", daemonBin)
	if err := afero.WriteFile(host.Fs, runitRunPath, []byte(run), 0o755); err != nil {
		return a.tagged(fmt.Errorf("writing %s: %w", runitRunPath, err))
	}
	if err := host.Fs.Chmod(runitRunPath, 0o755); err != nil {
		return a.tagged(fmt.Errorf("setting permissions on %s: %w", runitRunPath, err))
	}

	if linked, _ := host.Lexists(runitSymlink); linked {
		if err := host.Fs.Remove(runitSymlink); err != nil {
			return a.tagged(fmt.Errorf("removing %s: %w", runitSymlink, err))
		}
	}
	logger.Debug("Symlinking into supervision tree", "src", runitServiceDir, "dest", runitSymlink)
	if err := host.Symlink(runitServiceDir, runitSymlink); err != nil {
		return a.tagged(fmt.Errorf("symlinking %s to %s: %w", runitServiceDir, runitSymlink, err))
	}
	return nil
}

func (a *ConfigureInitService) executeLaunchd(host *system.Host, logger log.Logger) error {
	content, err := afero.ReadFile(host.Fs, launchdPlistSrc)
	if err != nil {
		return a.tagged(fmt.Errorf("reading %s: %w", launchdPlistSrc, err))
	}
	logger.Info("Copying launchd property list", "dest", launchdPlistDest)
	if err := afero.WriteFile(host.Fs, launchdPlistDest, content, 0o644); err != nil {
		return a.tagged(fmt.Errorf("writing %s: %w", launchdPlistDest, err))
	}

	if _, err := runCmd(host, "launchctl load -w "+launchdPlistDest); err != nil {
		return a.tagged(err)
	}

	if launchdServiceDisabled(host) {
		if _, err := runCmd(host, fmt.Sprintf("launchctl enable %s/%s", launchdDomain, launchdService)); err != nil {
			return a.tagged(err)
		}
	}

	if a.StartDaemon {
		if _, err := runCmd(host, fmt.Sprintf("launchctl kickstart -k %s/%s", launchdDomain, launchdService)); err != nil {
			return a.tagged(err)
		}
	}
	return nil
}

// Revert unwinds the registration. Every backend keeps going through
// intermediate failures and reports them all.
func (a *ConfigureInitService) Revert(host *system.Host, logger log.Logger) error {
	var errs *multierror.Error

	switch a.Init {
	case settings.InitSystemd:
		// Current flags are captured first so only what is actually
		// active or enabled gets stopped or disabled.
		socketActive := systemdUnitActive(host, socketUnit)
		socketEnabled := systemdUnitEnabled(host, socketUnit)
		serviceActive := systemdUnitActive(host, serviceUnit)
		serviceEnabled := systemdUnitEnabled(host, serviceUnit)

		// Stop and disable are issued separately instead of --now to
		// cover units that are enabled but not started, or started
		// but not enabled.
		if socketActive {
			if _, err := runCmd(host, "systemctl stop "+socketUnit); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		if socketEnabled {
			if _, err := runCmd(host, "systemctl disable "+socketUnit); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		if serviceActive {
			if _, err := runCmd(host, "systemctl stop "+serviceUnit); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		if serviceEnabled {
			if _, err := runCmd(host, "systemctl disable "+serviceUnit); err != nil {
				errs = multierror.Append(errs, err)
			}
		}

		if _, err := runCmd(host, "systemd-tmpfiles --remove --prefix="+tmpfilesPrefix); err != nil {
			errs = multierror.Append(errs, err)
		}
		for _, path := range []string{tmpfilesDest, serviceDest, socketDest} {
			if err := removeIfPresent(host, path); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		if _, err := runCmd(host, "systemctl daemon-reload"); err != nil {
			errs = multierror.Append(errs, err)
		}

	case settings.InitOpenRC:
		if _, err := runCmd(host, "rc-service basecampd stop"); err != nil {
			errs = multierror.Append(errs, err)
		}
		if _, err := runCmd(host, "rc-update del basecampd default"); err != nil {
			errs = multierror.Append(errs, err)
		}
		if err := removeIfPresent(host, openrcScript); err != nil {
			errs = multierror.Append(errs, err)
		}

	case settings.InitRunit:
		if _, err := runCmd(host, "sv down basecampd"); err != nil {
			errs = multierror.Append(errs, err)
		}
		if err := removeIfPresent(host, runitSymlink); err != nil {
			errs = multierror.Append(errs, err)
		}
		if err := host.Fs.RemoveAll(runitServiceDir); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("removing %s: %w", runitServiceDir, err))
		}

	case settings.InitLaunchd:
		if _, err := runCmd(host, "launchctl unload "+launchdPlistDest); err != nil {
			errs = multierror.Append(errs, err)
		}
		if err := removeIfPresent(host, launchdPlistDest); err != nil {
			errs = multierror.Append(errs, err)
		}

	case settings.InitNone:
	}

	if err := errs.ErrorOrNil(); err != nil {
		logger.Error("Init service revert finished with failures", "init", a.Init, "error", err)
		return a.tagged(err)
	}
	return nil
}

func (a *ConfigureInitService) Describe() Description {
	switch a.Init {
	case settings.InitSystemd:
		explanation := []string{
			fmt.Sprintf("Symlink %s to %s", serviceSrc, serviceDest),
			fmt.Sprintf("Symlink %s to %s", socketSrc, socketDest),
			fmt.Sprintf("Symlink %s to %s", tmpfilesSrc, tmpfilesDest),
			fmt.Sprintf("Run `systemd-tmpfiles --create --prefix=%s`", tmpfilesPrefix),
			"Run `systemctl daemon-reload`",
		}
		if a.StartDaemon {
			explanation = append(explanation, fmt.Sprintf("Run `systemctl enable %s --now`", socketSrc))
		} else {
			explanation = append(explanation, fmt.Sprintf("Run `systemctl enable %s`", socketSrc))
		}
		return Description{
			Synopsis:    "Configure the basecampd service with systemd",
			Explanation: explanation,
		}
	case settings.InitOpenRC:
		explanation := []string{
			fmt.Sprintf("Create %s", openrcScript),
			"Run `rc-update add basecampd default`",
		}
		if a.StartDaemon {
			explanation = append(explanation, "Run `rc-service basecampd start`")
		}
		return Description{
			Synopsis:    "Configure the basecampd service with OpenRC",
			Explanation: explanation,
		}
	case settings.InitRunit:
		explanation := []string{fmt.Sprintf("Create %s", runitServiceDir)}
		if !a.StartDaemon {
			explanation = append(explanation, fmt.Sprintf("Create %s/down", runitServiceDir))
		}
		explanation = append(explanation, fmt.Sprintf("Symlink %s to %s", runitServiceDir, runitSymlink))
		return Description{
			Synopsis:    "Configure the basecampd service with runit",
			Explanation: explanation,
		}
	case settings.InitLaunchd:
		explanation := []string{
			fmt.Sprintf("Copy %s to %s", launchdPlistSrc, launchdPlistDest),
			fmt.Sprintf("Run `launchctl load -w %s`", launchdPlistDest),
		}
		if a.StartDaemon {
			explanation = append(explanation, fmt.Sprintf("Run `launchctl kickstart -k %s/%s`", launchdDomain, launchdService))
		}
		return Description{
			Synopsis:    "Configure the basecampd service with launchd",
			Explanation: explanation,
		}
	default:
		return Description{Synopsis: "Leave the basecampd daemon unconfigured"}
	}
}

func (a *ConfigureInitService) DescribeRevert() Description {
	switch a.Init {
	case settings.InitSystemd:
		return Description{
			Synopsis: "Unconfigure the basecampd service with systemd",
			Explanation: []string{
				fmt.Sprintf("Run `systemctl disable %s`", socketUnit),
				fmt.Sprintf("Run `systemctl disable %s`", serviceUnit),
				fmt.Sprintf("Run `systemd-tmpfiles --remove --prefix=%s`", tmpfilesPrefix),
				fmt.Sprintf("Remove %s, %s and %s", tmpfilesDest, serviceDest, socketDest),
				"Run `systemctl daemon-reload`",
			},
		}
	case settings.InitOpenRC:
		return Description{
			Synopsis: "Unconfigure the basecampd service with OpenRC",
			Explanation: []string{
				"Run `rc-service basecampd stop`",
				"Run `rc-update del basecampd default`",
				fmt.Sprintf("Remove %s", openrcScript),
			},
		}
	case settings.InitRunit:
		return Description{
			Synopsis: "Unconfigure the basecampd service with runit",
			Explanation: []string{
				"Run `sv down basecampd`",
				fmt.Sprintf("Remove symlink %s", runitSymlink),
				fmt.Sprintf("Remove %s", runitServiceDir),
			},
		}
	case settings.InitLaunchd:
		return Description{
			Synopsis: "Unconfigure the basecampd service with launchd",
			Explanation: []string{
				fmt.Sprintf("Run `launchctl unload %s`", launchdPlistDest),
				fmt.Sprintf("Remove %s", launchdPlistDest),
			},
		}
	default:
		return Description{Synopsis: "Nothing to unconfigure"}
	}
}

// runCmd runs a shell command through the host runner and wraps any
// failure with the command and its output.
func runCmd(host *system.Host, command string) ([]byte, error) {
	out, err := host.Runner.Run("", command)
	if err != nil {
		return out, &CommandError{Command: command, Output: out, Err: err}
	}
	return out, nil
}

// systemctl exits non-zero for inactive or disabled units, so these
// probes trust the output rather than the exit status.
func systemdUnitActive(host *system.Host, unit string) bool {
	out, _ := host.Runner.Run("", "systemctl is-active "+unit)
	return strings.HasPrefix(strings.TrimSpace(string(out)), "active")
}

func systemdUnitEnabled(host *system.Host, unit string) bool {
	out, _ := host.Runner.Run("", "systemctl is-enabled "+unit)
	state := strings.TrimSpace(string(out))
	return strings.HasPrefix(state, "enabled") || strings.HasPrefix(state, "linked")
}

// launchdServiceDisabled checks the domain's disabled overrides for an
// entry marking the service administratively disabled.
func launchdServiceDisabled(host *system.Host) bool {
	out, _ := host.Runner.Run("", "launchctl print-disabled "+launchdDomain)
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, launchdService) &&
			(strings.Contains(line, "disabled") || strings.Contains(line, "true")) {
			return true
		}
	}
	return false
}

func removeIfPresent(host *system.Host, path string) error {
	present, err := host.Lexists(path)
	if err != nil {
		return err
	}
	if !present {
		return nil
	}
	if err := host.Fs.Remove(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}
