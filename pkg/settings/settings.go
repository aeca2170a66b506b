// Package settings holds the immutable installation settings a plan is
// built from. The init system kind is resolved by the caller before
// planning; the engine never probes for it on its own.
package settings

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// InitSystem identifies the service supervisor the host is running.
type InitSystem string

const (
	InitSystemd InitSystem = "systemd"
	InitLaunchd InitSystem = "launchd"
	InitOpenRC  InitSystem = "openrc"
	InitRunit   InitSystem = "runit"
	InitNone    InitSystem = "none"
)

// OnConflict is the policy applied when a destination path already
// exists in an unexpected form at plan time.
type OnConflict string

const (
	// ConflictFail refuses to plan. The default; removing a foreign
	// file could destroy unrelated configuration.
	ConflictFail OnConflict = "fail"
	// ConflictPrompt defers the decision to the caller. The engine
	// treats it like fail; the CLI resolves it to fail or force
	// before planning.
	ConflictPrompt OnConflict = "prompt"
	// ConflictForce removes the conflicting destination at execute
	// time. Never picked implicitly.
	ConflictForce OnConflict = "force"
)

// InstallSettings are the immutable inputs to plan construction.
type InstallSettings struct {
	// InitSystem is the supervisor to register the daemon with,
	// resolved externally before planning.
	InitSystem InitSystem `yaml:"init_system" validate:"required,oneof=systemd launchd openrc runit none"`
	// StartDaemon controls whether the daemon is started/enabled
	// immediately after installation.
	StartDaemon bool `yaml:"start_daemon"`
	// OnConflict is the destination-conflict policy.
	OnConflict OnConflict `yaml:"on_conflict" validate:"required,oneof=fail prompt force"`
	// DaemonConfig is the content written to the daemon's
	// configuration file.
	DaemonConfig string `yaml:"daemon_config"`
	// Explain enables per-action explanation lines in plan
	// descriptions.
	Explain bool `yaml:"explain"`
}

// Default returns the settings used when no settings file is given.
func Default() InstallSettings {
	return InstallSettings{
		InitSystem:  InitNone,
		StartDaemon: true,
		OnConflict:  ConflictFail,
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (s *InstallSettings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// Load reads settings from a YAML file. Fields absent from the file
// keep their defaults.
func Load(fs afero.Fs, path string) (InstallSettings, error) {
	s := Default()
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return s, fmt.Errorf("reading settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, &s); err != nil {
		return s, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}
