package actions

import (
	"fmt"
	"os"
	"strconv"

	"basecamp/pkg/log"
	"basecamp/pkg/settings"
	"basecamp/pkg/system"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/afero"
)

// TagPlaceConfiguration identifies the place-configuration action.
const TagPlaceConfiguration = "place_configuration"

// DaemonConfigPath is where the daemon's configuration file lives.
const DaemonConfigPath = "/opt/basecamp/etc/basecampd.conf"

// PlaceConfiguration writes the daemon configuration file. A
// pre-existing file with different content is a conflict unless the
// policy is force, in which case the prior content is kept in the
// receipt and restored on revert.
type PlaceConfiguration struct {
	Path       string              `json:"path"`
	Content    string              `json:"content"`
	Mode       string              `json:"mode"`
	OnConflict settings.OnConflict `json:"on_conflict"`
	// Overwrote and PriorContent record what Execute replaced, so a
	// standalone revert can restore it.
	Overwrote    bool   `json:"overwrote"`
	PriorContent string `json:"prior_content,omitempty"`

	// Captured at plan time, only for description rendering.
	planPrior    string
	planPriorSet bool
}

func NewPlaceConfiguration(s settings.InstallSettings) *PlaceConfiguration {
	return &PlaceConfiguration{
		Path:       DaemonConfigPath,
		Content:    s.DaemonConfig,
		Mode:       "0644",
		OnConflict: s.OnConflict,
	}
}

func (a *PlaceConfiguration) Tag() string {
	return TagPlaceConfiguration
}

func (a *PlaceConfiguration) Plan(host *system.Host) error {
	existing, err := afero.ReadFile(host.Fs, a.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &ActionError{Tag: a.Tag(), Err: err}
	}
	a.planPrior = string(existing)
	a.planPriorSet = true
	if a.planPrior == a.Content {
		return nil
	}
	if a.OnConflict == settings.ConflictForce {
		return nil
	}
	return &ActionError{Tag: a.Tag(), Err: &ConflictError{Path: a.Path, Kind: ConflictFile}}
}

func (a *PlaceConfiguration) Execute(host *system.Host, logger log.Logger) error {
	existing, err := afero.ReadFile(host.Fs, a.Path)
	switch {
	case err == nil && string(existing) == a.Content:
		logger.Debug("Configuration already matches, skipping write", "path", a.Path)
		return nil
	case err == nil:
		// Only reachable under the force policy; keep what we replace.
		a.Overwrote = true
		a.PriorContent = string(existing)
		logger.Warn("Overwriting existing configuration", "path", a.Path)
	case os.IsNotExist(err):
	default:
		return &ActionError{Tag: a.Tag(), Err: err}
	}

	mode, err := a.fileMode()
	if err != nil {
		return &ActionError{Tag: a.Tag(), Err: err}
	}
	logger.Info("Writing configuration", "path", a.Path, "mode", a.Mode)
	if err := afero.WriteFile(host.Fs, a.Path, []byte(a.Content), mode); err != nil {
		return &ActionError{Tag: a.Tag(), Err: fmt.Errorf("writing %s: %w", a.Path, err)}
	}
	if err := host.Fs.Chmod(a.Path, mode); err != nil {
		return &ActionError{Tag: a.Tag(), Err: fmt.Errorf("setting permissions on %s: %w", a.Path, err)}
	}
	return nil
}

func (a *PlaceConfiguration) Revert(host *system.Host, logger log.Logger) error {
	if a.Overwrote {
		mode, err := a.fileMode()
		if err != nil {
			return &ActionError{Tag: a.Tag(), Err: err}
		}
		logger.Info("Restoring prior configuration", "path", a.Path)
		if err := afero.WriteFile(host.Fs, a.Path, []byte(a.PriorContent), mode); err != nil {
			return &ActionError{Tag: a.Tag(), Err: fmt.Errorf("restoring %s: %w", a.Path, err)}
		}
		return nil
	}
	logger.Info("Removing configuration", "path", a.Path)
	if err := removeIfPresent(host, a.Path); err != nil {
		return &ActionError{Tag: a.Tag(), Err: err}
	}
	return nil
}

func (a *PlaceConfiguration) Describe() Description {
	explanation := []string{fmt.Sprintf("Write %s with permissions %s", a.Path, a.Mode)}
	if a.planPriorSet && a.planPrior != a.Content {
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(a.planPrior, a.Content, false)
		explanation = append(explanation,
			"--- diff ---",
			dmp.DiffPrettyText(diffs),
			"--- end diff ---",
		)
	}
	return Description{
		Synopsis:    fmt.Sprintf("Place the basecampd configuration at %s", a.Path),
		Explanation: explanation,
	}
}

func (a *PlaceConfiguration) DescribeRevert() Description {
	if a.Overwrote {
		return Description{
			Synopsis:    fmt.Sprintf("Restore the previous configuration at %s", a.Path),
			Explanation: []string{fmt.Sprintf("Write the pre-install content back to %s", a.Path)},
		}
	}
	return Description{
		Synopsis:    fmt.Sprintf("Remove the basecampd configuration at %s", a.Path),
		Explanation: []string{fmt.Sprintf("Remove %s", a.Path)},
	}
}

func (a *PlaceConfiguration) fileMode() (os.FileMode, error) {
	if a.Mode == "" {
		return 0o644, nil
	}
	mode, err := strconv.ParseUint(a.Mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: %w", a.Mode, err)
	}
	return os.FileMode(mode), nil
}
