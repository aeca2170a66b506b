package actions

import (
	"fmt"
	"os"
	"strconv"

	"basecamp/pkg/log"
	"basecamp/pkg/system"
)

// TagCreateDirectory identifies the create-directory action.
const TagCreateDirectory = "create_directory"

// CreateDirectory creates one directory of the distribution layout.
// If the directory already exists it is left alone and the revert
// leaves it in place, so an install never deletes a directory it did
// not create.
type CreateDirectory struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	// Created records whether Execute actually made the directory.
	// Persisted in the receipt so a standalone revert removes exactly
	// what the install created.
	Created bool `json:"created"`
}

func NewCreateDirectory(path, mode string) *CreateDirectory {
	return &CreateDirectory{Path: path, Mode: mode}
}

func (a *CreateDirectory) Tag() string {
	return TagCreateDirectory
}

func (a *CreateDirectory) Plan(host *system.Host) error {
	info, err := host.Fs.Stat(a.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &ActionError{Tag: a.Tag(), Err: err}
	}
	if !info.IsDir() {
		return &ActionError{Tag: a.Tag(), Err: &ConflictError{Path: a.Path, Kind: ConflictFile}}
	}
	return nil
}

func (a *CreateDirectory) Execute(host *system.Host, logger log.Logger) error {
	exists, err := host.Exists(a.Path)
	if err != nil {
		return &ActionError{Tag: a.Tag(), Err: err}
	}
	if exists {
		logger.Debug("Directory already present, skipping", "path", a.Path)
		return nil
	}
	mode, err := a.fileMode()
	if err != nil {
		return &ActionError{Tag: a.Tag(), Err: err}
	}
	logger.Info("Creating directory", "path", a.Path, "mode", a.Mode)
	if err := host.Fs.MkdirAll(a.Path, mode); err != nil {
		return &ActionError{Tag: a.Tag(), Err: fmt.Errorf("creating %s: %w", a.Path, err)}
	}
	if err := host.Fs.Chmod(a.Path, mode); err != nil {
		return &ActionError{Tag: a.Tag(), Err: fmt.Errorf("setting permissions on %s: %w", a.Path, err)}
	}
	a.Created = true
	return nil
}

func (a *CreateDirectory) Revert(host *system.Host, logger log.Logger) error {
	if !a.Created {
		logger.Debug("Directory was not created by this install, leaving it", "path", a.Path)
		return nil
	}
	logger.Info("Removing directory", "path", a.Path)
	if err := host.Fs.RemoveAll(a.Path); err != nil {
		return &ActionError{Tag: a.Tag(), Err: fmt.Errorf("removing %s: %w", a.Path, err)}
	}
	return nil
}

func (a *CreateDirectory) Describe() Description {
	return Description{
		Synopsis:    fmt.Sprintf("Create directory %s", a.Path),
		Explanation: []string{fmt.Sprintf("Create %s with permissions %s unless it already exists", a.Path, a.Mode)},
	}
}

func (a *CreateDirectory) DescribeRevert() Description {
	return Description{
		Synopsis:    fmt.Sprintf("Remove directory %s", a.Path),
		Explanation: []string{fmt.Sprintf("Remove %s if this install created it", a.Path)},
	}
}

func (a *CreateDirectory) fileMode() (os.FileMode, error) {
	if a.Mode == "" {
		return 0o755, nil
	}
	mode, err := strconv.ParseUint(a.Mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: %w", a.Mode, err)
	}
	return os.FileMode(mode), nil
}
