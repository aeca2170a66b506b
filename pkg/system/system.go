// Package system bundles the host capabilities the engine mutates:
// the filesystem namespace, the PATH lookup for supervisor control
// binaries, and subprocess execution. Actions receive a *Host instead
// of touching the OS directly, so tests can substitute fakes.
package system

import (
	"fmt"
	"os"
	"strings"

	"basecamp/pkg/runner"

	"github.com/spf13/afero"
)

// LookPathFunc resolves a binary name against PATH.
type LookPathFunc func(file string) (string, error)

// Host is the capability bundle threaded through every action's
// plan/execute/revert. All filesystem access goes through Fs; symlink
// operations go through the helpers below, which rely on the optional
// afero link interfaces (implemented by OsFs and BasePathFs).
type Host struct {
	Fs       afero.Fs
	Runner   runner.CommandRunner
	LookPath LookPathFunc
}

// Exists reports whether a path exists, following symlinks.
func (h *Host) Exists(path string) (bool, error) {
	_, err := h.Fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Lexists reports whether a path exists without following symlinks,
// so a dangling symlink still counts as present.
func (h *Host) Lexists(path string) (bool, error) {
	info, _, err := h.Lstat(path)
	if err == nil && info != nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Lstat stats a path without following symlinks when the filesystem
// supports it. The second return reports whether lstat was actually
// performed (false means a plain Stat was used).
func (h *Host) Lstat(path string) (os.FileInfo, bool, error) {
	if lst, ok := h.Fs.(afero.Lstater); ok {
		return lst.LstatIfPossible(path)
	}
	info, err := h.Fs.Stat(path)
	return info, false, err
}

// IsSymlink reports whether path is a symlink. Filesystems without
// lstat support never report symlinks.
func (h *Host) IsSymlink(path string) (bool, error) {
	info, lstated, err := h.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return lstated && info.Mode()&os.ModeSymlink != 0, nil
}

// Symlink creates a symlink at link pointing at target.
func (h *Host) Symlink(target, link string) error {
	linker, ok := h.Fs.(afero.Linker)
	if !ok {
		return fmt.Errorf("symlink %s -> %s: %w", link, target, afero.ErrNoSymlink)
	}
	return linker.SymlinkIfPossible(target, link)
}

// Readlink returns the target of the symlink at path.
func (h *Host) Readlink(path string) (string, error) {
	reader, ok := h.Fs.(afero.LinkReader)
	if !ok {
		return "", fmt.Errorf("readlink %s: %w", path, afero.ErrNoReadlink)
	}
	return reader.ReadlinkIfPossible(path)
}

// LinkTargetMatches reports whether the symlink at link points at
// target. Wrapping filesystems such as BasePathFs rebase stored
// targets under their base directory, so a suffix match on the
// absolute target is accepted too.
func (h *Host) LinkTargetMatches(link, target string) (bool, error) {
	got, err := h.Readlink(link)
	if err != nil {
		return false, err
	}
	return got == target || strings.HasSuffix(got, target), nil
}
