package actions

import (
	"fmt"
	"strings"
)

// ActionError wraps any failure produced by an action with the tag of
// the action that produced it. The orchestrator never discards one.
type ActionError struct {
	Tag string
	Err error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q: %v", e.Tag, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// ConflictKind says what unexpected thing was found at a destination.
type ConflictKind string

const (
	ConflictFile    ConflictKind = "file"
	ConflictDir     ConflictKind = "directory"
	ConflictSymlink ConflictKind = "symlink"
)

// ConflictError reports that a destination path already exists in an
// unexpected form. It is fatal and never auto-resolved: removing a
// foreign file could destroy unrelated configuration.
type ConflictError struct {
	Path string
	Kind ConflictKind
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("destination %s already exists as an unexpected %s", e.Path, e.Kind)
}

// SupervisorMissingError reports that the selected service supervisor
// is not live on this host or its control binary is absent. Fatal and
// non-retryable.
type SupervisorMissingError struct {
	Init string
}

func (e *SupervisorMissingError) Error() string {
	return fmt.Sprintf("service supervisor %s is not present on this host", e.Init)
}

// CommandError reports a subprocess that could not be run or exited
// non-zero, keeping whatever output it produced.
type CommandError struct {
	Command string
	Output  []byte
	Err     error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(string(e.Output))
	if out == "" {
		return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("command %q failed: %v: %s", e.Command, e.Err, out)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// TransitionError reports an execute or revert attempted from a state
// where it is not legal.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s an action in state %q", e.Op, e.State)
}
