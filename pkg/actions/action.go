// Package actions defines the revertible unit-of-work contract and the
// concrete actions an install plan is assembled from. Every action
// validates preconditions up front, performs its side effects through
// the host capabilities it is handed, and knows how to compensate for
// them later.
package actions

import (
	"basecamp/pkg/log"
	"basecamp/pkg/system"
)

// Description is a human-readable account of what an action will do or
// undo: a one-line synopsis plus ordered explanation lines. Deriving it
// has no side effects and it never influences control flow.
type Description struct {
	Synopsis    string
	Explanation []string
}

// Action is a single, discrete, revertible change to the system.
type Action interface {
	// Tag returns the stable identifier for this action kind, used in
	// receipts and error reports.
	Tag() string
	// Plan validates the current host state against the action's
	// preconditions. It performs no side effects and must refuse to
	// proceed over pre-existing conflicting state rather than
	// silently overwrite it.
	Plan(host *system.Host) error
	// Execute performs the action's side effects. Sub-steps whose
	// goal state already holds are skipped.
	Execute(host *system.Host, logger log.Logger) error
	// Revert applies compensating operations. It is best-effort:
	// independent cleanup steps are attempted even after an earlier
	// one fails, and every failure is collected into the returned
	// error rather than dropped.
	Revert(host *system.Host, logger log.Logger) error
	// Describe explains what Execute will do.
	Describe() Description
	// DescribeRevert explains what Revert will do.
	DescribeRevert() Description
}
