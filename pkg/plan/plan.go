// Package plan assembles the ordered action sequence for an install,
// executes it with rollback on failure, and records the outcome in a
// durable receipt.
//
// The underlying primitives (filesystem mutation, supervisor
// registration) have no native transactions; the plan manufactures
// transactional semantics with ordered compensating actions. Atomicity
// is therefore only as strong as each individual action's own revert.
package plan

import (
	"fmt"
	"strings"

	"basecamp/pkg/actions"
	"basecamp/pkg/log"
	"basecamp/pkg/settings"
	"basecamp/pkg/system"
)

// InstallPlan is an immutable set of settings plus the ordered,
// already-validated action sequence. It can only be obtained through
// New, so execution never happens without every action having planned
// successfully first.
type InstallPlan struct {
	Settings settings.InstallSettings
	actions  []*actions.StatefulAction
}

// New builds the action sequence for the given settings and asks every
// action to plan against the host. Any planning failure aborts
// construction before a single side effect happens.
func New(s settings.InstallSettings, host *system.Host) (*InstallPlan, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	list := []actions.Action{
		actions.NewCreateDirectory("/opt/basecamp/etc", "0755"),
		actions.NewCreateDirectory("/opt/basecamp/var", "0755"),
		actions.NewPlaceConfiguration(s),
		actions.NewConfigureInitService(s),
	}

	stateful := make([]*actions.StatefulAction, 0, len(list))
	for _, a := range list {
		if err := a.Plan(host); err != nil {
			return nil, fmt.Errorf("planning install: %w", err)
		}
		stateful = append(stateful, actions.NewStatefulAction(a))
	}
	return &InstallPlan{Settings: s, actions: stateful}, nil
}

// Actions exposes the planned sequence for reporting.
func (p *InstallPlan) Actions() []*actions.StatefulAction {
	return p.actions
}

// Install executes the actions strictly in declared order. This is
// deliberately sequential; an action that could parallelize sub-steps
// does so internally. On the first failure every already-completed
// action is reverted in reverse order; if any revert also fails the
// returned error carries the original failure plus every revert
// failure so the operator can see exactly what state the host was
// left in.
func (p *InstallPlan) Install(host *system.Host, logger log.Logger) (*Receipt, error) {
	receipt := NewReceipt()
	for i, sa := range p.actions {
		logger.Info("=> " + sa.Action.Describe().Synopsis)
		if err := sa.Execute(host, logger); err != nil {
			logger.Error("Action failed, rolling back completed actions", "action", sa.Action.Tag(), "error", err)
			revertErrs := rollback(p.actions[:i], host, logger)
			if len(revertErrs) > 0 {
				return nil, &RollbackError{Cause: err, RevertErrors: revertErrs}
			}
			return nil, err
		}
		receipt.Actions = append(receipt.Actions, sa)
	}
	logger.Info("Install complete")
	return receipt, nil
}

func rollback(completed []*actions.StatefulAction, host *system.Host, logger log.Logger) []error {
	var errs []error
	for i := len(completed) - 1; i >= 0; i-- {
		sa := completed[i]
		logger.Info("<= Rolling back: " + sa.Action.DescribeRevert().Synopsis)
		if err := sa.Revert(host, logger); err != nil {
			// Collected, not dropped: the remaining actions still get
			// their chance to unwind.
			logger.Error("Rollback step failed", "action", sa.Action.Tag(), "error", err)
			errs = append(errs, err)
		}
	}
	return errs
}

// Describe renders what the install will do. Pure formatting over the
// actions' own descriptions, computable before any execution.
func (p *InstallPlan) Describe(explain bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This install is for:\n")
	fmt.Fprintf(&b, "  Init system: %s\n", p.Settings.InitSystem)
	fmt.Fprintf(&b, "  Prefix: /opt/basecamp\n\n")
	b.WriteString("The following actions will be taken:\n")
	for _, sa := range p.actions {
		renderDescription(&b, sa.Action.Describe(), explain)
	}
	return b.String()
}

func renderDescription(b *strings.Builder, d actions.Description, explain bool) {
	fmt.Fprintf(b, "* %s\n", d.Synopsis)
	if explain {
		for _, line := range d.Explanation {
			fmt.Fprintf(b, "  %s\n", line)
		}
	}
}

// RollbackError is the compound result of an install whose rollback
// also failed in part: the original execute failure plus every revert
// failure, none omitted.
type RollbackError struct {
	Cause        error
	RevertErrors []error
}

func (e *RollbackError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "install failed: %v", e.Cause)
	fmt.Fprintf(&b, "; %d rollback step(s) also failed:", len(e.RevertErrors))
	for _, err := range e.RevertErrors {
		fmt.Fprintf(&b, "\n  - %v", err)
	}
	return b.String()
}

func (e *RollbackError) Unwrap() []error {
	return append([]error{e.Cause}, e.RevertErrors...)
}
