package actions

import (
	"encoding/json"
	"fmt"

	"basecamp/pkg/log"
	"basecamp/pkg/system"
)

// State is the completion state of a stateful action.
type State string

const (
	StateUncompleted State = "uncompleted"
	StateCompleted   State = "completed"
)

// StatefulAction pairs an Action with its completion state and
// enforces the legal transition sequence: Execute is only valid from
// uncompleted and moves to completed on success; Revert is only valid
// from completed and moves back to uncompleted on success. A failed
// Execute or Revert leaves the state untouched; the caller decides
// what happens next.
type StatefulAction struct {
	Action Action
	state  State
}

// NewStatefulAction wraps a freshly planned action.
func NewStatefulAction(a Action) *StatefulAction {
	return &StatefulAction{Action: a, state: StateUncompleted}
}

// CompletedAction wraps an action already known to have executed, as
// when reconstructing from a receipt.
func CompletedAction(a Action) *StatefulAction {
	return &StatefulAction{Action: a, state: StateCompleted}
}

func (s *StatefulAction) State() State {
	return s.state
}

// Execute runs the underlying action if the transition is legal.
func (s *StatefulAction) Execute(host *system.Host, logger log.Logger) error {
	if s.state != StateUncompleted {
		return &ActionError{Tag: s.Action.Tag(), Err: &TransitionError{Op: "execute", State: s.state}}
	}
	if err := s.Action.Execute(host, logger); err != nil {
		return err
	}
	s.state = StateCompleted
	return nil
}

// Revert undoes the underlying action if the transition is legal.
func (s *StatefulAction) Revert(host *system.Host, logger log.Logger) error {
	if s.state != StateCompleted {
		return &ActionError{Tag: s.Action.Tag(), Err: &TransitionError{Op: "revert", State: s.state}}
	}
	if err := s.Action.Revert(host, logger); err != nil {
		return err
	}
	s.state = StateUncompleted
	return nil
}

// envelope is the stable wire form of a stateful action: the action
// tag selects the concrete type, params carries everything its revert
// needs later.
type envelope struct {
	Action string          `json:"action"`
	State  State           `json:"state"`
	Params json.RawMessage `json:"params"`
}

func (s *StatefulAction) MarshalJSON() ([]byte, error) {
	params, err := json.Marshal(s.Action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Action: s.Action.Tag(),
		State:  s.state,
		Params: params,
	})
}

func (s *StatefulAction) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	action, err := fromTag(env.Action)
	if err != nil {
		return err
	}
	if len(env.Params) > 0 {
		if err := json.Unmarshal(env.Params, action); err != nil {
			return fmt.Errorf("decoding params for action %q: %w", env.Action, err)
		}
	}
	switch env.State {
	case StateUncompleted, StateCompleted:
	default:
		return fmt.Errorf("unknown action state %q", env.State)
	}
	s.Action = action
	s.state = env.State
	return nil
}

// fromTag maps a stable tag back to an empty concrete action. The set
// is closed; an unknown tag means the receipt was written by a newer
// or foreign build and cannot be safely reverted.
func fromTag(tag string) (Action, error) {
	switch tag {
	case TagConfigureInitService:
		return &ConfigureInitService{}, nil
	case TagCreateDirectory:
		return &CreateDirectory{}, nil
	case TagPlaceConfiguration:
		return &PlaceConfiguration{}, nil
	default:
		return nil, fmt.Errorf("unknown action tag %q", tag)
	}
}
