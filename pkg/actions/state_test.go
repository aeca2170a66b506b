package actions

import (
	"encoding/json"
	"log/slog"
	"testing"

	"basecamp/pkg/test"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatefulAction_Transitions(t *testing.T) {
	fs := afero.NewMemMapFs()
	host := test.NewTestHost(fs, test.NewMockCommandRunner())
	logger := test.SlogLogger(slog.LevelDebug)

	sa := NewStatefulAction(NewCreateDirectory("/opt/basecamp/etc", "0755"))
	assert.Equal(t, StateUncompleted, sa.State())

	// Revert before execute is illegal.
	err := sa.Revert(host, logger)
	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, "revert", transition.Op)

	require.NoError(t, sa.Execute(host, logger))
	assert.Equal(t, StateCompleted, sa.State())

	// Execute twice is illegal.
	err = sa.Execute(host, logger)
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, "execute", transition.Op)

	require.NoError(t, sa.Revert(host, logger))
	assert.Equal(t, StateUncompleted, sa.State())
}

func TestStatefulAction_FailedExecuteDoesNotAdvanceState(t *testing.T) {
	fs := afero.NewMemMapFs()
	host := test.NewTestHost(fs, test.NewMockCommandRunner())
	logger := test.SlogLogger(slog.LevelDebug)

	// An unparseable mode makes execute fail after the state check.
	sa := NewStatefulAction(NewCreateDirectory("/opt/basecamp/etc", "not-octal"))
	err := sa.Execute(host, logger)
	require.Error(t, err)
	assert.Equal(t, StateUncompleted, sa.State())
}

func TestStatefulAction_EnvelopeRoundTrip(t *testing.T) {
	action := NewCreateDirectory("/opt/basecamp/var", "0755")
	action.Created = true
	sa := CompletedAction(action)

	data, err := json.Marshal(sa)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"create_directory"`)
	assert.Contains(t, string(data), `"state":"completed"`)

	var decoded StatefulAction
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, StateCompleted, decoded.State())

	dir, ok := decoded.Action.(*CreateDirectory)
	require.True(t, ok)
	assert.Equal(t, "/opt/basecamp/var", dir.Path)
	assert.True(t, dir.Created)
}

func TestStatefulAction_UnknownTagRejected(t *testing.T) {
	var decoded StatefulAction
	err := json.Unmarshal([]byte(`{"action":"mystery","state":"completed","params":{}}`), &decoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action tag")
}

func TestStatefulAction_UnknownStateRejected(t *testing.T) {
	var decoded StatefulAction
	err := json.Unmarshal([]byte(`{"action":"create_directory","state":"half-done","params":{}}`), &decoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action state")
}
