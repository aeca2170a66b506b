package cmd

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"basecamp/pkg/actions"
	"basecamp/pkg/plan"
	"basecamp/pkg/system"
	"basecamp/pkg/test"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the CLI against a substitute host, feeding input
// to any prompts and capturing all output. Flag values stick to their
// package-level variables between invocations, so every flag is reset
// to its default first.
func executeCommand(t *testing.T, h *system.Host, input string, args ...string) (string, error) {
	prevHost := host
	host = h
	t.Cleanup(func() { host = prevHost })

	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}

	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}

func newCmdTestHost() (*system.Host, afero.Fs) {
	fs := afero.NewMemMapFs()
	return test.NewTestHost(fs, test.NewMockCommandRunner()), fs
}

func TestPlanCommand_JSON(t *testing.T) {
	h, _ := newCmdTestHost()

	out, err := executeCommand(t, h, "", "plan", "--json")
	require.NoError(t, err)

	var planned []actionForJSON
	require.NoError(t, json.Unmarshal([]byte(out), &planned))
	require.Len(t, planned, 4)
	assert.Equal(t, actions.TagCreateDirectory, planned[0].Action)
	assert.Equal(t, actions.TagPlaceConfiguration, planned[2].Action)
	assert.Equal(t, actions.TagConfigureInitService, planned[3].Action)
	assert.NotEmpty(t, planned[3].Synopsis)
}

func TestPlanCommand_Text(t *testing.T) {
	h, _ := newCmdTestHost()

	out, err := executeCommand(t, h, "", "plan")
	require.NoError(t, err)
	assert.Contains(t, out, "This install is for:")
	assert.Contains(t, out, "Init system: none")
	assert.Contains(t, out, "The following actions will be taken:")
}

func TestInstallThenRevertRoundTrip(t *testing.T) {
	h, fs := newCmdTestHost()

	out, err := executeCommand(t, h, "", "install", "--no-confirm")
	require.NoError(t, err)
	assert.Contains(t, out, "The following actions will be taken:")

	test.AssertFileExists(t, fs, actions.DaemonConfigPath, "")
	test.AssertFileExists(t, fs, plan.DefaultReceiptPath, "")

	_, err = executeCommand(t, h, "", "revert", "--no-confirm")
	require.NoError(t, err)

	test.AssertFileNotExists(t, fs, actions.DaemonConfigPath)
	exists, err := afero.DirExists(fs, "/opt/basecamp/etc")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestInstallDeclinedAtPrompt(t *testing.T) {
	h, fs := newCmdTestHost()

	out, err := executeCommand(t, h, "n\n", "install")
	require.NoError(t, err)
	assert.Contains(t, out, "Proceed with the install?")
	assert.Contains(t, out, "Okay, didn't do anything!")

	test.AssertFileNotExists(t, fs, plan.DefaultReceiptPath)
}

func TestRevert_MissingReceipt(t *testing.T) {
	h, _ := newCmdTestHost()

	_, err := executeCommand(t, h, "", "revert", "--no-confirm", "/opt/basecamp/nope.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading receipt")
}

func TestRootCommand_RejectsBadLogLevel(t *testing.T) {
	h, _ := newCmdTestHost()

	_, err := executeCommand(t, h, "", "plan", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestParseLogLevel(t *testing.T) {
	level, err := parseLogLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = parseLogLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, level)

	_, err = parseLogLevel("verbose")
	require.Error(t, err)
}
