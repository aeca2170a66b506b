package system

import (
	"os/exec"

	"basecamp/pkg/runner"

	"github.com/spf13/afero"
)

// CommandRunner defines an interface for running commands.
// This allows for mocking in tests.
// Re-exported from pkg/runner to keep import cycles out of pkg/test.
type CommandRunner = runner.CommandRunner

// LiveCommandRunner is an implementation of CommandRunner that runs commands on the live system.
type LiveCommandRunner struct{}

// Run executes the given command and returns its output.
func (r *LiveCommandRunner) Run(user, command string) ([]byte, error) {
	cmd := exec.Command("sh", "-c", command)
	return cmd.CombinedOutput()
}

// LiveHost returns a Host backed by the real OS: the native filesystem,
// PATH lookup, and shell command execution.
func LiveHost() *Host {
	return &Host{
		Fs:       afero.NewOsFs(),
		Runner:   &LiveCommandRunner{},
		LookPath: exec.LookPath,
	}
}
