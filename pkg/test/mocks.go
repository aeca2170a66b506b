package test

import (
	"bytes"
	"fmt"
	"log/slog"

	"basecamp/pkg/log"
	"basecamp/pkg/system"

	"github.com/spf13/afero"
)

// MockCommandRunner is a shared mock implementation of runner.CommandRunner for testing.
// It tracks executed commands and allows setting up responses and errors.
type MockCommandRunner struct {
	Commands  []string          // Track executed commands
	Responses map[string][]byte // Response by command key (user:command)
	Errors    map[string]error  // Error by command key
}

// NewMockCommandRunner creates a new MockCommandRunner with initialized maps.
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{
		Commands:  []string{},
		Responses: make(map[string][]byte),
		Errors:    make(map[string]error),
	}
}

// Run simulates running a command and returns configured response or error.
func (r *MockCommandRunner) Run(user, command string) ([]byte, error) {
	key := user + ":" + command
	r.Commands = append(r.Commands, command)

	if err, ok := r.Errors[key]; ok {
		return r.Responses[key], err
	}
	if resp, ok := r.Responses[key]; ok {
		return resp, nil
	}
	return nil, nil
}

// SetResponse configures a response for a specific user:command.
func (r *MockCommandRunner) SetResponse(user, command string, response []byte) {
	r.Responses[user+":"+command] = response
}

// SetError configures an error for a specific user:command.
func (r *MockCommandRunner) SetError(user, command string, err error) {
	r.Errors[user+":"+command] = err
}

// Reset clears all tracked commands and configurations.
func (r *MockCommandRunner) Reset() {
	r.Commands = []string{}
	r.Responses = make(map[string][]byte)
	r.Errors = make(map[string]error)
}

// NewTestHost builds a Host over the given filesystem with a mock
// runner and a LookPath stub that resolves every binary.
func NewTestHost(fs afero.Fs, runner *MockCommandRunner) *system.Host {
	return &system.Host{
		Fs:       fs,
		Runner:   runner,
		LookPath: FoundLookPath,
	}
}

// FoundLookPath resolves any binary name, as a host with all
// supervisor control binaries installed would.
func FoundLookPath(file string) (string, error) {
	return "/usr/bin/" + file, nil
}

// MissingLookPath fails every lookup, simulating absent control binaries.
func MissingLookPath(file string) (string, error) {
	return "", fmt.Errorf("exec: %q: executable file not found in $PATH", file)
}

// MockLogger is a shared mock implementation of Logger for testing.
// It captures logged messages for verification.
type MockLogger struct {
	Messages []string
	Level    slog.Level
}

// NewMockLogger creates a new MockLogger with the specified level.
func NewMockLogger(level slog.Level) *MockLogger {
	return &MockLogger{
		Messages: []string{},
		Level:    level,
	}
}

func (l *MockLogger) Debug(msg string, args ...any) {
	if l.Level <= slog.LevelDebug {
		l.captureMessage("DEBUG", msg, args...)
	}
}

func (l *MockLogger) Info(msg string, args ...any) {
	if l.Level <= slog.LevelInfo {
		l.captureMessage("INFO", msg, args...)
	}
}

func (l *MockLogger) Warn(msg string, args ...any) {
	if l.Level <= slog.LevelWarn {
		l.captureMessage("WARN", msg, args...)
	}
}

func (l *MockLogger) Error(msg string, args ...any) {
	if l.Level <= slog.LevelError {
		l.captureMessage("ERROR", msg, args...)
	}
}

func (l *MockLogger) captureMessage(level, msg string, args ...any) {
	buf := &bytes.Buffer{}
	buf.WriteString(level)
	buf.WriteString(": ")
	buf.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			buf.WriteString(" ")
			buf.WriteString(fmt.Sprintf("%v", args[i]))
			buf.WriteString("=")
			buf.WriteString(fmt.Sprintf("%v", args[i+1]))
		}
	}
	l.Messages = append(l.Messages, buf.String())
}

// HasMessage checks if any captured message contains the given substring.
func (l *MockLogger) HasMessage(substring string) bool {
	for _, msg := range l.Messages {
		if bytes.Contains([]byte(msg), []byte(substring)) {
			return true
		}
	}
	return false
}

// SlogLogger creates a real slog logger writing to a throwaway buffer.
func SlogLogger(level slog.Level) log.Logger {
	buf := &bytes.Buffer{}
	return log.NewSlogLogger(level, buf)
}
