package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"basecamp/pkg/log"
	"basecamp/pkg/settings"
	"basecamp/pkg/system"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	settingsFile string
	logLevel     string
	logger       log.Logger
	host         = system.LiveHost()
	rootCmd      = &cobra.Command{
		Use:   "basecamp",
		Short: "basecamp installs and uninstalls the basecamp distribution",
		Long: `A transactional installer for the basecamp distribution.
Every change it makes to the host is recorded in a durable receipt,
and a later invocation can revert the whole install from that record.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLogLevel(logLevel)
			if err != nil {
				return err
			}
			writer := cmd.ErrOrStderr()
			logger = log.NewSlogLogger(level, writer)
			ctx := context.WithValue(cmd.Context(), "logger", logger)
			cmd.SetContext(ctx)
			return nil
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseLogLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", levelStr)
	}
}

// loadSettings reads the settings file, falling back to defaults when
// the default file is absent. An explicitly given file must exist.
func loadSettings() (settings.InstallSettings, error) {
	exists, err := afero.Exists(host.Fs, settingsFile)
	if err != nil {
		return settings.Default(), err
	}
	if !exists && !rootCmd.PersistentFlags().Changed("settings") {
		return settings.Default(), nil
	}
	return settings.Load(host.Fs, settingsFile)
}

// confirm prints a yes/no prompt and reads one line of input.
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "./basecamp.yaml", "settings file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
