// Package cli implements the cdcflow command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/config"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/middleware"
)

// ConfigEnv names the environment variable consulted when --config is unset.
const ConfigEnv = "CDCFLOW_CONFIG"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config   string
	LogLevel string
	Format   string // "json" | "text"
	EnvFile  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cdcflow CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cdcflow",
		Short: "cdcflow - change-event queue and dispatcher",
		Long: `Buffer row-level change events per table.operation key and dispatch
them to handlers with retry and middleware.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if _, err := parseLevel(opts.LogLevel); err != nil {
				return err
			}
			// A missing .env is normal.
			_ = godotenv.Load(opts.EnvFile)
			if opts.Config == "" {
				opts.Config = os.Getenv(ConfigEnv)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "engine config file (.yaml, .yml, .json); defaults to $"+ConfigEnv)
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// newLogger writes text logs to w. Logs never go to stdout so that JSON
// output stays parseable.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level, _ := parseLevel(opts.LogLevel)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadEngineConfig resolves the engine configuration. With no file the
// defaults apply.
func loadEngineConfig(path string, deps middleware.Deps) (cdcflow.Config, error) {
	if path == "" {
		return cdcflow.DefaultConfig, nil
	}
	doc, err := config.FromFile(path)
	if err != nil {
		return cdcflow.Config{}, err
	}
	return cdcflow.ConfigFrom(doc, deps)
}
