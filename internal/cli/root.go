// Package cli implements the finsync command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/NgigiN/finsync/internal/app"
	"github.com/NgigiN/finsync/internal/config"
	"github.com/NgigiN/finsync/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	DBPath string

	// LoadConfig reads the configuration; tests replace it.
	LoadConfig func() (*config.Config, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the finsync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{LoadConfig: config.Load})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finsync",
		Short: "finsync - offline-first transaction client",
		Long: `Log income and expense transactions against the finance backend.

Transactions that cannot reach the backend are kept in a local queue and
replayed when the connection comes back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to the local queue database (overrides DB_PATH)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSubmitCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewPruneCommand(opts))
	cmd.AddCommand(NewRequeueCommand(opts))

	return cmd
}

func (o *RootOptions) config() (*config.Config, error) {
	cfg, err := o.LoadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}
	logging.Init(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// withApp builds the services, runs fn and tears them down again.
func (o *RootOptions) withApp(fn func(a *app.App) error) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}

	runErr := fn(a)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil && runErr == nil {
		return WrapExitError(ExitCommandError, "failed to shut down cleanly", err)
	}
	return runErr
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		format, _ := cmd.PersistentFlags().GetString("format")
		RenderError(cmd.ErrOrStderr(), format, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
