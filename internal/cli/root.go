// Package cli implements libctl, the administrative command line for the lending desk.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"lendingdesk/internal/library"
)

// Opener connects to the configured library. The returned func releases it.
type Opener func(ctx context.Context) (*library.Service, func() error, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	Open   Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for libctl.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{Open: open}

	cmd := &cobra.Command{
		Use:   "libctl",
		Short: "libctl - lending desk administration",
		Long:  "Manage books, students, issues and reminders of the lending desk from the terminal.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewBooksCommand(opts))
	cmd.AddCommand(NewStudentsCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewIssueCommand(opts))
	cmd.AddCommand(NewReturnCommand(opts))
	cmd.AddCommand(NewRemindCommand(opts))
	cmd.AddCommand(NewIssuesCommand(opts))
	cmd.AddCommand(NewOverdueCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewLogsCommand(opts))
	cmd.AddCommand(NewHashPasswordCommand(opts))

	return cmd
}

func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
}

// withLibrary opens the library, runs fn and reports its error through the formatter
func withLibrary(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, lib *library.Service, out *OutputFormatter) error) error {
	out := formatter(opts, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	lib, release, err := opts.Open(ctx)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "failed to open library", Err: err}
	}
	defer release()

	if err := fn(ctx, lib, out); err != nil {
		return out.Fail(err)
	}
	return nil
}

func leaf(use, short string, args cobra.PositionalArgs, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          args,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Errors are rendered by the formatter
		RunE:          run,
	}
}
