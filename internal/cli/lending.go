package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lendingdesk/internal/library"
	"lendingdesk/internal/models"
)

// NewIssueCommand creates the issue command.
func NewIssueCommand(rootOpts *RootOptions) *cobra.Command {
	return leaf("issue <bookId> <studentId>", "Lend a book to a student", cobra.ExactArgs(2), func(cmd *cobra.Command, args []string) error {
		return withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			issue, err := lib.IssueBook(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return out.Success(issue, func(w io.Writer) {
				fmt.Fprintf(w, "Issued %s to %s, due %s\n", issue.BookTitle, issue.StudentName, issue.DueDate)
			})
		})
	})
}

// NewReturnCommand creates the return command.
// The student id is required unless the desk runs the unverified return policy.
func NewReturnCommand(rootOpts *RootOptions) *cobra.Command {
	return leaf("return <bookId> [studentId]", "Return an issued book", cobra.RangeArgs(1, 2), func(cmd *cobra.Command, args []string) error {
		var studentID string
		if len(args) == 2 {
			studentID = args[1]
		}
		return withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			msg, err := lib.ReturnBook(ctx, args[0], studentID)
			if err != nil {
				return err
			}
			return out.Success(msg, nil)
		})
	})
}

// NewRemindCommand creates the remind command.
func NewRemindCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool
	cmd := leaf("remind <bookId>", "Send a return reminder to the holder of a book", cobra.ExactArgs(1), func(cmd *cobra.Command, args []string) error {
		return withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			msg, err := lib.SendManualReminder(ctx, args[0], force)
			if err != nil {
				return err
			}
			return out.Success(msg, nil)
		})
	})
	cmd.Flags().BoolVar(&force, "force", false, "send even if a reminder was already sent")
	return cmd
}

// NewIssuesCommand creates the issues command.
func NewIssuesCommand(rootOpts *RootOptions) *cobra.Command {
	return leaf("issues", "List all issues", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
		return withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			issues, err := lib.ListIssues(ctx)
			if err != nil {
				return err
			}
			return out.Success(issues, func(w io.Writer) { renderIssues(w, issues) })
		})
	})
}

// NewOverdueCommand creates the overdue command.
func NewOverdueCommand(rootOpts *RootOptions) *cobra.Command {
	return leaf("overdue", "List active issues past their due date", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
		return withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			issues, err := lib.Overdue(ctx)
			if err != nil {
				return err
			}
			return out.Success(issues, func(w io.Writer) { renderIssues(w, issues) })
		})
	})
}

// NewVerifyCommand creates the verify command. Drift exits with ExitFailure.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return leaf("verify", "Check that book flags agree with active issues", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
		var drift int
		err := withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			violations, err := lib.Verify(ctx)
			if err != nil {
				return err
			}
			drift = len(violations)
			return out.Success(violations, func(w io.Writer) {
				if len(violations) == 0 {
					fmt.Fprintln(w, "OK")
					return
				}
				for _, v := range violations {
					fmt.Fprintf(w, "%s: %s\n", v.BookID, v.Reason)
				}
			})
		})
		if err == nil && drift > 0 {
			return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d inconsistent books", drift)}
		}
		return err
	})
}

// NewLogsCommand creates the logs command.
func NewLogsCommand(rootOpts *RootOptions) *cobra.Command {
	return leaf("logs", "Show the audit trail, oldest first", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
		return withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			logs, err := lib.ListLogs(ctx)
			if err != nil {
				return err
			}
			return out.Success(logs, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, l := range logs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Timestamp, l.ActionType, l.Actor, l.Description)
				}
				tw.Flush()
			})
		})
	})
}

func renderIssues(w io.Writer, issues []models.Issue) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BOOK\tTITLE\tSTUDENT\tISSUED\tDUE\tRETURNED")
	for _, i := range issues {
		returned := "-"
		if i.ReturnDate != nil {
			returned = *i.ReturnDate
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", i.BookID, i.BookTitle, i.StudentID, i.IssueDate, i.DueDate, returned)
	}
	tw.Flush()
}
