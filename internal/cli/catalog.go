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

// NewBooksCommand creates the books command group.
func NewBooksCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List and manage catalog books",
	}

	cmd.AddCommand(leaf("list", "List all books", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
		return withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			books, err := lib.ListBooks(ctx)
			if err != nil {
				return err
			}
			return out.Success(books, func(w io.Writer) { renderBooks(w, books) })
		})
	}))

	var book models.Book
	add := leaf("add", "Add a book to the catalog", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
		return withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			added, err := lib.AddBook(ctx, book)
			if err != nil {
				return err
			}
			return out.Success(added, func(w io.Writer) { fmt.Fprintf(w, "Added book %s: %s\n", added.ID, added.Title) })
		})
	})
	bookFlags(add, &book)
	cmd.AddCommand(add)

	var update models.Book
	edit := leaf("update", "Replace a book record", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
		return withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			updated, err := lib.UpdateBook(ctx, update)
			if err != nil {
				return err
			}
			return out.Success(updated, func(w io.Writer) { fmt.Fprintf(w, "Updated book %s\n", updated.ID) })
		})
	})
	bookFlags(edit, &update)
	cmd.AddCommand(edit)

	cmd.AddCommand(leaf("delete <bookId>", "Delete a book that is not issued", cobra.ExactArgs(1), func(cmd *cobra.Command, args []string) error {
		return withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			removed, err := lib.DeleteBook(ctx, args[0])
			if err != nil {
				return err
			}
			return out.Success(map[string]bool{"removed": removed}, func(w io.Writer) {
				if removed {
					fmt.Fprintf(w, "Deleted book %s\n", args[0])
				} else {
					fmt.Fprintf(w, "No book %s\n", args[0])
				}
			})
		})
	}))

	return cmd
}

func bookFlags(cmd *cobra.Command, book *models.Book) {
	cmd.Flags().StringVar(&book.ID, "id", "", "book id")
	cmd.Flags().StringVar(&book.Title, "title", "", "title")
	cmd.Flags().StringVar(&book.Author, "author", "", "author")
	cmd.Flags().StringVar(&book.Category, "category", "", "category")
	cmd.Flags().IntVar(&book.Quantity, "quantity", 1, "copies held")
	_ = cmd.MarkFlagRequired("id")
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return leaf("seed", "Add the branch-wise starter catalog", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
		return withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			added, err := lib.SeedBooks(ctx)
			if err != nil {
				return err
			}
			return out.Success(added, func(w io.Writer) { fmt.Fprintf(w, "Seeded %d books\n", len(added)) })
		})
	})
}

// NewStudentsCommand creates the students command group.
func NewStudentsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "List and manage students",
	}

	cmd.AddCommand(leaf("list", "List all students", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
		return withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			students, err := lib.ListStudents(ctx)
			if err != nil {
				return err
			}
			return out.Success(students, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tEMAIL")
				for _, s := range students {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Name, s.Email)
				}
				tw.Flush()
			})
		})
	}))

	var student models.Student
	register := leaf("register", "Register a student", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
		return withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			registered, err := lib.RegisterStudent(ctx, student)
			if err != nil {
				return err
			}
			return out.Success(registered, func(w io.Writer) { fmt.Fprintf(w, "Registered student %s: %s\n", registered.ID, registered.Name) })
		})
	})
	register.Flags().StringVar(&student.ID, "id", "", "student id")
	register.Flags().StringVar(&student.Name, "name", "", "full name")
	register.Flags().StringVar(&student.Email, "email", "", "email for reminders")
	_ = register.MarkFlagRequired("id")
	cmd.AddCommand(register)

	cmd.AddCommand(leaf("delete <studentId>", "Delete a student without loans", cobra.ExactArgs(1), func(cmd *cobra.Command, args []string) error {
		return withLibrary(rootOpts, cmd, func(ctx context.Context, lib *library.Service, out *OutputFormatter) error {
			removed, err := lib.DeleteStudent(ctx, args[0])
			if err != nil {
				return err
			}
			return out.Success(map[string]bool{"removed": removed}, func(w io.Writer) {
				if removed {
					fmt.Fprintf(w, "Deleted student %s\n", args[0])
				} else {
					fmt.Fprintf(w, "No student %s\n", args[0])
				}
			})
		})
	}))

	return cmd
}

func renderBooks(w io.Writer, books []models.Book) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tCATEGORY\tQTY\tISSUED TO")
	for _, b := range books {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", b.ID, b.Title, b.Author, b.Category, b.Quantity, b.IssuedTo)
	}
	tw.Flush()
}
