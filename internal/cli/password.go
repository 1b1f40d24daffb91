package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// NewHashPasswordCommand creates the hash-password command, which prints a
// bcrypt hash for ADMIN_PASSWORD_HASH.
func NewHashPasswordCommand(rootOpts *RootOptions) *cobra.Command {
	var cost int
	cmd := leaf("hash-password", "Hash an admin password for ADMIN_PASSWORD_HASH", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
		out := formatter(rootOpts, cmd)

		password, err := readPassword(cmd)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "failed to read password", Err: err}
		}
		if len(password) == 0 {
			return &ExitError{Code: ExitCommandError, Message: "password must not be empty"}
		}

		hash, err := bcrypt.GenerateFromPassword(password, cost)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "failed to hash password", Err: err}
		}
		return out.Success(string(hash), nil)
	})
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

// readPassword prompts without echo on a terminal, otherwise reads one line
func readPassword(cmd *cobra.Command) ([]byte, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		return password, err
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}
