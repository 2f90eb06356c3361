package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tbaudit/internal/canon"
)

// HashOutput is the JSON payload of the hash command.
type HashOutput struct {
	Canonical string `json:"canonical"`
	Hash      string `json:"hash"`
}

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash [file|-]",
		Short: "Print the canonical form and content hash of a JSON value",
		Long: `Read a JSON value from a file (or stdin when the argument is "-" or
omitted), print its canonical serialization and the hex SHA-256 of it.

Floats are rejected: quantities must be scaled to integers first.

Example:
  tbaudit hash detail.json
  echo '{"b":1,"a":2}' | tbaudit hash`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runHash(rootOpts, path, cmd)
		},
	}
	return cmd
}

func runHash(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return f.Error(CodeInvalidInput, WrapExitError(ExitCommandError, "failed to read input", err))
	}
	f.VerboseLog("Read %d byte(s) from %s", len(data), path)

	v, err := canon.Decode(data)
	if err != nil {
		return f.Error(CodeInvalidInput, WrapExitError(ExitCommandError, "invalid input", err))
	}
	canonical, err := canon.Marshal(v)
	if err != nil {
		return f.Error(CodeInvalidInput, WrapExitError(ExitCommandError, "cannot canonicalize input", err))
	}
	out := HashOutput{Canonical: string(canonical), Hash: canon.Sum(canonical)}

	return f.Success(out, func(w io.Writer) {
		fmt.Fprintln(w, out.Canonical)
		fmt.Fprintln(w, out.Hash)
	})
}

// readInput reads path, or stdin for "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
