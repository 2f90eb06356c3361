package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tbaudit/internal/canon"
	"github.com/roach88/tbaudit/internal/store"
)

// ResultOptions holds flags for the result put command.
type ResultOptions struct {
	*RootOptions
	File      string
	EdgeAddr  string
	Signature string
	Verified  bool
	TxHash    string
	Height    int64
	Signer    string
}

// ResultOutput is the JSON payload of the result commands.
type ResultOutput struct {
	TaskID         string       `json:"task_id"`
	ChosenEdgeAddr string       `json:"chosen_edge_addr"`
	Result         canon.Object `json:"result"`
	ResultHash     string       `json:"result_hash"`
	ResultSig      string       `json:"result_sig,omitempty"`
	Verified       bool         `json:"verified"`
	TxHash         string       `json:"tx_hash,omitempty"`
	Height         *int64       `json:"height,omitempty"`
	Signer         string       `json:"signer,omitempty"`
	CreatedAt      int64        `json:"created_at"`
	UpdatedAt      int64        `json:"updated_at"`
}

// NewResultCommand creates the result command group.
func NewResultCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result",
		Short: "Store or show the chosen result of a task",
	}
	cmd.AddCommand(newResultPutCommand(rootOpts))
	cmd.AddCommand(newResultShowCommand(rootOpts))
	return cmd
}

func newResultPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResultOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <task-id>",
		Short: "Store the chosen result of a task",
		Long: `Store the result chosen for a task. The result is a JSON object; its
content hash is stored alongside it. Storing a result again replaces it.

Example:
  tbaudit result put T1 --file result.json --edge cosmos1edge --verified`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResultPut(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "result JSON file, or - for stdin (required)")
	cmd.Flags().StringVar(&opts.EdgeAddr, "edge", "", "address of the edge whose result was chosen (required)")
	cmd.Flags().StringVar(&opts.Signature, "sig", "", "result signature")
	cmd.Flags().BoolVar(&opts.Verified, "verified", false, "mark the result as verified")
	cmd.Flags().StringVar(&opts.TxHash, "tx-hash", "", "ledger transaction hash")
	cmd.Flags().Int64Var(&opts.Height, "height", 0, "ledger block height")
	cmd.Flags().StringVar(&opts.Signer, "signer", "", "ledger transaction signer")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("edge")

	return cmd
}

func runResultPut(opts *ResultOptions, taskID string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	data, err := readInput(opts.File, cmd.InOrStdin())
	if err != nil {
		return f.Error(CodeInvalidInput, WrapExitError(ExitCommandError, "failed to read result", err))
	}
	result, err := canon.DecodeObject(data)
	if err != nil {
		return f.Error(CodeInvalidInput, WrapExitError(ExitCommandError, "invalid result", err))
	}
	resultHash, err := canon.ContentHash(result)
	if err != nil {
		return f.Error(CodeInvalidInput, WrapExitError(ExitCommandError, "invalid result", err))
	}

	tr := store.TaskResult{
		TaskID:         taskID,
		ChosenEdgeAddr: opts.EdgeAddr,
		Result:         result,
		ResultHash:     resultHash,
		ResultSig:      opts.Signature,
		Verified:       opts.Verified,
		TxHash:         opts.TxHash,
		Signer:         opts.Signer,
	}
	if opts.Height > 0 {
		height := opts.Height
		tr.Height = &height
	}

	sess, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return f.Error(CodeCommand, err)
	}
	defer sess.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := sess.store.UpsertTaskResult(ctx, tr); err != nil {
		return f.Error(CodeStore, WrapExitError(ExitCommandError, "failed to store result", err))
	}
	f.VerboseLog("Stored result of %s (hash %s)", taskID, resultHash)
	stored, err := sess.store.ReadTaskResult(ctx, taskID)
	if err != nil {
		return f.Error(CodeStore, WrapExitError(ExitCommandError, "failed to read back result", err))
	}
	return writeResult(f, stored)
}

func newResultShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <task-id>",
		Short:         "Show the stored result of a task",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			sess, err := openSession(rootOpts, cmd)
			if err != nil {
				return f.Error(CodeCommand, err)
			}
			defer sess.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			tr, err := sess.store.ReadTaskResult(ctx, args[0])
			if errors.Is(err, store.ErrNotFound) {
				return f.Error(CodeNotFound, WrapExitError(ExitCommandError, "no result stored", err))
			}
			if err != nil {
				return f.Error(CodeStore, WrapExitError(ExitCommandError, "failed to read result", err))
			}
			return writeResult(f, tr)
		},
	}
}

func writeResult(f *OutputFormatter, tr store.TaskResult) error {
	out := ResultOutput{
		TaskID:         tr.TaskID,
		ChosenEdgeAddr: tr.ChosenEdgeAddr,
		Result:         tr.Result,
		ResultHash:     tr.ResultHash,
		ResultSig:      tr.ResultSig,
		Verified:       tr.Verified,
		TxHash:         tr.TxHash,
		Height:         tr.Height,
		Signer:         tr.Signer,
		CreatedAt:      tr.CreatedAt,
		UpdatedAt:      tr.UpdatedAt,
	}

	return f.Success(out, func(w io.Writer) {
		mark := "✗"
		if out.Verified {
			mark = "✓"
		}
		fmt.Fprintf(w, "Task %s: result from %s\n", out.TaskID, out.ChosenEdgeAddr)
		fmt.Fprintf(w, "  %s verified\n", mark)
		fmt.Fprintf(w, "  result hash: %s\n", out.ResultHash)
		if out.TxHash != "" {
			fmt.Fprintf(w, "  tx: %s\n", out.TxHash)
		}
	})
}
