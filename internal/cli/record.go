package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tbaudit/internal/audit"
	"github.com/roach88/tbaudit/internal/canon"
	"github.com/roach88/tbaudit/internal/store"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	File    string
	TxHash  string
	Height  int64
	Signer  string
	MsgType string
}

// RecordOutput is the JSON payload of the record command. It describes the
// row as read back from the store.
type RecordOutput struct {
	ID       int64  `json:"id"`
	Inserted bool   `json:"inserted"`
	TaskID   string `json:"task_id"`
	Stage    string `json:"stage"`
	LogHash  string `json:"log_hash"`
	TxHash   string `json:"tx_hash,omitempty"`
	Height   *int64 `json:"height,omitempty"`
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Store a log stage detail as a local row",
		Long: `Store a JSON log stage detail in the local log store.

The detail is stored in canonical form and its content hash becomes the
row's log hash. Recording the same detail twice keeps a single row.
With --tx-hash the row is linked to the ledger transaction that committed it.

Example:
  tbaudit record --file detail.json
  tbaudit record --file - --tx-hash ABC123 --height 10001 < detail.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "detail JSON file, or - for stdin (required)")
	cmd.Flags().StringVar(&opts.TxHash, "tx-hash", "", "ledger transaction hash")
	cmd.Flags().Int64Var(&opts.Height, "height", 0, "ledger block height")
	cmd.Flags().StringVar(&opts.Signer, "signer", "", "ledger transaction signer")
	cmd.Flags().StringVar(&opts.MsgType, "msg-type", "", "ledger message type")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runRecord(opts *RecordOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	data, err := readInput(opts.File, cmd.InOrStdin())
	if err != nil {
		return f.Error(CodeInvalidInput, WrapExitError(ExitCommandError, "failed to read detail", err))
	}
	rec, err := localRecordFromDetail(data)
	if err != nil {
		return f.Error(CodeInvalidInput, WrapExitError(ExitCommandError, "invalid detail", err))
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

	id, inserted, err := sess.store.WriteLogDetail(ctx, rec)
	if err != nil {
		return f.Error(CodeStore, WrapExitError(ExitCommandError, "failed to write log detail", err))
	}
	f.VerboseLog("Wrote %s/%s as row %d (inserted=%t)", rec.TaskID, rec.Stage, id, inserted)

	if opts.TxHash != "" {
		ref := store.LedgerRef{
			TxHash:  opts.TxHash,
			Height:  opts.Height,
			Signer:  opts.Signer,
			MsgType: opts.MsgType,
		}
		if err := sess.store.AttachLedgerRef(ctx, id, ref); err != nil {
			return f.Error(CodeStore, WrapExitError(ExitCommandError, "failed to attach ledger reference", err))
		}
		f.VerboseLog("Attached ledger tx %s to row %d", opts.TxHash, id)
	}

	stored, err := sess.store.ReadLogDetail(ctx, id)
	if err != nil {
		return f.Error(CodeStore, WrapExitError(ExitCommandError, "failed to read back log detail", err))
	}

	out := RecordOutput{
		ID:       stored.ID,
		Inserted: inserted,
		TaskID:   stored.TaskID,
		Stage:    stored.Stage,
		LogHash:  stored.ContentHash,
		TxHash:   stored.TxHash,
		Height:   stored.Height,
	}

	return f.Success(out, func(w io.Writer) {
		verb := "Recorded"
		if !out.Inserted {
			verb = "Already recorded"
		}
		fmt.Fprintf(w, "✓ %s %s/%s as row %d\n", verb, out.TaskID, out.Stage, out.ID)
		fmt.Fprintf(w, "  log hash: %s\n", out.LogHash)
		if out.TxHash != "" {
			fmt.Fprintf(w, "  ledger tx: %s\n", out.TxHash)
		}
	})
}

// localRecordFromDetail builds a validated local row from a JSON detail.
func localRecordFromDetail(data []byte) (audit.LocalRecord, error) {
	detail, err := canon.DecodeObject(data)
	if err != nil {
		return audit.LocalRecord{}, err
	}
	entry, err := audit.EntryFromDetail(detail)
	if err != nil {
		return audit.LocalRecord{}, err
	}
	rec, err := audit.NewLocalRecord(entry, detail)
	if err != nil {
		return audit.LocalRecord{}, err
	}
	if err := audit.ValidateLocalRecord(rec, entry.TaskID); err != nil {
		return audit.LocalRecord{}, err
	}
	return rec, nil
}
