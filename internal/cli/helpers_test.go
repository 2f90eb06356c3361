package cli

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tbaudit/internal/store"
	"github.com/roach88/tbaudit/internal/testutil"
)

// execute runs the root command with opts and args, capturing both streams.
func execute(opts *RootOptions, args ...string) (string, string, error) {
	return executeWithInput(opts, "", args...)
}

func executeWithInput(opts *RootOptions, stdin string, args ...string) (string, string, error) {
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// testDB returns the path of a fresh database under t.TempDir().
func testDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	return path
}

// seedScenarioT1 writes the T1 local rows into the database at path and
// mutates row 2 in place, the way an operator editing the database would.
// Returns a fake ledger holding T1's ledger records.
func seedScenarioT1(t *testing.T, path string) *testutil.FakeLedger {
	t.Helper()
	ctx := context.Background()
	fx := testutil.ScenarioT1()

	st, err := store.Open(path)
	require.NoError(t, err)

	var ids []int64
	for i, rec := range fx.Local {
		if i == 1 {
			rec = testutil.Local(rec.ID, fx.Ledger[1].LogStageEntry)
		}
		id, inserted, err := st.WriteLogDetail(ctx, rec)
		require.NoError(t, err)
		require.True(t, inserted)
		ids = append(ids, id)
	}
	require.Equal(t, []int64{1, 2, 3}, ids)
	require.NoError(t, st.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.ExecContext(ctx, `UPDATE log_details SET detail_json = ? WHERE id = 2`, fx.Local[1].DetailPayload)
	require.NoError(t, err)

	ledger := testutil.NewFakeLedger()
	ledger.Set(fx.TaskID, fx.Ledger...)
	return ledger
}
