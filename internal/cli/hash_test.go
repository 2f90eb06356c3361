package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tbaudit/internal/canon"
)

func TestHashFromStdin(t *testing.T) {
	out, _, err := executeWithInput(&RootOptions{}, `{"b": 1, "a": "x"}`, "hash")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"a":"x","b":1}`, lines[0])
	assert.Equal(t, canon.Sum([]byte(`{"a":"x","b":1}`)), lines[1])
}

func TestHashFromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detail.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"stage":"RECV","ts":1700000000}`), 0o644))

	out, _, err := execute(&RootOptions{}, "hash", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   HashOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, `{"stage":"RECV","ts":1700000000}`, resp.Data.Canonical)
	assert.True(t, canon.IsHash(resp.Data.Hash))
}

func TestHashKeyOrderIndependent(t *testing.T) {
	first, _, err := executeWithInput(&RootOptions{}, `{"a":1,"b":[1,2]}`, "hash", "-")
	require.NoError(t, err)
	second, _, err := executeWithInput(&RootOptions{}, `{"b":[1,2],"a":1}`, "hash", "-")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestHashRejectsFloats(t *testing.T) {
	_, _, err := executeWithInput(&RootOptions{}, `{"p":0.25}`, "hash")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHashMissingFile(t *testing.T) {
	_, _, err := execute(&RootOptions{}, "hash", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to read input")
}
