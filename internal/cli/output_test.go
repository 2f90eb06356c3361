package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(HashOutput{Canonical: "{}", Hash: "abc"}, func(w io.Writer) {
		t.Fatal("text renderer called in json mode")
	})
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   HashOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "abc", resp.Data.Hash)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success(nil, func(w io.Writer) {
		fmt.Fprintln(w, "Task T1: clean")
	})
	require.NoError(t, err)
	assert.Equal(t, "Task T1: clean\n", buf.String())
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	cause := errors.New("connection refused")
	exitErr := WrapExitError(ExitSourceUnavailable, "ledger source unavailable", cause)
	err := formatter.Error(CodeSourceUnavailable, exitErr)
	assert.Same(t, exitErr, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SOURCE_UNAVAILABLE", resp.Error.Code)
	assert.Equal(t, "ledger source unavailable", resp.Error.Message)
	assert.Equal(t, "connection refused", resp.Error.Details)
}

func TestOutputFormatter_TextErrorWritesNothing(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	exitErr := NewExitError(ExitCommandError, "bad args")
	err := formatter.Error(CodeCommand, exitErr)
	assert.Same(t, exitErr, err)
	assert.Empty(t, buf.String())
}

func TestOutputFormatter_Partial(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	out := ReconcileOutput{Failures: []TaskFailure{{TaskID: "T1", Retryable: true}}}
	err := formatter.Partial(out, failureError(out.Failures), func(io.Writer) {})
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   ReconcileOutput `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeSourceUnavailable, resp.Error.Code)
	assert.Len(t, resp.Data.Failures, 1)
}

func TestFailureErrorCode(t *testing.T) {
	assert.Equal(t, CodeAuditFailed, failureError([]TaskFailure{{TaskID: "T1"}}).Code)
	assert.Equal(t, CodeSourceUnavailable,
		failureError([]TaskFailure{{TaskID: "T1"}, {TaskID: "T2", Retryable: true}}).Code)
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Reconciling %s", "T1")

			assert.Empty(t, out.String(), "verbose output must not corrupt stdout")
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "Reconciling T1")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"matches": 3},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "INVALID_TASK_ID",
		Message: "task id is empty",
		Details: []string{"taskId"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "INVALID_TASK_ID", decoded.Code)
	assert.Equal(t, "task id is empty", decoded.Message)
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain_error", errors.New("unknown flag: --bogus"), ExitCommandError},
		{"anomalies", NewExitError(ExitFailure, "anomalies found"), ExitFailure},
		{"command_error", NewExitError(ExitCommandError, "bad args"), ExitCommandError},
		{"wrapped", fmt.Errorf("outer: %w", WrapExitError(ExitSourceUnavailable, "ledger down", errors.New("eof"))), ExitSourceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	inner := errors.New("connection refused")
	err := WrapExitError(ExitSourceUnavailable, "ledger source unavailable", inner)
	assert.Equal(t, "ledger source unavailable: connection refused", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "bad args", NewExitError(ExitCommandError, "bad args").Error())
}
