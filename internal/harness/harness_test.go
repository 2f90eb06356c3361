package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tbaudit/internal/audit"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunReportsFailedAssertions(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_expectation
description: "expects a match that cannot happen"
task_id: T1
ledger:
  - { stage: RECV, ts: 1700000000, height: 1 }
assertions:
  - { type: item, stage: RECV, ts: 1700000000, status: match }
  - { type: status_count, status: missingLocal, count: 1 }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: item")
	assert.Contains(t, result.Errors[0], "[1] RECV 1700000000 missingLocal")
}

func TestRunLocalUnavailable(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: local_down
description: "local store down"
task_id: T1
local_unavailable: true
assertions:
  - { type: unavailable, side: local }
  - { type: status_count, status: match, count: 0 }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.Nil(t, result.Report)
	assert.Equal(t, audit.SideLocal, result.Unavailable)
	assert.False(t, result.Pass, "report assertions cannot hold without a report")
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "local source unavailable")
}

func TestRunRejectsFloatTamper(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: float_tamper
description: "floats cannot enter a detail"
task_id: T1
local:
  - { stage: RECV, ts: 1700000000, tamper: { p: 0.5 } }
assertions:
  - { type: status_count, status: orphanLocal, count: 1 }
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `local[0].tamper["p"]`)
}

func TestRunIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/t1_tampered_exec.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, first.Report, second.Report)
}
