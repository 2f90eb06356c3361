package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoldenT1(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/t1_tampered_exec.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestGoldenLedgerUnavailable(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/ledger_unavailable.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, scenario.Name, result))
}

func TestSnapshotOmitsHashes(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/t1_tampered_exec.yaml")
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)

	snapshot := ReportSnapshot{ScenarioName: scenario.Name, Result: result}
	m := snapshot.toCanonicalMap()
	items, ok := m["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 4)
	for _, item := range items {
		fields := item.(map[string]any)
		assert.NotContains(t, fields, "ledger_hash")
		assert.NotContains(t, fields, "local_hash")
	}
}
