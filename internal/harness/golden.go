package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tbaudit/internal/audit"
	"github.com/roach88/tbaudit/internal/canon"
)

// ReportSnapshot is the hash-free projection of a report compared against
// golden files. Hashes are left out so fixture changes that keep the
// classification do not churn every snapshot.
type ReportSnapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap converts the snapshot to a map[string]any for canonical
// serialization.
func (s *ReportSnapshot) toCanonicalMap() map[string]any {
	out := map[string]any{
		"scenario_name": s.ScenarioName,
	}
	if s.Result.Report == nil {
		out["unavailable"] = string(s.Result.Unavailable)
		return out
	}

	r := s.Result.Report
	items := make([]any, len(r.Items))
	for i, item := range r.Items {
		m := map[string]any{
			"stage":  item.Stage,
			"ts":     item.Timestamp,
			"status": string(item.Status),
		}
		if item.Reason != "" {
			m["reason"] = string(item.Reason)
		}
		items[i] = m
	}

	malformed := make([]any, len(r.Malformed))
	for i, rec := range r.Malformed {
		malformed[i] = map[string]any{
			"side": string(rec.Side),
			"key":  rec.Key,
		}
	}

	out["task_id"] = r.TaskID
	out["items"] = items
	out["malformed"] = malformed
	out["summary"] = summaryMap(r.Summary)
	return out
}

func summaryMap(s audit.Summary) map[string]any {
	m := make(map[string]any, len(summaryFields))
	for name, get := range summaryFields {
		m[name] = get(s)
	}
	return m
}

// RunWithGolden executes a scenario and compares the report against a golden
// file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the report doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := ReportSnapshot{ScenarioName: scenarioName, Result: result}
	data, err := canon.Marshal(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
