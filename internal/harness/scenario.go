package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tbaudit/internal/audit"
)

// Scenario defines an audit test scenario: the contents of both sources for
// one task and the assertions on the resulting report.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// TaskID is the task being reconciled.
	TaskID string `yaml:"task_id"`

	// Ledger lists the ledger records, in ledger order.
	Ledger []LedgerStep `yaml:"ledger,omitempty"`

	// Local lists the local rows, in store order. Row IDs are assigned 1..n.
	Local []LocalStep `yaml:"local,omitempty"`

	// LedgerUnavailable and LocalUnavailable make the source fail every read.
	LedgerUnavailable bool `yaml:"ledger_unavailable,omitempty"`
	LocalUnavailable  bool `yaml:"local_unavailable,omitempty"`

	// Assertions validate the report.
	Assertions []Assertion `yaml:"assertions"`
}

// LedgerStep describes one ledger record.
type LedgerStep struct {
	Stage  string `yaml:"stage"`
	TS     int64  `yaml:"ts"`
	Height int64  `yaml:"height,omitempty"`

	// TaskID overrides the scenario task (a foreign record).
	TaskID string `yaml:"task_id,omitempty"`

	// Hash overrides the computed content hash.
	Hash string `yaml:"hash,omitempty"`
}

// LocalStep describes one local row.
type LocalStep struct {
	Stage string `yaml:"stage"`
	TS    int64  `yaml:"ts"`

	// TaskID overrides the scenario task (a foreign row).
	TaskID string `yaml:"task_id,omitempty"`

	// Tamper sets detail keys after the hash was written.
	Tamper map[string]interface{} `yaml:"tamper,omitempty"`

	// Payload replaces the stored detail verbatim, keeping the hash.
	Payload string `yaml:"payload,omitempty"`

	// Hash overrides the stored content hash.
	Hash string `yaml:"hash,omitempty"`
}

// Assertion validates the report.
type Assertion struct {
	// Type specifies the assertion type:
	// - "item": an item at Stage/TS has Status (and Reason, if set)
	// - "status_count": exactly Count items have Status
	// - "malformed": exactly Count malformed records come from Side
	// - "summary": the summary fields in Expect have the given values
	// - "unavailable": reconciliation failed because Side could not be read
	Type string `yaml:"type"`

	Stage  string `yaml:"stage,omitempty"`
	TS     int64  `yaml:"ts,omitempty"`
	Status string `yaml:"status,omitempty"`
	Reason string `yaml:"reason,omitempty"`
	Side   string `yaml:"side,omitempty"`
	Count  int    `yaml:"count,omitempty"`

	// Expect maps summary field names (as in the report JSON) to values.
	Expect map[string]int `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertItem        = "item"
	AssertStatusCount = "status_count"
	AssertMalformed   = "malformed"
	AssertSummary     = "summary"
	AssertUnavailable = "unavailable"
)

// summaryFields are the names accepted in a summary assertion.
var summaryFields = map[string]func(audit.Summary) int{
	"ledger_rows":   func(s audit.Summary) int { return s.LedgerRows },
	"local_rows":    func(s audit.Summary) int { return s.LocalRows },
	"matches":       func(s audit.Summary) int { return s.Matches },
	"mismatches":    func(s audit.Summary) int { return s.Mismatches },
	"missing_local": func(s audit.Summary) int { return s.MissingLocal },
	"orphan_local":  func(s audit.Summary) int { return s.OrphanLocal },
	"malformed":     func(s audit.Summary) int { return s.Malformed },
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Ledger {
		if step.Stage == "" {
			return fmt.Errorf("ledger[%d]: stage is required", i)
		}
	}

	for i, step := range s.Local {
		if step.Stage == "" {
			return fmt.Errorf("local[%d]: stage is required", i)
		}
		if step.Payload != "" && len(step.Tamper) > 0 {
			return fmt.Errorf("local[%d]: payload and tamper are mutually exclusive", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertItem:
		if a.Stage == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: stage and status are required for item", index)
		}
	case AssertStatusCount:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for status_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for status_count", index)
		}
	case AssertMalformed:
		if _, err := audit.ParseSide(a.Side); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for malformed", index)
		}
	case AssertSummary:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for summary", index)
		}
		for field := range a.Expect {
			if _, ok := summaryFields[field]; !ok {
				return fmt.Errorf("assertions[%d]: unknown summary field %q", index, field)
			}
		}
	case AssertUnavailable:
		if _, err := audit.ParseSide(a.Side); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
