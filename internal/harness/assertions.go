package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/tbaudit/internal/audit"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Items    []audit.Item // Full report items for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Items) > 0 {
		fmt.Fprintf(&buf, "\nFull report:\n")
		for i, item := range e.Items {
			fmt.Fprintf(&buf, "  [%d] %s %d %s", i+1, item.Stage, item.Timestamp, item.Status)
			if item.Reason != "" {
				fmt.Fprintf(&buf, " (%s)", item.Reason)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// assertItem checks that an item at the assertion's stage and ts has the
// expected status, and the expected reason when one is given.
func assertItem(report *audit.Report, assertion Assertion) error {
	for _, item := range report.Items {
		if item.Stage != assertion.Stage || item.Timestamp != assertion.TS {
			continue
		}
		if string(item.Status) == assertion.Status && (assertion.Reason == "" || string(item.Reason) == assertion.Reason) {
			return nil
		}
	}

	expected := fmt.Sprintf("%s at ts %d is %s", assertion.Stage, assertion.TS, assertion.Status)
	if assertion.Reason != "" {
		expected += fmt.Sprintf(" (%s)", assertion.Reason)
	}
	return &AssertionError{
		Type:     AssertItem,
		Expected: expected,
		Actual:   "no such item in report",
		Items:    report.Items,
	}
}

// assertStatusCount checks that exactly Count items have the status.
func assertStatusCount(report *audit.Report, assertion Assertion) error {
	count := 0
	for _, item := range report.Items {
		if string(item.Status) == assertion.Status {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertStatusCount,
			Expected: fmt.Sprintf("%s appears %d time(s)", assertion.Status, assertion.Count),
			Actual:   fmt.Sprintf("%s appears %d time(s)", assertion.Status, count),
			Items:    report.Items,
		}
	}
	return nil
}

// assertMalformed checks the number of malformed records from one side.
func assertMalformed(report *audit.Report, assertion Assertion) error {
	count := 0
	var reasons []string
	for _, m := range report.Malformed {
		if string(m.Side) == assertion.Side {
			count++
			reasons = append(reasons, fmt.Sprintf("%s: %s", m.Key, m.Reason))
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertMalformed,
			Expected: fmt.Sprintf("%d malformed %s record(s)", assertion.Count, assertion.Side),
			Actual:   fmt.Sprintf("%d malformed %s record(s) %v", count, assertion.Side, reasons),
			Items:    report.Items,
		}
	}
	return nil
}

// assertSummary checks the named summary fields.
func assertSummary(report *audit.Report, assertion Assertion) error {
	fields := make([]string, 0, len(assertion.Expect))
	for field := range assertion.Expect {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var mismatches []string
	for _, field := range fields {
		got := summaryFields[field](report.Summary)
		if want := assertion.Expect[field]; got != want {
			mismatches = append(mismatches, fmt.Sprintf("%s=%d (want %d)", field, got, want))
		}
	}

	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertSummary,
			Expected: fmt.Sprintf("summary %v", assertion.Expect),
			Actual:   strings.Join(mismatches, ", "),
			Items:    report.Items,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against a result.
// Returns a slice of error messages (empty if all pass).
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for _, assertion := range assertions {
		var err error

		switch {
		case assertion.Type == AssertUnavailable:
			if string(result.Unavailable) != assertion.Side {
				err = &AssertionError{
					Type:     AssertUnavailable,
					Expected: fmt.Sprintf("%s source unavailable", assertion.Side),
					Actual:   fmt.Sprintf("unavailable side %q", result.Unavailable),
				}
			}
		case result.Report == nil:
			err = &AssertionError{
				Type:     assertion.Type,
				Expected: "a report",
				Actual:   fmt.Sprintf("%s source unavailable", result.Unavailable),
			}
		case assertion.Type == AssertItem:
			err = assertItem(result.Report, assertion)
		case assertion.Type == AssertStatusCount:
			err = assertStatusCount(result.Report, assertion)
		case assertion.Type == AssertMalformed:
			err = assertMalformed(result.Report, assertion)
		case assertion.Type == AssertSummary:
			err = assertSummary(result.Report, assertion)
		default:
			err = fmt.Errorf("unknown assertion type: %s", assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
