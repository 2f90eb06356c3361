package audit

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage is a named phase of task execution, as written on the ledger.
type Stage string

const (
	StageReceived  Stage = "RECV"
	StageExecuting Stage = "EXEC"
	StageResult    Stage = "RESULT"
)

// stageAliases maps long-form stage names onto the ledger wire names.
var stageAliases = map[string]Stage{
	"RECEIVED":  StageReceived,
	"EXECUTING": StageExecuting,
	"EXECUTE":   StageExecuting,
	"RESULTS":   StageResult,
}

// NormalizeStage maps a recorded stage name onto its canonical Stage.
// Matching is case-insensitive. Unknown names are returned upper-cased so
// they still align with themselves, and fail Known.
func NormalizeStage(s string) Stage {
	// cases.Caser is stateful, so one per call.
	upper := cases.Upper(language.Und).String(strings.TrimSpace(s))
	if alias, ok := stageAliases[upper]; ok {
		return alias
	}
	return Stage(upper)
}

// Known reports whether s is one of the closed set of stages.
func (s Stage) Known() bool {
	switch s {
	case StageReceived, StageExecuting, StageResult:
		return true
	}
	return false
}

// Terminal reports whether s is the stage that carries a result hash.
func (s Stage) Terminal() bool {
	return s == StageResult
}
