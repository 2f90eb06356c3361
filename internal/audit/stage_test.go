package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStage(t *testing.T) {
	tests := []struct {
		in   string
		want Stage
	}{
		{"RECV", StageReceived},
		{"recv", StageReceived},
		{"received", StageReceived},
		{" Received ", StageReceived},
		{"EXEC", StageExecuting},
		{"executing", StageExecuting},
		{"result", StageResult},
		{"ORPHAN", Stage("ORPHAN")},
		{"", Stage("")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStage(tt.in))
		})
	}
}

func TestStageKnown(t *testing.T) {
	assert.True(t, StageReceived.Known())
	assert.True(t, StageExecuting.Known())
	assert.True(t, StageResult.Known())
	assert.False(t, Stage("ORPHAN").Known())
	assert.False(t, Stage("").Known())
}

func TestStageTerminal(t *testing.T) {
	assert.True(t, StageResult.Terminal())
	assert.False(t, StageReceived.Terminal())
}
