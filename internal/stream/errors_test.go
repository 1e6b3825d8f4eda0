package stream

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil is clean", nil, ExitOK},
		{"acquire failure", stageErr(StageAcquire, errors.New("unreachable")), ExitAcquire},
		{"decoder failure", stageErr(StageDecoder, errors.New("no video stream")), ExitDecoder},
		{"output failure", stageErr(StageOutputs, errors.New("cannot open playlist")), ExitOutputs},
		{"run failure", stageErr(StageRun, errors.New("write failed")), ExitRun},
		{"untagged error is a run failure", errors.New("boom"), ExitRun},
		{"wrapped stage error still maps", fmt.Errorf("attempt: %w", stageErr(StageAcquire, errors.New("dns"))), ExitAcquire},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestStageError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := stageErr(StageAcquire, inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "acquire")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStageErr_NilPassthrough(t *testing.T) {
	assert.NoError(t, stageErr(StageAcquire, nil))
}
