package stream

import (
	"errors"
	"fmt"
)

// Stage identifies where in the session lifecycle an error occurred. The
// supervisor that spawns this process keys its restart/degrade decisions
// off the exit code, so the mapping below is a stable contract.
type Stage int

const (
	StageRun Stage = iota
	StageAcquire
	StageDecoder
	StageOutputs
)

// Exit codes. Code 1 is reserved for CLI usage and configuration errors.
const (
	ExitOK      = 0
	ExitUsage   = 1
	ExitAcquire = 2
	ExitDecoder = 3
	ExitOutputs = 4
	ExitRun     = 5
)

func (s Stage) String() string {
	switch s {
	case StageAcquire:
		return "acquire"
	case StageDecoder:
		return "decoder"
	case StageOutputs:
		return "outputs"
	default:
		return "run"
	}
}

// StageError wraps an underlying error with the lifecycle stage it
// happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// ExitCode maps an attempt error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var se *StageError
	if errors.As(err, &se) {
		switch se.Stage {
		case StageAcquire:
			return ExitAcquire
		case StageDecoder:
			return ExitDecoder
		case StageOutputs:
			return ExitOutputs
		}
	}
	return ExitRun
}
