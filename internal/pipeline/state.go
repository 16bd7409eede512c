// internal/pipeline/state.go
package pipeline

import (
	"fmt"

	apperrors "change-order-generator/internal/common/errors"
)

// Stage is a state of one generation run.
type Stage string

const (
	StageReceived     Stage = "received"
	StageExtracting   Stage = "extracting"
	StageSynthesizing Stage = "synthesizing"
	StageValidating   Stage = "validating"
	StageRendering    Stage = "rendering"
	StageStoring      Stage = "storing"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

// next lists the only forward move from each working state.
var next = map[Stage]Stage{
	StageReceived:     StageExtracting,
	StageExtracting:   StageSynthesizing,
	StageSynthesizing: StageValidating,
	StageValidating:   StageRendering,
	StageRendering:    StageStoring,
	StageStoring:      StageCompleted,
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// CanTransition reports whether from -> to is a legal move. Failed is
// reachable from every non-terminal state.
func CanTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	return next[from] == to
}

// PipelineError is the terminal Failed(stage, cause) outcome of a run.
type PipelineError struct {
	Stage Stage
	Cause *apperrors.StandardError
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Cause)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// FailedStage names the stage that stopped the run.
func (e *PipelineError) FailedStage() string {
	return string(e.Stage)
}
