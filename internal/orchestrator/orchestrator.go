// Package orchestrator runs the strategy, technical and marketing stages in
// order over a write-once record and compiles the final report.
package orchestrator

import (
	"context"
	"errors"

	"github.com/dusk-indust/cofounder/internal/agent"
)

// Key names an entry of the record.
type Key string

const (
	KeyStrategy  Key = "strategy"
	KeyTechnical Key = "technical"
	KeyMarketing Key = "marketing"
	KeyFinal     Key = "final"
)

// Keys lists the record keys in the order they are written.
func Keys() []Key {
	return []Key{KeyStrategy, KeyTechnical, KeyMarketing, KeyFinal}
}

// Result field names, as they appear in JSON, artifact names and exported
// file names.
const (
	ResultStrategy  = "strategy_analysis"
	ResultTechnical = "technical_analysis"
	ResultMarketing = "marketing_strategy"
	ResultFinal     = "final_report"
)

// ResultName maps a record key to its result field name.
func (k Key) ResultName() string {
	switch k {
	case KeyStrategy:
		return ResultStrategy
	case KeyTechnical:
		return ResultTechnical
	case KeyMarketing:
		return ResultMarketing
	case KeyFinal:
		return ResultFinal
	default:
		return string(k)
	}
}

// Step is the record's progress marker.
type Step string

const (
	StepNotStarted    Step = "NotStarted"
	StepStrategyDone  Step = "StrategyDone"
	StepTechnicalDone Step = "TechnicalDone"
	StepMarketingDone Step = "MarketingDone"
	StepCompiled      Step = "Compiled"
	StepFailed        Step = "Failed"
)

// DoneStep returns the step reached once k is written.
func DoneStep(k Key) Step {
	switch k {
	case KeyStrategy:
		return StepStrategyDone
	case KeyTechnical:
		return StepTechnicalDone
	case KeyMarketing:
		return StepMarketingDone
	case KeyFinal:
		return StepCompiled
	default:
		return StepFailed
	}
}

// StageRunner runs one stage. *agent.Stage satisfies it.
type StageRunner interface {
	Run(ctx context.Context, idea string, prior []agent.Context) (string, error)
}

// ProgressEvent is emitted at each pipeline transition.
type ProgressEvent struct {
	RunID   string
	Key     Key
	Step    Step
	Status  ProgressStatus
	Message string
}

// ProgressStatus is the state of one key within a run.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// Sentinel errors.
var (
	// ErrInvalidInput is returned before any stage runs when the idea is
	// empty and the pipeline requires one.
	ErrInvalidInput = errors.New("invalid input: idea is empty")

	// ErrStageFailed matches every *RunError.
	ErrStageFailed = errors.New("stage failed")

	// ErrAlreadyWritten is returned when a record key is written twice.
	ErrAlreadyWritten = errors.New("record key already written")

	// ErrUnknownKey is returned for keys outside the fixed set.
	ErrUnknownKey = errors.New("unknown record key")

	// ErrPrecondition is returned when a stage's required prior outputs are
	// missing from the record.
	ErrPrecondition = errors.New("stage precondition not met")
)
