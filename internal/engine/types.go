package engine

import (
	"context"
	"time"

	"github.com/tyemirov/xschr/internal/process"
)

// ExecutionContext carries the per-invocation settings. It is read-only once built.
type ExecutionContext struct {
	PythonCommand string
	LogRoot       string
	FailFast      bool
	DryRun        bool
	AssumeYes     bool
	ConfigPath    string
	StartedAt     time.Time
}

// Stats accumulates run outcomes.
type Stats struct {
	Success int
	Failed  int
}

// Attempted is the number of runs whose outcome has been recorded.
func (stats Stats) Attempted() int {
	return stats.Success + stats.Failed
}

// State names a phase of the sequencer.
type State string

// Sequencer states.
const (
	StatePlanning             State = "planning"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateRunning              State = "running"
	StateCompleted            State = "completed"
	StateHaltedByFailFast     State = "halted_by_fail_fast"
	StateAborted              State = "aborted"
)

// RunStatus classifies a recorded run.
type RunStatus string

// Run statuses.
const (
	RunStatusSucceeded     RunStatus = "succeeded"
	RunStatusFailed        RunStatus = "failed"
	RunStatusMissingScript RunStatus = "missing_script"
)

// RunRecord is the recorded outcome of one attempted run. A missing script is recorded
// once for its experiment with RunIndex 0.
type RunRecord struct {
	Experiment string
	RunIndex   int
	RunCount   int
	Command    []string
	LogPath    string
	ExitCode   int
	Status     RunStatus
	Duration   time.Duration
}

// Result is the final report of a sequence.
type Result struct {
	Stats               Stats
	State               State
	TotalExperiments    int
	TotalRuns           int
	RunDirectory        string
	// RunDirectoryCreated is false when no run reached the point of writing a log.
	RunDirectoryCreated bool
	Records             []RunRecord
}

// ProcessRunner launches one child and streams its output into logPath.
type ProcessRunner interface {
	Execute(executionContext context.Context, command []string, logPath string) (process.Outcome, error)
}

// Confirmer blocks until the operator acknowledges the plan.
type Confirmer interface {
	AwaitConfirmation(executionContext context.Context, prompt string) error
}
