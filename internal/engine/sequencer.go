package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tyemirov/xschr/internal/console"
	"github.com/tyemirov/xschr/internal/plan"
	"github.com/tyemirov/xschr/internal/process"
	"github.com/tyemirov/xschr/internal/prompt"
	"github.com/tyemirov/xschr/internal/runlog"
	pathutils "github.com/tyemirov/xschr/internal/utils/path"
)

const (
	planHeaderConstant                  = "\n[Plan]\n"
	planConfigTemplateConstant          = "  • Config:  %s\n"
	planOutputTemplateConstant          = "  • Output:  %s\n"
	planTaskTemplateConstant            = "  • Task:    Running %d jobs across %d experiments\n"
	launchPromptConstant                = "\nPress ENTER to launch 🚀 (or Ctrl+C to abort)..."
	abortedNoticeConstant               = "\nAborted."
	experimentHeaderTemplateConstant    = "\n>> Experiment: %s\n"
	runLineTemplateConstant             = "   [%d/%d] %s"
	dryRunLineTemplateConstant          = "     [Dry Run] %s\n"
	missingScriptLabelConstant          = "[Error]"
	missingScriptTemplateConstant       = "\n%s Script not found: %s\n"
	successIndicatorConstant            = "     ✓ Success"
	failureIndicatorConstant            = "     ✗ Failed"
	failFastNoticeConstant              = "\n[!] Fail-fast triggered. Stopping queue."
	missingScriptExitCodeConstant       = -1
	runDirectoryErrorMessageConstant    = "preparing run directory"
	runExecutionErrorMessageConstant    = "executing run"
	confirmationErrorMessageConstant    = "awaiting launch confirmation"
	confirmerMissingMessageConstant     = "launch confirmation requires a confirmer"
	sequencePlannedMessageConstant      = "sequence planned"
	sequenceFinishedMessageConstant     = "sequence finished"
	runStartingMessageConstant          = "run starting"
	runFinishedMessageConstant          = "run finished"
	scriptMissingMessageConstant        = "script missing"
	failFastHaltMessageConstant         = "fail-fast halt"
	sequenceAbortedMessageConstant      = "sequence aborted"
	experimentLogFieldConstant          = "experiment"
	runIndexLogFieldConstant            = "run"
	runCountLogFieldConstant            = "runs"
	scriptLogFieldConstant              = "script"
	logPathLogFieldConstant             = "log_path"
	exitCodeLogFieldConstant            = "exit_code"
	statusLogFieldConstant              = "status"
	totalExperimentsLogFieldConstant    = "total_experiments"
	totalRunsLogFieldConstant           = "total_runs"
	runDirectoryLogFieldConstant        = "run_directory"
	runDirectoryCreatedLogFieldConstant = "run_directory_created"
	successLogFieldConstant             = "success"
	failedLogFieldConstant              = "failed"
	stateLogFieldConstant               = "state"
	dryRunLogFieldConstant              = "dry_run"
	failFastLogFieldConstant            = "fail_fast"
)

var (
	// ErrLoggerNotConfigured indicates a missing logger.
	ErrLoggerNotConfigured = errors.New("sequencer logger not configured")
	// ErrOutputNotConfigured indicates a missing console writer.
	ErrOutputNotConfigured = errors.New("sequencer output writer not configured")
	// ErrRunnerNotConfigured indicates a missing process runner.
	ErrRunnerNotConfigured = errors.New("sequencer process runner not configured")
)

// Dependencies are the collaborators of a Sequencer.
type Dependencies struct {
	Logger       *zap.Logger
	Output       io.Writer
	Runner       ProcessRunner
	Confirmer    Confirmer
	Palette      *console.Palette
	Clock        func() time.Time
	ScriptExists func(path string) bool
}

// Sequencer turns a plan into an ordered series of child launches.
type Sequencer struct {
	logger       *zap.Logger
	output       io.Writer
	runner       ProcessRunner
	confirmer    Confirmer
	palette      console.Palette
	clock        func() time.Time
	scriptExists func(path string) bool
}

// NewSequencer validates dependencies and constructs a Sequencer.
func NewSequencer(dependencies Dependencies) (*Sequencer, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.Output == nil {
		return nil, ErrOutputNotConfigured
	}
	if dependencies.Runner == nil {
		return nil, ErrRunnerNotConfigured
	}

	palette := console.NewPalette(dependencies.Output)
	if dependencies.Palette != nil {
		palette = *dependencies.Palette
	}

	clock := dependencies.Clock
	if clock == nil {
		clock = time.Now
	}

	scriptExists := dependencies.ScriptExists
	if scriptExists == nil {
		scriptExists = fileExists
	}

	return &Sequencer{
		logger:       dependencies.Logger,
		output:       dependencies.Output,
		runner:       dependencies.Runner,
		confirmer:    dependencies.Confirmer,
		palette:      palette,
		clock:        clock,
		scriptExists: scriptExists,
	}, nil
}

type sequenceRun struct {
	sequencer *Sequencer
	context   ExecutionContext
	directory *runlog.Directory
	result    Result
}

// Run executes the plan. The returned Result is valid even when an error is returned.
// process.ErrInterrupted and prompt.ErrConfirmationAborted are returned unwrapped.
func (sequencer *Sequencer) Run(executionContext context.Context, experimentPlan plan.Plan, settings ExecutionContext) (Result, error) {
	startedAt := settings.StartedAt
	if startedAt.IsZero() {
		startedAt = sequencer.clock()
	}

	run := &sequenceRun{
		sequencer: sequencer,
		context:   settings,
		directory: runlog.NewDirectory(settings.LogRoot, startedAt),
		result: Result{
			State:            StatePlanning,
			TotalExperiments: len(experimentPlan.Experiments),
			TotalRuns:        experimentPlan.RunCount(),
			Records:          []RunRecord{},
		},
	}
	run.result.RunDirectory = run.directory.Path()

	run.printPlan()
	sequencer.logger.Info(
		sequencePlannedMessageConstant,
		zap.Int(totalExperimentsLogFieldConstant, run.result.TotalExperiments),
		zap.Int(totalRunsLogFieldConstant, run.result.TotalRuns),
		zap.String(runDirectoryLogFieldConstant, run.result.RunDirectory),
		zap.Bool(dryRunLogFieldConstant, settings.DryRun),
		zap.Bool(failFastLogFieldConstant, settings.FailFast),
	)

	if !settings.DryRun && !settings.AssumeYes {
		run.result.State = StateAwaitingConfirmation
		if confirmationError := run.awaitConfirmation(executionContext); confirmationError != nil {
			return run.result, confirmationError
		}
	}

	run.result.State = StateRunning
	for experimentIndex, experiment := range experimentPlan.Experiments {
		halted, experimentError := run.runExperiment(executionContext, experimentIndex, experiment)
		if experimentError != nil {
			return run.finish(), experimentError
		}
		if halted {
			run.result.State = StateHaltedByFailFast
			return run.finish(), nil
		}
	}

	run.result.State = StateCompleted
	return run.finish(), nil
}

func (run *sequenceRun) printPlan() {
	fmt.Fprint(run.sequencer.output, planHeaderConstant)
	fmt.Fprintf(run.sequencer.output, planConfigTemplateConstant, run.context.ConfigPath)
	fmt.Fprintf(run.sequencer.output, planOutputTemplateConstant, run.result.RunDirectory)
	fmt.Fprintf(run.sequencer.output, planTaskTemplateConstant, run.result.TotalRuns, run.result.TotalExperiments)
}

func (run *sequenceRun) awaitConfirmation(executionContext context.Context) error {
	if run.sequencer.confirmer == nil {
		return errors.New(confirmerMissingMessageConstant)
	}

	confirmationError := run.sequencer.confirmer.AwaitConfirmation(executionContext, launchPromptConstant)
	if confirmationError == nil {
		return nil
	}

	if errors.Is(confirmationError, prompt.ErrConfirmationAborted) {
		fmt.Fprintln(run.sequencer.output, abortedNoticeConstant)
		run.result.State = StateAborted
		run.sequencer.logger.Info(sequenceAbortedMessageConstant, zap.String(stateLogFieldConstant, string(StateAwaitingConfirmation)))
		return prompt.ErrConfirmationAborted
	}
	return errors.Wrap(confirmationError, confirmationErrorMessageConstant)
}

// runExperiment reports whether fail-fast halted the queue.
func (run *sequenceRun) runExperiment(executionContext context.Context, experimentIndex int, experiment plan.Experiment) (bool, error) {
	sequencer := run.sequencer
	scriptPath := pathutils.ResolveScriptPath(run.context.ConfigPath, experiment.Script)

	if len(experiment.Runs) > 0 && !run.context.DryRun && !sequencer.scriptExists(scriptPath) {
		fmt.Fprintf(sequencer.output, missingScriptTemplateConstant, sequencer.palette.Failure(missingScriptLabelConstant), scriptPath)
		sequencer.logger.Warn(
			scriptMissingMessageConstant,
			zap.String(experimentLogFieldConstant, experiment.Name),
			zap.String(scriptLogFieldConstant, scriptPath),
		)
		run.record(RunRecord{
			Experiment: experiment.Name,
			RunCount:   len(experiment.Runs),
			Command:    []string{run.context.PythonCommand, scriptPath},
			ExitCode:   missingScriptExitCodeConstant,
			Status:     RunStatusMissingScript,
		})
		return run.failFastTriggered(), nil
	}

	fmt.Fprintf(sequencer.output, experimentHeaderTemplateConstant, experiment.Name)

	for runPosition, runSpec := range experiment.Runs {
		if executionContext.Err() != nil {
			run.result.State = StateAborted
			return false, process.ErrInterrupted
		}

		runIndex := runPosition + 1
		command := append([]string{run.context.PythonCommand, scriptPath}, runSpec.Arguments.Tokens()...)
		run.printRunLine(runIndex, len(experiment.Runs), experiment.Script, runSpec.Arguments)

		if run.context.DryRun {
			fmt.Fprintf(sequencer.output, dryRunLineTemplateConstant, shellquote.Join(command...))
			continue
		}

		if directoryError := run.directory.Ensure(); directoryError != nil {
			return false, errors.Wrap(directoryError, runDirectoryErrorMessageConstant)
		}
		logPath := run.directory.FilePath(experiment.Name, runIndex)

		sequencer.logger.Info(
			runStartingMessageConstant,
			zap.String(experimentLogFieldConstant, experiment.Name),
			zap.Int(runIndexLogFieldConstant, runIndex),
			zap.Int(runCountLogFieldConstant, len(experiment.Runs)),
			zap.String(logPathLogFieldConstant, logPath),
		)

		outcome, executionError := sequencer.runner.Execute(executionContext, command, logPath)
		if executionError != nil {
			if errors.Is(executionError, process.ErrInterrupted) {
				run.result.State = StateAborted
				return false, process.ErrInterrupted
			}
			return false, errors.Wrap(executionError, runExecutionErrorMessageConstant)
		}

		status := RunStatusSucceeded
		if !outcome.Succeeded {
			status = RunStatusFailed
		}
		run.record(RunRecord{
			Experiment: experiment.Name,
			RunIndex:   runIndex,
			RunCount:   len(experiment.Runs),
			Command:    command,
			LogPath:    logPath,
			ExitCode:   outcome.ExitCode,
			Status:     status,
			Duration:   outcome.Duration,
		})
		sequencer.logger.Info(
			runFinishedMessageConstant,
			zap.String(experimentLogFieldConstant, experiment.Name),
			zap.Int(runIndexLogFieldConstant, runIndex),
			zap.Int(exitCodeLogFieldConstant, outcome.ExitCode),
			zap.String(statusLogFieldConstant, string(status)),
		)

		if outcome.Succeeded {
			fmt.Fprintln(sequencer.output, sequencer.palette.Success(successIndicatorConstant))
			continue
		}

		fmt.Fprintln(sequencer.output, sequencer.palette.Failure(failureIndicatorConstant))
		if run.failFastTriggered() {
			return true, nil
		}
	}

	return false, nil
}

func (run *sequenceRun) printRunLine(runIndex int, runCount int, scriptReference string, arguments plan.Arguments) {
	line := fmt.Sprintf(runLineTemplateConstant, runIndex, runCount, scriptReference)
	if renderedArguments := arguments.String(); len(renderedArguments) > 0 {
		line += " " + renderedArguments
	}
	fmt.Fprintln(run.sequencer.output, line)
}

// record appends the record and updates the matching counter.
func (run *sequenceRun) record(record RunRecord) {
	run.result.Records = append(run.result.Records, record)
	if record.Status == RunStatusSucceeded {
		run.result.Stats.Success++
		return
	}
	run.result.Stats.Failed++
}

func (run *sequenceRun) failFastTriggered() bool {
	if !run.context.FailFast {
		return false
	}
	fmt.Fprintln(run.sequencer.output, run.sequencer.palette.Warning(failFastNoticeConstant))
	run.sequencer.logger.Warn(
		failFastHaltMessageConstant,
		zap.Int(successLogFieldConstant, run.result.Stats.Success),
		zap.Int(failedLogFieldConstant, run.result.Stats.Failed),
	)
	return true
}

func (run *sequenceRun) finish() Result {
	run.result.RunDirectoryCreated = run.directory.Created()
	run.sequencer.logger.Info(
		sequenceFinishedMessageConstant,
		zap.String(stateLogFieldConstant, string(run.result.State)),
		zap.Bool(runDirectoryCreatedLogFieldConstant, run.result.RunDirectoryCreated),
		zap.Int(successLogFieldConstant, run.result.Stats.Success),
		zap.Int(failedLogFieldConstant, run.result.Stats.Failed),
	)
	return run.result
}

func fileExists(path string) bool {
	_, statError := os.Stat(path)
	return statError == nil
}
