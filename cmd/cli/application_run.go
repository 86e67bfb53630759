package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/xschr/internal/console"
	"github.com/tyemirov/xschr/internal/engine"
	"github.com/tyemirov/xschr/internal/plan"
	"github.com/tyemirov/xschr/internal/process"
	"github.com/tyemirov/xschr/internal/prompt"
	"github.com/tyemirov/xschr/internal/system"
	"github.com/tyemirov/xschr/internal/utils"
	flagutils "github.com/tyemirov/xschr/internal/utils/flags"
	"github.com/tyemirov/xschr/pkg/taskrunner"
)

const (
	errorLabelConstant                  = "[Error]"
	errorLineTemplateConstant           = "%s %s\n"
	planPathMissingMessageConstant      = "the following arguments are required: -p/--path"
	configurationFailedTemplateConstant = "Configuration Failed: %v"
	interruptedMessageConstant          = "Execution interrupted by user."
	confirmationUnavailableConstant     = "Launch confirmation needs an interactive terminal; rerun with --yes."
	engineCrashTemplateConstant         = "Engine Crash: %v"
	diagnosticTraceTemplateConstant     = "%+v\n"
	queueStartingMessageConstant        = "experiment queue starting"
	queueFinishedMessageConstant        = "experiment queue finished"
	planPathLogFieldConstant            = "plan_path"
	settingsFileLogFieldConstant        = "settings_file"
	pythonCommandLogFieldConstant       = "python_cmd"
	logDirectoryLogFieldConstant        = "log_dir"
	failFastLogFieldConstant            = "fail_fast"
	dryRunLogFieldConstant              = "dry_run"
	stateLogFieldConstant               = "state"
	successLogFieldConstant             = "success"
	failedLogFieldConstant              = "failed"
)

var errPlanPathMissing = errors.New(planPathMissingMessageConstant)

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.versionFlag {
		application.printVersion(command)
		return nil
	}

	initializationHandled, initializationError := application.handleConfigurationInitialization(command)
	if initializationError != nil {
		return initializationError
	}
	if initializationHandled {
		return nil
	}

	errorOutput := command.ErrOrStderr()
	errorPalette := console.NewPalette(errorOutput)

	planFilePath, planFilePathAvailable := application.commandContextAccessor.PlanFilePath(command.Context())
	if !planFilePathAvailable {
		application.reportError(errorOutput, errorPalette, planPathMissingMessageConstant)
		return ExitError{Code: ExitCodeFailure, Cause: errPlanPathMissing, Reported: true}
	}

	executionFlags := flagutils.ResolveExecutionFlags(command)
	output := command.OutOrStdout()

	if !executionFlags.DryRun {
		system.PrintStatus(output, application.statusProvider(command.Context()))
	}

	experimentPlan, absolutePlanPath, loadError := plan.NewLoader(application.logger).Load(planFilePath)
	if loadError != nil {
		application.reportError(errorOutput, errorPalette, fmt.Sprintf(configurationFailedTemplateConstant, loadError))
		return ExitError{Code: ExitCodeFailure, Cause: loadError, Reported: true}
	}

	settings := application.configuration.Common.resolveSettings(experimentPlan.Settings)

	dependencies, dependenciesError := taskrunner.BuildDependencies(
		taskrunner.DependenciesConfig{
			LoggerProvider: func() *zap.Logger { return application.logger },
			Runner:         application.processRunner,
			Environment:    settings.Environment,
		},
		taskrunner.DependenciesOptions{
			Command:          command,
			DisableConfirmer: executionFlags.AssumeYes || executionFlags.DryRun,
		},
	)
	if dependenciesError != nil {
		return application.reportCrash(errorOutput, errorPalette, executionFlags, errors.WithStack(dependenciesError))
	}

	executor, resolveError := taskrunner.Resolve(application.executorFactory, dependencies.Executor)
	if resolveError != nil {
		return application.reportCrash(errorOutput, errorPalette, executionFlags, errors.WithStack(resolveError))
	}

	executionContext, cancel := application.signalContext(command.Context())
	defer cancel()

	application.logger.Info(
		queueStartingMessageConstant,
		zap.String(planPathLogFieldConstant, absolutePlanPath),
		zap.String(settingsFileLogFieldConstant, application.ConfigFileUsed()),
		zap.String(pythonCommandLogFieldConstant, settings.PythonCommand),
		zap.String(logDirectoryLogFieldConstant, settings.LogDirectory),
		zap.Bool(failFastLogFieldConstant, executionFlags.FailFast),
		zap.Bool(dryRunLogFieldConstant, executionFlags.DryRun),
	)

	result, runError := executor.Run(executionContext, experimentPlan, engine.ExecutionContext{
		PythonCommand: settings.PythonCommand,
		LogRoot:       settings.LogDirectory,
		FailFast:      executionFlags.FailFast,
		DryRun:        executionFlags.DryRun,
		AssumeYes:     executionFlags.AssumeYes,
		ConfigPath:    absolutePlanPath,
		StartedAt:     application.clock(),
	})

	application.logger.Info(
		queueFinishedMessageConstant,
		zap.String(stateLogFieldConstant, string(result.State)),
		zap.Int(successLogFieldConstant, result.Stats.Success),
		zap.Int(failedLogFieldConstant, result.Stats.Failed),
	)

	return application.resolveRunOutcome(errorOutput, errorPalette, executionFlags, result, runError)
}

func (application *Application) resolveRunOutcome(errorOutput io.Writer, errorPalette console.Palette, executionFlags utils.ExecutionFlags, result engine.Result, runError error) error {
	switch {
	case runError == nil:
		if !executionFlags.DryRun && result.Stats.Failed > 0 {
			return ExitError{Code: ExitCodeFailure, Cause: runsFailedError{stats: result.Stats}, Reported: true}
		}
		return nil
	case errors.Is(runError, prompt.ErrConfirmationAborted):
		return ExitError{Code: ExitCodeInterrupted, Cause: runError, Reported: true}
	case errors.Is(runError, process.ErrInterrupted), errors.Is(runError, context.Canceled):
		application.reportError(errorOutput, errorPalette, interruptedMessageConstant)
		return ExitError{Code: ExitCodeInterrupted, Cause: runError, Reported: true}
	case errors.Is(runError, prompt.ErrConfirmationUnavailable):
		application.reportError(errorOutput, errorPalette, confirmationUnavailableConstant)
		return ExitError{Code: ExitCodeFailure, Cause: runError, Reported: true}
	default:
		return application.reportCrash(errorOutput, errorPalette, executionFlags, runError)
	}
}

func (application *Application) reportCrash(errorOutput io.Writer, errorPalette console.Palette, executionFlags utils.ExecutionFlags, crashError error) error {
	application.reportError(errorOutput, errorPalette, fmt.Sprintf(engineCrashTemplateConstant, crashError))
	if executionFlags.Debug {
		fmt.Fprintf(errorOutput, diagnosticTraceTemplateConstant, crashError)
	}
	return ExitError{Code: ExitCodeFailure, Cause: crashError, Reported: true}
}

func (application *Application) reportError(errorOutput io.Writer, errorPalette console.Palette, message string) {
	fmt.Fprintf(errorOutput, errorLineTemplateConstant, errorPalette.Failure(errorLabelConstant), message)
}
