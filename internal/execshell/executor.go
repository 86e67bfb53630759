package execshell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gitCommandNameStringConstant              = "git"
	nvidiaSMICommandNameStringConstant        = "nvidia-smi"
	gitCommandTimeoutConstant                 = 5 * time.Second
	nvidiaSMICommandTimeoutConstant           = 10 * time.Second
	fallbackCommandTimeoutConstant            = 10 * time.Second
	loggerNotConfiguredMessageConstant        = "shell executor logger not configured"
	commandRunnerNotConfiguredMessageConstant = "shell executor command runner not configured"
	commandNameMissingMessageConstant         = "shell command name not provided"
	executableNotFoundMessageConstant         = "executable not found"
	commandTimedOutMessageConstant            = "command exceeded its time limit"
	commandTimedOutTemplateConstant           = "%w after %s"
	classifiedCauseTemplateConstant           = "%w: %w"
	commandStartMessageConstant               = "command execution starting"
	commandSuccessMessageConstant             = "command execution completed"
	commandFailureMessageConstant             = "command returned non-zero status"
	commandRunnerErrorMessageConstant         = "command execution error"
	commandNameFieldNameConstant              = "command"
	commandArgumentsFieldNameConstant         = "arguments"
	workingDirectoryFieldNameConstant         = "working_directory"
	timeoutFieldNameConstant                  = "timeout"
	exitCodeFieldNameConstant                 = "exit_code"
	standardErrorFieldNameConstant            = "stderr"
	failureDetailLineLimitConstant            = 3
)

// CommandName identifies a supported executable name.
type CommandName string

// Supported command names.
const (
	CommandGit       CommandName = CommandName(gitCommandNameStringConstant)
	CommandNvidiaSMI CommandName = CommandName(nvidiaSMICommandNameStringConstant)
)

var commandTimeouts = map[CommandName]time.Duration{
	CommandGit:       gitCommandTimeoutConstant,
	CommandNvidiaSMI: nvidiaSMICommandTimeoutConstant,
}

// CommandDetails describes command invocation properties.
// A zero Timeout selects the command's default time limit.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	Timeout              time.Duration
}

// ShellCommand represents a fully qualified command invocation.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures observable command results.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner executes shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// ShellExecutor runs the short host commands (GPU inventory, version lookup) that precede a queue.
// Every command is bounded by a time limit.
type ShellExecutor struct {
	commandRunner        CommandRunner
	logger               *zap.Logger
	humanReadableLogging bool
	messageFormatter     CommandMessageFormatter
}

var (
	// ErrLoggerNotConfigured indicates the logger dependency was missing.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates the command runner dependency was missing.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
	// ErrCommandNameMissing indicates the command name was not provided.
	ErrCommandNameMissing = errors.New(commandNameMissingMessageConstant)
	// ErrExecutableNotFound indicates the tool is not installed on this host.
	ErrExecutableNotFound = errors.New(executableNotFoundMessageConstant)
	// ErrCommandTimedOut indicates the command ran past its time limit and was stopped.
	ErrCommandTimedOut = errors.New(commandTimedOutMessageConstant)
)

// CommandFailedError provides details about commands exiting with a non-zero code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

const commandFailureErrorMessageTemplateConstant = "%s command exited with code %d"

// Error describes the failure in a readable format.
func (commandError CommandFailedError) Error() string {
	baseMessage := fmt.Sprintf(commandFailureErrorMessageTemplateConstant, commandError.Command.Name, commandError.Result.ExitCode)
	if len(commandError.Command.Details.Arguments) > 0 {
		baseMessage = fmt.Sprintf("%s (%s)", baseMessage, strings.Join(commandError.Command.Details.Arguments, " "))
	}

	detail := strings.TrimSpace(commandError.Result.StandardError)
	if len(detail) == 0 {
		detail = strings.TrimSpace(commandError.Result.StandardOutput)
	}
	if normalized := summarizeDetail(detail); len(normalized) > 0 {
		baseMessage = fmt.Sprintf("%s: %s", baseMessage, normalized)
	}
	return baseMessage
}

// CommandExecutionError wraps failures where the command produced no exit status.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

const commandExecutionErrorMessageTemplateConstant = "%s command execution failed: %v"

// Error describes the underlying runner failure.
func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorMessageTemplateConstant, executionError.Command.Name, executionError.Cause)
}

// Unwrap exposes the underlying error.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// NewShellExecutor builds an executor for the provided runner and logger.
func NewShellExecutor(logger *zap.Logger, commandRunner CommandRunner, humanReadableLogging bool) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if commandRunner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	return &ShellExecutor{
		commandRunner:        commandRunner,
		logger:               logger,
		humanReadableLogging: humanReadableLogging,
		messageFormatter:     CommandMessageFormatter{},
	}, nil
}

// CommandTimeout reports the time limit applied to command.
func CommandTimeout(command ShellCommand) time.Duration {
	if command.Details.Timeout > 0 {
		return command.Details.Timeout
	}
	if timeout, known := commandTimeouts[command.Name]; known {
		return timeout
	}
	return fallbackCommandTimeoutConstant
}

// Execute runs the command under its time limit. A missing executable is logged at debug level.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if len(command.Name) == 0 {
		return ExecutionResult{}, ErrCommandNameMissing
	}

	timeout := CommandTimeout(command)
	limitedContext, cancel := context.WithTimeout(executionContext, timeout)
	defer cancel()

	executor.log(zapcore.DebugLevel, commandStartMessageConstant, executor.messageFormatter.BuildStartedMessage(command),
		zap.String(commandNameFieldNameConstant, string(command.Name)),
		zap.Strings(commandArgumentsFieldNameConstant, command.Details.Arguments),
		zap.String(workingDirectoryFieldNameConstant, command.Details.WorkingDirectory),
		zap.Duration(timeoutFieldNameConstant, timeout),
	)

	executionResult, runnerError := executor.commandRunner.Run(limitedContext, command)
	if errors.Is(limitedContext.Err(), context.DeadlineExceeded) && executionContext.Err() == nil {
		runnerError = fmt.Errorf(commandTimedOutTemplateConstant, ErrCommandTimedOut, timeout)
	}

	if runnerError != nil {
		cause := classifyRunnerError(runnerError)
		level := zapcore.WarnLevel
		if errors.Is(cause, ErrExecutableNotFound) {
			level = zapcore.DebugLevel
		}
		executor.log(level, commandRunnerErrorMessageConstant, executor.messageFormatter.BuildExecutionFailureMessage(command, cause),
			zap.String(commandNameFieldNameConstant, string(command.Name)),
			zap.Error(cause),
		)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: cause}
	}

	if executionResult.ExitCode != 0 {
		executor.log(zapcore.WarnLevel, commandFailureMessageConstant, executor.messageFormatter.BuildFailureMessage(command, executionResult),
			zap.String(commandNameFieldNameConstant, string(command.Name)),
			zap.Int(exitCodeFieldNameConstant, executionResult.ExitCode),
			zap.String(standardErrorFieldNameConstant, executionResult.StandardError),
		)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.log(zapcore.DebugLevel, commandSuccessMessageConstant, executor.messageFormatter.BuildSuccessMessage(command),
		zap.String(commandNameFieldNameConstant, string(command.Name)),
	)
	return executionResult, nil
}

// ExecuteGit runs git, used to describe the build when no module version is embedded.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// ExecuteNvidiaSMI runs nvidia-smi, used to list the host's CUDA devices.
func (executor *ShellExecutor) ExecuteNvidiaSMI(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandNvidiaSMI, Details: details})
}

func (executor *ShellExecutor) log(level zapcore.Level, structuredMessage string, humanMessage string, fields ...zap.Field) {
	if executor.humanReadableLogging {
		executor.logger.Log(level, humanMessage)
		return
	}
	executor.logger.Log(level, structuredMessage, fields...)
}

func classifyRunnerError(runnerError error) error {
	if errors.Is(runnerError, exec.ErrNotFound) && !errors.Is(runnerError, ErrExecutableNotFound) {
		return fmt.Errorf(classifiedCauseTemplateConstant, ErrExecutableNotFound, runnerError)
	}
	return runnerError
}

func summarizeDetail(detail string) string {
	if len(detail) == 0 {
		return ""
	}
	lines := strings.Split(detail, "\n")
	if len(lines) > failureDetailLineLimitConstant {
		lines = lines[:failureDetailLineLimitConstant]
	}
	normalized := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return strings.Join(normalized, " | ")
}
