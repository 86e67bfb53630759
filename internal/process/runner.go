package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/xschr/internal/console"
	"github.com/tyemirov/xschr/internal/runlog"
)

const (
	// UnbufferedEnvironmentVariable forces line-by-line output from Python children.
	UnbufferedEnvironmentVariable = "PYTHONUNBUFFERED=1"
	// LaunchFailureExitCode is reported for runs whose child never started.
	LaunchFailureExitCode = -1

	systemErrorTemplateConstant       = "     [System Error] %v"
	defaultInterruptGraceConstant     = 10 * time.Second
	commandMissingMessageConstant     = "command must contain at least an executable"
	launchErrorTemplateConstant       = "unable to launch %s: %v"
	childStartedMessageConstant       = "child process started"
	childExitedMessageConstant        = "child process exited"
	launchFailedMessageConstant       = "child process launch failed"
	logWriteFailedMessageConstant     = "log write failed"
	logCloseFailedMessageConstant     = "log close failed"
	outputAbandonedMessageConstant    = "output pipe still open after interrupt grace period, remaining output dropped"
	outputPipeErrorMessageConstant    = "unable to create output pipe"
	childInterruptedMessageConstant   = "child process interrupted"
	commandLogFieldConstant           = "command"
	logPathLogFieldConstant           = "log_path"
	processIdentifierLogFieldConstant = "pid"
	exitCodeLogFieldConstant          = "exit_code"
	durationLogFieldConstant          = "duration"
)

var (
	// ErrInterrupted reports that the invocation context was canceled while a child ran.
	ErrInterrupted = errors.New("execution interrupted")
	// ErrLoggerNotConfigured indicates a missing logger.
	ErrLoggerNotConfigured = errors.New("process runner logger not configured")
	// ErrOutputNotConfigured indicates a missing console writer.
	ErrOutputNotConfigured = errors.New("process runner output writer not configured")
)

// CommandBuilder constructs the child command. It exists so tests can substitute the executable.
type CommandBuilder func(executionContext context.Context, name string, arguments ...string) *exec.Cmd

// Outcome is the result of one child invocation.
type Outcome struct {
	ExitCode  int
	Succeeded bool
	Duration  time.Duration
}

// LaunchError describes a child that could not be started or whose log could not be opened.
type LaunchError struct {
	Command []string
	Err     error
}

// Error describes the launch failure.
func (launchError LaunchError) Error() string {
	return fmt.Sprintf(launchErrorTemplateConstant, strings.Join(launchError.Command, " "), launchError.Err)
}

// Unwrap exposes the underlying failure.
func (launchError LaunchError) Unwrap() error {
	return launchError.Err
}

// Options configures a Runner.
type Options struct {
	Logger               *zap.Logger
	Output               io.Writer
	Palette              *console.Palette
	Environment          map[string]string
	BaseEnvironment      []string
	Clock                func() time.Time
	CommandBuilder       CommandBuilder
	InterruptGracePeriod time.Duration
}

// Runner launches one child at a time and streams its combined output.
type Runner struct {
	logger         *zap.Logger
	output         io.Writer
	palette        console.Palette
	environment    []string
	clock          func() time.Time
	commandBuilder CommandBuilder
	interruptGrace time.Duration
}

// NewRunner validates options and constructs a Runner.
func NewRunner(options Options) (*Runner, error) {
	if options.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if options.Output == nil {
		return nil, ErrOutputNotConfigured
	}

	palette := console.NewPalette(options.Output)
	if options.Palette != nil {
		palette = *options.Palette
	}

	baseEnvironment := options.BaseEnvironment
	if baseEnvironment == nil {
		baseEnvironment = os.Environ()
	}

	clock := options.Clock
	if clock == nil {
		clock = time.Now
	}

	commandBuilder := options.CommandBuilder
	if commandBuilder == nil {
		commandBuilder = exec.CommandContext
	}

	interruptGrace := options.InterruptGracePeriod
	if interruptGrace <= 0 {
		interruptGrace = defaultInterruptGraceConstant
	}

	return &Runner{
		logger:         options.Logger,
		output:         options.Output,
		palette:        palette,
		environment:    BuildEnvironment(baseEnvironment, options.Environment),
		clock:          clock,
		commandBuilder: commandBuilder,
		interruptGrace: interruptGrace,
	}, nil
}

// BuildEnvironment appends the unbuffered-output override and the sorted extra variables
// to base. Later entries win when a key repeats.
func BuildEnvironment(base []string, overrides map[string]string) []string {
	environment := make([]string, 0, len(base)+len(overrides)+1)
	environment = append(environment, base...)
	environment = append(environment, UnbufferedEnvironmentVariable)

	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		environment = append(environment, key+"="+overrides[key])
	}
	return environment
}

// Execute runs command, mirroring every output line to the console and to a log record at logPath.
// Launch and log failures are reported on the console and returned as failed outcomes.
// ErrInterrupted is returned when executionContext is canceled; no footer is written in that case.
func (runner *Runner) Execute(executionContext context.Context, command []string, logPath string) (Outcome, error) {
	if len(command) == 0 {
		return runner.launchFailure(LaunchError{Command: command, Err: errors.New(commandMissingMessageConstant)}, logPath), nil
	}

	record, createError := runlog.Create(logPath, runner.clock)
	if createError != nil {
		return runner.launchFailure(LaunchError{Command: command, Err: createError}, logPath), nil
	}
	defer runner.closeRecord(record, logPath)

	if headerError := record.WriteHeader(command); headerError != nil {
		return runner.launchFailure(LaunchError{Command: command, Err: headerError}, logPath), nil
	}

	childCommand := runner.commandBuilder(executionContext, command[0], command[1:]...)
	childCommand.Env = runner.environment
	childCommand.Cancel = func() error {
		return childCommand.Process.Signal(os.Interrupt)
	}
	childCommand.WaitDelay = runner.interruptGrace

	combinedOutput := newLineStreamer(runner.output, record.Body(), func(writeError error) {
		runner.logger.Warn(logWriteFailedMessageConstant, zap.String(logPathLogFieldConstant, logPath), zap.Error(writeError))
	})

	// Both streams share one pipe so the OS interleave order is preserved. The pipe is
	// read to EOF, which outlives the child when a descendant still holds it open.
	outputReader, outputWriter, pipeError := os.Pipe()
	if pipeError != nil {
		return runner.launchFailure(LaunchError{Command: command, Err: fmt.Errorf("%s: %w", outputPipeErrorMessageConstant, pipeError)}, logPath), nil
	}
	childCommand.Stdout = outputWriter
	childCommand.Stderr = outputWriter

	startedAt := runner.clock()
	startError := childCommand.Start()
	_ = outputWriter.Close()
	if startError != nil {
		_ = outputReader.Close()
		if executionContext.Err() != nil {
			return Outcome{}, ErrInterrupted
		}
		return runner.launchFailure(LaunchError{Command: command, Err: startError}, logPath), nil
	}
	runner.logger.Debug(
		childStartedMessageConstant,
		zap.Strings(commandLogFieldConstant, command),
		zap.Int(processIdentifierLogFieldConstant, childCommand.Process.Pid),
	)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		_, _ = io.Copy(combinedOutput, outputReader)
	}()

	waitError := childCommand.Wait()
	runner.awaitDrain(executionContext, drained, outputReader, logPath)
	combinedOutput.Flush()
	duration := runner.clock().Sub(startedAt)
	if executionContext.Err() != nil {
		runner.logger.Warn(childInterruptedMessageConstant, zap.Strings(commandLogFieldConstant, command), zap.Error(waitError))
		return Outcome{}, ErrInterrupted
	}

	exitCode := ExitCodeOf(childCommand.ProcessState)

	if footerError := record.WriteFooter(exitCode); footerError != nil {
		runner.logger.Warn(logWriteFailedMessageConstant, zap.String(logPathLogFieldConstant, logPath), zap.Error(footerError))
	}

	runner.logger.Debug(
		childExitedMessageConstant,
		zap.Strings(commandLogFieldConstant, command),
		zap.Int(exitCodeLogFieldConstant, exitCode),
		zap.Duration(durationLogFieldConstant, duration),
	)

	return Outcome{ExitCode: exitCode, Succeeded: exitCode == 0, Duration: duration}, nil
}

// ExitCodeOf reports the child's exit status. A child terminated by a signal reports the
// negated signal number, so a SIGKILL reads -9.
func ExitCodeOf(processState *os.ProcessState) int {
	if processState == nil {
		return LaunchFailureExitCode
	}
	if waitStatus, available := processState.Sys().(syscall.WaitStatus); available && waitStatus.Signaled() {
		return -int(waitStatus.Signal())
	}
	return processState.ExitCode()
}

// awaitDrain blocks until the output pipe reaches EOF. Once executionContext is canceled
// the wait is bounded by the interrupt grace period, after which the pipe is closed.
func (runner *Runner) awaitDrain(executionContext context.Context, drained <-chan struct{}, outputReader *os.File, logPath string) {
	select {
	case <-drained:
		_ = outputReader.Close()
		return
	case <-executionContext.Done():
	}

	graceTimer := time.NewTimer(runner.interruptGrace)
	defer graceTimer.Stop()
	select {
	case <-drained:
	case <-graceTimer.C:
		runner.logger.Warn(outputAbandonedMessageConstant, zap.String(logPathLogFieldConstant, logPath))
	}
	_ = outputReader.Close()
	<-drained
}

func (runner *Runner) launchFailure(launchError LaunchError, logPath string) Outcome {
	fmt.Fprintln(runner.output, runner.palette.Failure(fmt.Sprintf(systemErrorTemplateConstant, launchError)))
	runner.logger.Warn(
		launchFailedMessageConstant,
		zap.Strings(commandLogFieldConstant, launchError.Command),
		zap.String(logPathLogFieldConstant, logPath),
		zap.Error(launchError),
	)
	return Outcome{ExitCode: LaunchFailureExitCode}
}

func (runner *Runner) closeRecord(record *runlog.Record, logPath string) {
	if closeError := record.Close(); closeError != nil {
		runner.logger.Warn(logCloseFailedMessageConstant, zap.String(logPathLogFieldConstant, logPath), zap.Error(closeError))
	}
}
