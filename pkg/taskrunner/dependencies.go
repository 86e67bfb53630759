package taskrunner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/xschr/internal/console"
	"github.com/tyemirov/xschr/internal/engine"
	"github.com/tyemirov/xschr/internal/process"
	"github.com/tyemirov/xschr/internal/prompt"
)

var (
	errOutputWriterMissing = errors.New("taskrunner.dependencies: output writer not available")
	errErrorWriterMissing  = errors.New("taskrunner.dependencies: error writer not available")
)

// DependenciesConfig captures providers required to build run dependencies.
type DependenciesConfig struct {
	LoggerProvider       func() *zap.Logger
	Runner               engine.ProcessRunner
	ConfirmerFactory     func(*cobra.Command) engine.Confirmer
	Environment          map[string]string
	InterruptGracePeriod time.Duration
}

// DependenciesOptions allows per-invocation overrides when resolving run dependencies.
type DependenciesOptions struct {
	Command          *cobra.Command
	Output           io.Writer
	Errors           io.Writer
	Confirmer        engine.Confirmer
	DisableConfirmer bool
}

// DependenciesResult exposes resolved collaborators along with the executor wiring.
type DependenciesResult struct {
	Executor Dependencies
	Runner   engine.ProcessRunner
	Errors   io.Writer
}

// BuildDependencies resolves the child runner, the launch confirmer, and the console writers.
func BuildDependencies(config DependenciesConfig, options DependenciesOptions) (DependenciesResult, error) {
	logger := resolveLogger(config.LoggerProvider)

	outputWriter := resolveWriter(options.Output, options.Command, true)
	if outputWriter == nil {
		return DependenciesResult{}, errOutputWriterMissing
	}
	errorWriter := resolveWriter(options.Errors, options.Command, false)
	if errorWriter == nil {
		return DependenciesResult{}, errErrorWriterMissing
	}

	palette := console.NewPalette(outputWriter)

	runner := config.Runner
	if runner == nil {
		processRunner, runnerError := process.NewRunner(process.Options{
			Logger:               logger,
			Output:               outputWriter,
			Palette:              &palette,
			Environment:          config.Environment,
			InterruptGracePeriod: config.InterruptGracePeriod,
		})
		if runnerError != nil {
			return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.process_runner: %w", runnerError)
		}
		runner = processRunner
	}

	return DependenciesResult{
		Executor: Dependencies{
			Logger:    logger,
			Output:    outputWriter,
			Runner:    runner,
			Confirmer: resolveConfirmer(config.ConfirmerFactory, options),
			Palette:   &palette,
		},
		Runner: runner,
		Errors: errorWriter,
	}, nil
}

func resolveLogger(provider func() *zap.Logger) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveWriter(provided io.Writer, command *cobra.Command, useStdout bool) io.Writer {
	if provided != nil {
		return provided
	}
	if command == nil {
		return nil
	}
	if useStdout {
		return command.OutOrStdout()
	}
	return command.ErrOrStderr()
}

func resolveConfirmer(factory func(*cobra.Command) engine.Confirmer, options DependenciesOptions) engine.Confirmer {
	if options.DisableConfirmer {
		return nil
	}
	if options.Confirmer != nil {
		return options.Confirmer
	}
	if factory != nil {
		if confirmer := factory(options.Command); confirmer != nil {
			return confirmer
		}
	}

	var inputReader io.Reader = os.Stdin
	var outputWriter io.Writer = os.Stdout
	if options.Command != nil {
		inputReader = options.Command.InOrStdin()
		outputWriter = options.Command.OutOrStdout()
	}
	return prompt.NewLaunchConfirmer(inputReader, outputWriter)
}
