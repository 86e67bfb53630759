package taskrunner

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/tyemirov/xschr/internal/console"
	"github.com/tyemirov/xschr/internal/engine"
	"github.com/tyemirov/xschr/internal/plan"
)

const (
	finalSummaryHeaderConstant   = "\n[Final Summary]"
	runDirectoryTemplateConstant = "Logs: %s\n"
)

// Executor runs an experiment plan.
type Executor interface {
	Run(ctx context.Context, experimentPlan plan.Plan, settings engine.ExecutionContext) (engine.Result, error)
}

// Factory constructs an Executor given run dependencies.
type Factory func(Dependencies) Executor

// Dependencies are the collaborators shared by the sequencer and the summary report.
type Dependencies struct {
	Logger         *zap.Logger
	Output         io.Writer
	Runner         engine.ProcessRunner
	Confirmer      engine.Confirmer
	Palette        *console.Palette
	DisableSummary bool
}

// Resolve returns either the provided factory result or a default sequencer, wrapped so that
// a real run ends with the final summary.
func Resolve(factory Factory, dependencies Dependencies) (Executor, error) {
	var base Executor
	if factory != nil {
		base = factory(dependencies)
	}
	if base == nil {
		sequencer, sequencerError := engine.NewSequencer(engine.Dependencies{
			Logger:    dependencies.Logger,
			Output:    dependencies.Output,
			Runner:    dependencies.Runner,
			Confirmer: dependencies.Confirmer,
			Palette:   dependencies.Palette,
		})
		if sequencerError != nil {
			return nil, sequencerError
		}
		base = sequencer
	}

	palette := console.NewPalette(dependencies.Output)
	if dependencies.Palette != nil {
		palette = *dependencies.Palette
	}
	return summaryExecutor{
		delegate:     base,
		dependencies: dependencies,
		palette:      palette,
	}, nil
}

type summaryExecutor struct {
	delegate     Executor
	dependencies Dependencies
	palette      console.Palette
}

func (executor summaryExecutor) Run(ctx context.Context, experimentPlan plan.Plan, settings engine.ExecutionContext) (engine.Result, error) {
	result, err := executor.delegate.Run(ctx, experimentPlan, settings)
	if err == nil && !settings.DryRun {
		executor.printSummary(result)
	}
	return result, err
}

func (executor summaryExecutor) printSummary(result engine.Result) {
	if executor.dependencies.DisableSummary || executor.dependencies.Output == nil {
		return
	}
	writer := executor.dependencies.Output

	fmt.Fprintln(writer, finalSummaryHeaderConstant)
	if len(result.Records) > 0 {
		fmt.Fprintln(writer, RenderRunTable(result.Records))
	}

	summary := RenderSummaryLine(result.Stats)
	if result.Stats.Failed == 0 {
		fmt.Fprintln(writer, executor.palette.SummarySuccess(summary))
	} else {
		fmt.Fprintln(writer, executor.palette.SummaryFailure(summary))
	}
	if result.RunDirectoryCreated {
		fmt.Fprintf(writer, runDirectoryTemplateConstant, result.RunDirectory)
	}
}
