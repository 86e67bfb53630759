package taskrunner

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/xschr/internal/engine"
	"github.com/tyemirov/xschr/internal/plan"
	"github.com/tyemirov/xschr/internal/process"
)

type fakeExecutor struct {
	result engine.Result
	err    error
	calls  int
}

func (executor *fakeExecutor) Run(context.Context, plan.Plan, engine.ExecutionContext) (engine.Result, error) {
	executor.calls++
	return executor.result, executor.err
}

type noopRunner struct{}

func (noopRunner) Execute(context.Context, []string, string) (process.Outcome, error) {
	return process.Outcome{Succeeded: true}, nil
}

func TestRenderSummaryLine(testInstance *testing.T) {
	testCases := []struct {
		name     string
		stats    engine.Stats
		expected string
	}{
		{name: "all_passed", stats: engine.Stats{Success: 3}, expected: "✓ All 3 runs completed successfully."},
		{name: "nothing_ran", stats: engine.Stats{}, expected: "✓ All 0 runs completed successfully."},
		{name: "some_failed", stats: engine.Stats{Success: 2, Failed: 1}, expected: "✗ Completed: 2 | Failed: 1"},
	}

	for testCaseIndex := range testCases {
		testCase := testCases[testCaseIndex]
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, RenderSummaryLine(testCase.stats))
		})
	}
}

func TestRenderRunTableListsEveryRecord(testInstance *testing.T) {
	records := []engine.RunRecord{
		{Experiment: "baseline", RunIndex: 1, RunCount: 2, LogPath: "logs/run_1/baseline_1.log", Status: engine.RunStatusSucceeded, Duration: 1500 * time.Millisecond},
		{Experiment: "baseline", RunIndex: 2, RunCount: 2, LogPath: "logs/run_1/baseline_2.log", ExitCode: 3, Status: engine.RunStatusFailed, Duration: 500 * time.Millisecond},
		{Experiment: "broken", ExitCode: process.LaunchFailureExitCode, Status: engine.RunStatusMissingScript},
	}

	rendered := RenderRunTable(records)

	require.Contains(testInstance, rendered, "EXPERIMENT")
	require.Contains(testInstance, rendered, "baseline_1.log")
	require.Contains(testInstance, rendered, "1/2")
	require.Contains(testInstance, rendered, "2/2")
	require.Contains(testInstance, rendered, "FAIL")
	require.Contains(testInstance, rendered, "MISSING SCRIPT")
	require.Contains(testInstance, rendered, "PASS 1")
	require.Contains(testInstance, rendered, "2s")
}

func TestSummaryExecutorPrintsSummaryAfterRealRun(testInstance *testing.T) {
	buffer := &bytes.Buffer{}
	delegate := &fakeExecutor{result: engine.Result{
		Stats:   engine.Stats{Success: 1, Failed: 1},
		Records: []engine.RunRecord{{Experiment: "a", RunIndex: 1, RunCount: 1, Status: engine.RunStatusSucceeded}},
	}}

	executor, resolveError := Resolve(func(Dependencies) Executor { return delegate }, Dependencies{Output: buffer})
	require.NoError(testInstance, resolveError)

	_, runError := executor.Run(context.Background(), plan.Plan{}, engine.ExecutionContext{})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, delegate.calls)
	require.Contains(testInstance, buffer.String(), "[Final Summary]")
	require.Contains(testInstance, buffer.String(), "✗ Completed: 1 | Failed: 1")
	require.NotContains(testInstance, buffer.String(), "Logs: ")
}

func TestSummaryExecutorSkipsSummary(testInstance *testing.T) {
	testCases := []struct {
		name         string
		settings     engine.ExecutionContext
		runError     error
		dependencies Dependencies
	}{
		{name: "dry_run", settings: engine.ExecutionContext{DryRun: true}},
		{name: "failed_run", runError: process.ErrInterrupted},
		{name: "disabled", dependencies: Dependencies{DisableSummary: true}},
	}

	for testCaseIndex := range testCases {
		testCase := testCases[testCaseIndex]
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			buffer := &bytes.Buffer{}
			dependencies := testCase.dependencies
			dependencies.Output = buffer
			delegate := &fakeExecutor{err: testCase.runError}

			executor, resolveError := Resolve(func(Dependencies) Executor { return delegate }, dependencies)
			require.NoError(testInstance, resolveError)

			_, runError := executor.Run(context.Background(), plan.Plan{}, testCase.settings)
			require.True(testInstance, errors.Is(runError, testCase.runError))
			require.Empty(testInstance, buffer.String())
		})
	}
}

func TestResolveBuildsDefaultSequencer(testInstance *testing.T) {
	executor, resolveError := Resolve(nil, Dependencies{Logger: zap.NewNop(), Output: &bytes.Buffer{}, Runner: noopRunner{}})
	require.NoError(testInstance, resolveError)
	require.NotNil(testInstance, executor)
}

func TestResolvePropagatesSequencerValidation(testInstance *testing.T) {
	_, resolveError := Resolve(nil, Dependencies{Logger: zap.NewNop(), Output: &bytes.Buffer{}})
	require.ErrorIs(testInstance, resolveError, engine.ErrRunnerNotConfigured)
}

func TestSummaryNamesRunDirectoryOnlyWhenCreated(testInstance *testing.T) {
	testCases := []struct {
		name          string
		created       bool
		expectLogLine bool
	}{
		{name: "created", created: true, expectLogLine: true},
		{name: "never_created", created: false, expectLogLine: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			buffer := &bytes.Buffer{}
			delegate := &fakeExecutor{result: engine.Result{
				Stats:               engine.Stats{Success: 1},
				RunDirectory:        "/work/logs/run_20240501_123045",
				RunDirectoryCreated: testCase.created,
			}}

			executor, resolveError := Resolve(func(Dependencies) Executor { return delegate }, Dependencies{Output: buffer})
			require.NoError(testInstance, resolveError)

			_, runError := executor.Run(context.Background(), plan.Plan{}, engine.ExecutionContext{})
			require.NoError(testInstance, runError)
			if testCase.expectLogLine {
				require.Contains(testInstance, buffer.String(), "Logs: /work/logs/run_20240501_123045\n")
			} else {
				require.NotContains(testInstance, buffer.String(), "Logs: ")
			}
		})
	}
}
