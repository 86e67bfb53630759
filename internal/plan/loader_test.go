package plan_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/xschr/internal/plan"
)

const (
	planTestFileName     = "experiments.yaml"
	completePlanDocument = `config:
  python_cmd: python3.11
  log_dir: results
  env:
    CUDA_VISIBLE_DEVICES: 0
experiments:
  - name: baseline
    script: scripts/train.py
    runs:
      - args: "--lr 0.1 --epochs 5"
      - args: ["--lr", "0.01"]
  - script: scripts/eval.py
    runs:
      - args: ""
`
	jsonPlanDocument = `{"experiments": [{"name": "json", "script": "a.py", "runs": [{"args": ["--seed", 7]}]}]}`
)

func writePlan(testInstance *testing.T, content string) string {
	testInstance.Helper()
	planPath := filepath.Join(testInstance.TempDir(), planTestFileName)
	require.NoError(testInstance, os.WriteFile(planPath, []byte(content), 0o600))
	return planPath
}

func TestLoadCompletePlan(testInstance *testing.T) {
	planPath := writePlan(testInstance, completePlanDocument)

	loadedPlan, absolutePath, loadError := plan.NewLoader(zap.NewNop()).Load(planPath)
	require.NoError(testInstance, loadError)
	require.True(testInstance, filepath.IsAbs(absolutePath))
	require.Equal(testInstance, planPath, absolutePath)

	require.Equal(testInstance, plan.Settings{
		PythonCommand: "python3.11",
		LogDirectory:  "results",
		Environment:   map[string]string{"CUDA_VISIBLE_DEVICES": "0"},
	}, loadedPlan.Settings)

	require.Len(testInstance, loadedPlan.Experiments, 2)
	baseline := loadedPlan.Experiments[0]
	require.Equal(testInstance, "baseline", baseline.Name)
	require.Equal(testInstance, "scripts/train.py", baseline.Script)
	require.Len(testInstance, baseline.Runs, 2)
	require.Equal(testInstance, []string{"--lr", "0.1", "--epochs", "5"}, baseline.Runs[0].Arguments.Tokens())
	require.Equal(testInstance, "--lr 0.1 --epochs 5", baseline.Runs[0].Arguments.String())
	require.Equal(testInstance, []string{"--lr", "0.01"}, baseline.Runs[1].Arguments.Tokens())

	unnamed := loadedPlan.Experiments[1]
	require.Equal(testInstance, "exp_1", unnamed.Name)
	require.Empty(testInstance, unnamed.Runs[0].Arguments.Tokens())
	require.Equal(testInstance, 3, loadedPlan.RunCount())
}

func TestParseAcceptsJSON(testInstance *testing.T) {
	parsedPlan, parseError := plan.Parse([]byte(jsonPlanDocument), ".json")
	require.NoError(testInstance, parseError)
	require.Len(testInstance, parsedPlan.Experiments, 1)
	require.Equal(testInstance, []string{"--seed", "7"}, parsedPlan.Experiments[0].Runs[0].Arguments.Tokens())
}

func TestParseStructuralErrors(testInstance *testing.T) {
	testCases := []struct {
		name          string
		document      string
		expectedError error
	}{
		{name: "empty_document", document: "", expectedError: plan.ErrPlanEmpty},
		{name: "null_document", document: "~\n", expectedError: plan.ErrPlanEmpty},
		{name: "empty_mapping", document: "{}\n", expectedError: plan.ErrPlanEmpty},
		{name: "missing_experiments", document: "config:\n  log_dir: logs\n", expectedError: plan.ErrExperimentsMissing},
		{name: "experiments_mapping", document: "experiments:\n  name: x\n", expectedError: plan.ErrExperimentsNotList},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, parseError := plan.Parse([]byte(testCase.document), ".yaml")
			require.ErrorIs(testInstance, parseError, testCase.expectedError)
		})
	}
}

func TestParseEmptyExperimentListIsValid(testInstance *testing.T) {
	parsedPlan, parseError := plan.Parse([]byte("experiments: []\n"), ".yaml")
	require.NoError(testInstance, parseError)
	require.Empty(testInstance, parsedPlan.Experiments)
	require.Zero(testInstance, parsedPlan.RunCount())
}

func TestParseValidationErrors(testInstance *testing.T) {
	testCases := []struct {
		name          string
		document      string
		expectedError plan.ValidationError
	}{
		{
			name:          "missing_script",
			document:      "experiments:\n  - name: a\n    runs: []\n",
			expectedError: plan.ValidationError{ExperimentIndex: 0, Field: "script", Reason: "missing required value"},
		},
		{
			name:          "experiment_not_mapping",
			document:      "experiments:\n  - script: a.py\n  - just-a-string\n",
			expectedError: plan.ValidationError{ExperimentIndex: 1, Reason: "must be a mapping"},
		},
		{
			name:          "runs_not_list",
			document:      "experiments:\n  - script: a.py\n    runs: {args: x}\n",
			expectedError: plan.ValidationError{ExperimentIndex: 0, Field: "runs", Reason: "must be a list"},
		},
		{
			name:          "run_not_mapping",
			document:      "experiments:\n  - script: a.py\n    runs: [--lr]\n",
			expectedError: plan.ValidationError{ExperimentIndex: 0, Field: "runs[0]", Reason: "must be a mapping"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, parseError := plan.Parse([]byte(testCase.document), ".yaml")
			var validationError plan.ValidationError
			require.ErrorAs(testInstance, parseError, &validationError)
			require.Equal(testInstance, testCase.expectedError, validationError)
		})
	}
}

func TestParseRejectsMalformedArguments(testInstance *testing.T) {
	testCases := []struct {
		name     string
		document string
	}{
		{name: "nested_list", document: "experiments:\n  - script: a.py\n    runs:\n      - args: [[--lr]]\n"},
		{name: "mapping", document: "experiments:\n  - script: a.py\n    runs:\n      - args: {lr: 1}\n"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, parseError := plan.Parse([]byte(testCase.document), ".yaml")
			var validationError plan.ValidationError
			require.ErrorAs(testInstance, parseError, &validationError)
			require.Equal(testInstance, "runs[0].args", validationError.Field)
		})
	}
}

func TestLoadMissingFile(testInstance *testing.T) {
	missingPath := filepath.Join(testInstance.TempDir(), "absent.yaml")
	_, _, loadError := plan.NewLoader(nil).Load(missingPath)
	require.EqualError(testInstance, loadError, "Config file not found at "+missingPath)
}

func TestLoadWarnsAboutUnknownSettings(testInstance *testing.T) {
	planPath := writePlan(testInstance, "config:\n  gpu_count: 2\nexperiments: []\n")
	observerCore, observedLogs := observer.New(zap.WarnLevel)

	_, _, loadError := plan.NewLoader(zap.New(observerCore)).Load(planPath)
	require.NoError(testInstance, loadError)

	warnings := observedLogs.FilterMessage("ignoring unknown plan config keys").All()
	require.Len(testInstance, warnings, 1)
	require.Equal(testInstance, []any{"gpu_count"}, warnings[0].ContextMap()["keys"])
}

func TestParseRejectsNonMappingSettings(testInstance *testing.T) {
	_, parseError := plan.Parse([]byte("config: [a]\nexperiments: []\n"), ".yaml")
	require.EqualError(testInstance, parseError, "'config' must be a mapping.")
}
