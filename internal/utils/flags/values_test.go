package flags_test

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/tyemirov/xschr/internal/utils"
	flagutils "github.com/tyemirov/xschr/internal/utils/flags"
)

func newExecutionCommand(defaults flagutils.ExecutionDefaults) *cobra.Command {
	command := &cobra.Command{Use: "xschr", RunE: func(*cobra.Command, []string) error { return nil }}
	flagutils.BindExecutionFlags(command, defaults, flagutils.DefaultExecutionFlagDefinitions())
	return command
}

func TestCollectExecutionFlagsReportsChangedValues(testInstance *testing.T) {
	testCases := []struct {
		name          string
		arguments     []string
		defaults      flagutils.ExecutionDefaults
		expectedFlags utils.ExecutionFlags
	}{
		{
			name:          "no_flags",
			arguments:     []string{},
			expectedFlags: utils.ExecutionFlags{},
		},
		{
			name:      "fail_fast_and_dry_run",
			arguments: []string{"--fail-fast", "--dry-run"},
			expectedFlags: utils.ExecutionFlags{
				FailFast:    true,
				FailFastSet: true,
				DryRun:      true,
				DryRunSet:   true,
			},
		},
		{
			name:      "assume_yes_shorthand_and_debug",
			arguments: []string{"-y", "--debug"},
			expectedFlags: utils.ExecutionFlags{
				AssumeYes:    true,
				AssumeYesSet: true,
				Debug:        true,
			},
		},
		{
			name:          "configured_default_not_marked_changed",
			arguments:     []string{},
			defaults:      flagutils.ExecutionDefaults{FailFast: true},
			expectedFlags: utils.ExecutionFlags{FailFast: true},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			command := newExecutionCommand(testCase.defaults)
			require.NoError(testInstance, command.ParseFlags(testCase.arguments))

			require.Equal(testInstance, testCase.expectedFlags, flagutils.CollectExecutionFlags(command))
		})
	}
}

func TestBoolFlagMissingDefinition(testInstance *testing.T) {
	command := &cobra.Command{Use: "bare"}

	_, _, lookupError := flagutils.BoolFlag(command, flagutils.FailFastFlagName)
	require.ErrorIs(testInstance, lookupError, flagutils.ErrFlagNotDefined)
}

func TestStringFlagTrimsValue(testInstance *testing.T) {
	command := &cobra.Command{Use: "xschr"}
	command.Flags().StringP(flagutils.PathFlagName, flagutils.PathFlagShorthand, "", flagutils.PathFlagUsage)
	require.NoError(testInstance, command.ParseFlags([]string{"-p", " plan.yaml "}))

	value, changed, lookupError := flagutils.StringFlag(command, flagutils.PathFlagName)
	require.NoError(testInstance, lookupError)
	require.True(testInstance, changed)
	require.Equal(testInstance, "plan.yaml", value)
}

func TestResolveExecutionFlagsPrefersContext(testInstance *testing.T) {
	command := newExecutionCommand(flagutils.ExecutionDefaults{})
	require.NoError(testInstance, command.ParseFlags([]string{"--dry-run"}))

	contextFlags := utils.ExecutionFlags{FailFast: true, FailFastSet: true}
	command.SetContext(utils.NewCommandContextAccessor().WithExecutionFlags(context.Background(), contextFlags))

	require.Equal(testInstance, contextFlags, flagutils.ResolveExecutionFlags(command))
}
