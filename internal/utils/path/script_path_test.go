package pathutils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/tyemirov/xschr/internal/utils/path"
)

func TestResolveScriptPath(testInstance *testing.T) {
	testCases := []struct {
		name                  string
		configurationFilePath string
		scriptReference       string
		expectedPath          string
	}{
		{
			name:                  "relative_to_configuration_directory",
			configurationFilePath: "/x/y/conf.yaml",
			scriptReference:       "scripts/a.py",
			expectedPath:          "/x/y/scripts/a.py",
		},
		{
			name:                  "parent_segments_normalized",
			configurationFilePath: "/x/y/conf.yaml",
			scriptReference:       "../shared/./train.py",
			expectedPath:          "/x/shared/train.py",
		},
		{
			name:                  "redundant_separators_removed",
			configurationFilePath: "/x/y/conf.yaml",
			scriptReference:       "scripts//nested///b.py",
			expectedPath:          "/x/y/scripts/nested/b.py",
		},
		{
			name:                  "absolute_reference_kept",
			configurationFilePath: "/x/y/conf.yaml",
			scriptReference:       "/opt/jobs/../jobs/run.py",
			expectedPath:          "/opt/jobs/run.py",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			resolvedPath := pathutils.ResolveScriptPath(testCase.configurationFilePath, testCase.scriptReference)
			require.Equal(testInstance, filepath.FromSlash(testCase.expectedPath), resolvedPath)
		})
	}
}

func TestResolveScriptPathIgnoresWorkingDirectory(testInstance *testing.T) {
	configurationDirectory := testInstance.TempDir()
	configurationFilePath := filepath.Join(configurationDirectory, "plan.yaml")

	otherDirectory := testInstance.TempDir()
	testInstance.Chdir(otherDirectory)

	workingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)
	require.NotEqual(testInstance, configurationDirectory, workingDirectory)

	resolvedPath := pathutils.ResolveScriptPath(configurationFilePath, "train.py")
	require.Equal(testInstance, filepath.Join(configurationDirectory, "train.py"), resolvedPath)
}
