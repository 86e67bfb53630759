package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/xschr/cmd/cli"
	"github.com/tyemirov/xschr/internal/utils"
)

const (
	testEnvironmentPrefixConstant     = "XSCHR"
	testConfigurationNameConstant     = "config"
	testConfigurationTypeConstant     = "yaml"
	testConfigFileNameConstant        = "config.yaml"
	testPythonCommandEnvironmentName  = "XSCHR_COMMON_PYTHON_CMD"
	testFailFastEnvironmentName       = "XSCHR_COMMON_FAIL_FAST"
	testUserConfigurationDirectory    = ".xschr"
	testXDGConfigurationDirectoryName = "xschr"
)

func newSettingsLoader(searchPaths ...string) *utils.ConfigurationLoader {
	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, searchPaths)
	embeddedConfiguration, embeddedType := cli.EmbeddedDefaultConfiguration()
	loader.SetEmbeddedConfiguration(embeddedConfiguration, embeddedType)
	return loader
}

func writeSettingsFile(testInstance *testing.T, directory string, content string) string {
	testInstance.Helper()
	require.NoError(testInstance, os.MkdirAll(directory, 0o755))
	settingsPath := filepath.Join(directory, testConfigFileNameConstant)
	require.NoError(testInstance, os.WriteFile(settingsPath, []byte(content), 0o600))
	return settingsPath
}

func TestConfigurationLoaderAppliesEmbeddedDefaults(testInstance *testing.T) {
	loadedConfiguration := cli.ApplicationConfiguration{}
	metadata, loadError := newSettingsLoader(testInstance.TempDir()).LoadConfiguration("", nil, &loadedConfiguration)
	require.NoError(testInstance, loadError)
	require.Empty(testInstance, metadata.ConfigFileUsed)

	require.Equal(testInstance, cli.ApplicationCommonConfiguration{
		LogLevel:      "error",
		LogFormat:     "structured",
		PythonCommand: "python3",
		LogDirectory:  "logs",
		AssumeYes:     false,
		FailFast:      false,
	}, loadedConfiguration.Common)
}

func TestConfigurationLoaderLayering(testInstance *testing.T) {
	testCases := []struct {
		name                  string
		fileContent           string
		environment           map[string]string
		expectedPythonCommand string
		expectedLogDirectory  string
		expectedFailFast      bool
	}{
		{
			name:                  "settings_file_overrides_embedded",
			fileContent:           "common:\n  python_cmd: /opt/conda/bin/python\n  log_dir: /scratch/logs\n  fail_fast: true\n",
			expectedPythonCommand: "/opt/conda/bin/python",
			expectedLogDirectory:  "/scratch/logs",
			expectedFailFast:      true,
		},
		{
			name:                  "environment_overrides_settings_file",
			fileContent:           "common:\n  python_cmd: /opt/conda/bin/python\n",
			environment:           map[string]string{testPythonCommandEnvironmentName: "python3.11", testFailFastEnvironmentName: "true"},
			expectedPythonCommand: "python3.11",
			expectedLogDirectory:  "logs",
			expectedFailFast:      true,
		},
		{
			name:                  "environment_overrides_embedded",
			environment:           map[string]string{testPythonCommandEnvironmentName: "pypy3"},
			expectedPythonCommand: "pypy3",
			expectedLogDirectory:  "logs",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			settingsDirectory := testInstance.TempDir()
			if len(testCase.fileContent) > 0 {
				writeSettingsFile(testInstance, settingsDirectory, testCase.fileContent)
			}
			for environmentName, environmentValue := range testCase.environment {
				testInstance.Setenv(environmentName, environmentValue)
			}

			loadedConfiguration := cli.ApplicationConfiguration{}
			_, loadError := newSettingsLoader(settingsDirectory).LoadConfiguration("", nil, &loadedConfiguration)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedPythonCommand, loadedConfiguration.Common.PythonCommand)
			require.Equal(testInstance, testCase.expectedLogDirectory, loadedConfiguration.Common.LogDirectory)
			require.Equal(testInstance, testCase.expectedFailFast, loadedConfiguration.Common.FailFast)
		})
	}
}

func TestConfigurationLoaderSearchOrder(testInstance *testing.T) {
	testCases := []struct {
		name                  string
		populatedRoles        []string
		expectedRole          string
		expectedPythonCommand string
	}{
		{name: "working_directory_only", populatedRoles: []string{"working"}, expectedRole: "working", expectedPythonCommand: "python-working"},
		{name: "xdg_only", populatedRoles: []string{"xdg"}, expectedRole: "xdg", expectedPythonCommand: "python-xdg"},
		{name: "home_only", populatedRoles: []string{"home"}, expectedRole: "home", expectedPythonCommand: "python-home"},
		{name: "working_preferred", populatedRoles: []string{"working", "xdg", "home"}, expectedRole: "working", expectedPythonCommand: "python-working"},
		{name: "xdg_over_home", populatedRoles: []string{"xdg", "home"}, expectedRole: "xdg", expectedPythonCommand: "python-xdg"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			homeDirectory := testInstance.TempDir()
			directoryByRole := map[string]string{
				"working": testInstance.TempDir(),
				"xdg":     filepath.Join(homeDirectory, "config", testXDGConfigurationDirectoryName),
				"home":    filepath.Join(homeDirectory, testUserConfigurationDirectory),
			}
			for _, role := range testCase.populatedRoles {
				writeSettingsFile(testInstance, directoryByRole[role], "common:\n  python_cmd: python-"+role+"\n")
			}

			loader := newSettingsLoader(directoryByRole["working"], directoryByRole["xdg"], directoryByRole["home"])
			loadedConfiguration := cli.ApplicationConfiguration{}
			metadata, loadError := loader.LoadConfiguration("", nil, &loadedConfiguration)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedPythonCommand, loadedConfiguration.Common.PythonCommand)
			require.Equal(testInstance, filepath.Join(directoryByRole[testCase.expectedRole], testConfigFileNameConstant), metadata.ConfigFileUsed)
		})
	}
}

func TestConfigurationLoaderExplicitFileOverridesSearchPaths(testInstance *testing.T) {
	searchDirectory := filepath.Join(testInstance.TempDir(), "search")
	writeSettingsFile(testInstance, searchDirectory, "common:\n  log_dir: search-logs\n")
	explicitPath := writeSettingsFile(testInstance, filepath.Join(testInstance.TempDir(), "explicit"), "common:\n  log_dir: explicit-logs\n  assume_yes: true\n")

	loadedConfiguration := cli.ApplicationConfiguration{}
	metadata, loadError := newSettingsLoader(searchDirectory).LoadConfiguration(explicitPath, nil, &loadedConfiguration)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, explicitPath, metadata.ConfigFileUsed)
	require.Equal(testInstance, "explicit-logs", loadedConfiguration.Common.LogDirectory)
	require.True(testInstance, loadedConfiguration.Common.AssumeYes)
	require.Equal(testInstance, "python3", loadedConfiguration.Common.PythonCommand)
}

func TestConfigurationLoaderReportsFailures(testInstance *testing.T) {
	loader := newSettingsLoader(testInstance.TempDir())

	_, missingError := loader.LoadConfiguration(filepath.Join(testInstance.TempDir(), "absent.yaml"), nil, &cli.ApplicationConfiguration{})
	require.ErrorContains(testInstance, missingError, "unable to read configuration file")

	_, targetError := loader.LoadConfiguration("", nil, nil)
	require.ErrorContains(testInstance, targetError, "configuration target not provided")
}
