package utils_test

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/xschr/internal/utils"
)

// captureStandardError redirects os.Stderr while the loggers are built and used.
func captureStandardError(testInstance *testing.T, action func()) string {
	testInstance.Helper()
	pipeReader, pipeWriter, pipeError := os.Pipe()
	require.NoError(testInstance, pipeError)

	originalStandardError := os.Stderr
	os.Stderr = pipeWriter
	defer func() {
		os.Stderr = originalStandardError
	}()

	action()

	require.NoError(testInstance, pipeWriter.Close())
	captured, readError := io.ReadAll(pipeReader)
	require.NoError(testInstance, readError)
	require.NoError(testInstance, pipeReader.Close())
	return string(captured)
}

func TestLoggerFactoryHonorsLevelAndFormat(testInstance *testing.T) {
	testCases := []struct {
		name               string
		logLevel           utils.LogLevel
		logFormat          utils.LogFormat
		expectedDiagnostic []string
		droppedDiagnostic  []string
		expectConsoleEvent bool
		expectJSON         bool
	}{
		{
			name:               "default_error_level_drops_queue_progress",
			logLevel:           "error",
			logFormat:          "structured",
			expectedDiagnostic: []string{"engine crash"},
			droppedDiagnostic:  []string{"experiment queue starting", "child process started"},
			expectJSON:         true,
		},
		{
			name:               "debug_level_keeps_child_lifecycle",
			logLevel:           utils.LogLevelDebug,
			logFormat:          utils.LogFormatStructured,
			expectedDiagnostic: []string{"engine crash", "experiment queue starting", "child process started"},
			expectJSON:         true,
		},
		{
			name:               "console_format_mixed_case",
			logLevel:           " Info ",
			logFormat:          " Console ",
			expectedDiagnostic: []string{"engine crash", "experiment queue starting"},
			droppedDiagnostic:  []string{"child process started"},
			expectConsoleEvent: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			var creationError error
			captured := captureStandardError(testInstance, func() {
				var loggerOutputs utils.LoggerOutputs
				loggerOutputs, creationError = utils.NewLoggerFactory().CreateLoggerOutputs(testCase.logLevel, testCase.logFormat)
				if creationError != nil {
					return
				}
				loggerOutputs.DiagnosticLogger.Error("engine crash")
				loggerOutputs.DiagnosticLogger.Info("experiment queue starting")
				loggerOutputs.DiagnosticLogger.Debug("child process started")
				loggerOutputs.ConsoleLogger.Info("plan loaded")
			})
			require.NoError(testInstance, creationError)

			for _, message := range testCase.expectedDiagnostic {
				require.Contains(testInstance, captured, message)
			}
			for _, message := range testCase.droppedDiagnostic {
				require.NotContains(testInstance, captured, message)
			}
			if testCase.expectConsoleEvent {
				require.Contains(testInstance, captured, "plan loaded")
			} else {
				require.NotContains(testInstance, captured, "plan loaded")
			}

			firstLine, _, _ := bytes.Cut(bytes.TrimSpace([]byte(captured)), []byte("\n"))
			require.Equal(testInstance, testCase.expectJSON, json.Valid(firstLine))
		})
	}
}

func TestLoggerFactoryRejectsUnsupportedValues(testInstance *testing.T) {
	testCases := []struct {
		name          string
		logLevel      utils.LogLevel
		logFormat     utils.LogFormat
		expectedError string
	}{
		{name: "level", logLevel: "verbose", logFormat: utils.LogFormatStructured, expectedError: `unsupported log level "verbose"`},
		{name: "format", logLevel: utils.LogLevelInfo, logFormat: "xml", expectedError: `unsupported log format "xml"`},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			loggerOutputs, creationError := utils.NewLoggerFactory().CreateLoggerOutputs(testCase.logLevel, testCase.logFormat)
			require.EqualError(testInstance, creationError, testCase.expectedError)
			require.Zero(testInstance, loggerOutputs)
		})
	}
}
