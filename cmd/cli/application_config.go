package cli

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/tyemirov/xschr/internal/engine"
	"github.com/tyemirov/xschr/internal/plan"
)

const (
	embeddedConfigurationTypeConstant = "yaml"
	exitStatusTemplateConstant        = "exit status %d"

	// ExitCodeFailure reports a configuration error, an engine crash, or a failed run.
	ExitCodeFailure = 1
	// ExitCodeInterrupted follows the SIGINT convention of 128+2.
	ExitCodeInterrupted = 130
)

//go:embed default_config.yaml
var embeddedDefaultConfiguration []byte

// EmbeddedDefaultConfiguration returns the built-in settings document and its format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return append([]byte{}, embeddedDefaultConfiguration...), embeddedConfigurationTypeConstant
}

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
}

// ApplicationCommonConfiguration stores logging and execution defaults.
// PythonCommand and LogDirectory apply only when the plan's config block omits them.
type ApplicationCommonConfiguration struct {
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	PythonCommand string `mapstructure:"python_cmd"`
	LogDirectory  string `mapstructure:"log_dir"`
	AssumeYes     bool   `mapstructure:"assume_yes"`
	FailFast      bool   `mapstructure:"fail_fast"`
}

// resolveSettings layers the plan's config block over the application defaults.
func (configuration ApplicationCommonConfiguration) resolveSettings(planSettings plan.Settings) plan.Settings {
	resolved := planSettings
	if len(resolved.PythonCommand) == 0 {
		resolved.PythonCommand = configuration.PythonCommand
	}
	if len(resolved.LogDirectory) == 0 {
		resolved.LogDirectory = configuration.LogDirectory
	}
	return resolved
}

type configurationInitializationPlan struct {
	DirectoryPath string
	FilePath      string
}

// ExitError carries the process exit code of a finished invocation.
// Reported is set when the operator has already been shown the failure.
type ExitError struct {
	Code     int
	Cause    error
	Reported bool
}

// Error describes the failure.
func (exitError ExitError) Error() string {
	if exitError.Cause == nil {
		return fmt.Sprintf(exitStatusTemplateConstant, exitError.Code)
	}
	return exitError.Cause.Error()
}

// Unwrap exposes the underlying failure.
func (exitError ExitError) Unwrap() error {
	return exitError.Cause
}

// ExitCode maps an Execute result to a process exit code.
func ExitCode(executionError error) int {
	if executionError == nil {
		return 0
	}
	var exitError ExitError
	if errors.As(executionError, &exitError) {
		return exitError.Code
	}
	return ExitCodeFailure
}

// Reported reports whether the failure was already printed for the operator.
func Reported(executionError error) bool {
	var exitError ExitError
	return errors.As(executionError, &exitError) && exitError.Reported
}

// runsFailedError reports the number of failed runs of a finished queue.
type runsFailedError struct {
	stats engine.Stats
}

func (failure runsFailedError) Error() string {
	return fmt.Sprintf("%d of %d runs failed", failure.stats.Failed, failure.stats.Attempted())
}
