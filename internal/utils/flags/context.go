package flags

const (
	// PathFlagName exposes the experiment plan flag name.
	PathFlagName = "path"
	// PathFlagShorthand provides the shorthand for the experiment plan flag.
	PathFlagShorthand = "p"
	// PathFlagUsage describes the experiment plan flag purpose.
	PathFlagUsage = "Path to the experiment configuration file (YAML or JSON)"
	// FailFastFlagName exposes the shared fail-fast flag name.
	FailFastFlagName = "fail-fast"
	// FailFastFlagUsage describes the shared fail-fast flag purpose.
	FailFastFlagUsage = "Stop the entire queue immediately if a single run fails"
	// DryRunFlagName exposes the shared dry-run flag name.
	DryRunFlagName = "dry-run"
	// DryRunFlagUsage describes the shared dry-run flag purpose.
	DryRunFlagUsage = "Simulate the execution plan without running any scripts"
	// AssumeYesFlagName exposes the shared assume-yes flag name.
	AssumeYesFlagName = "yes"
	// AssumeYesFlagShorthand provides the shorthand for the assume-yes flag.
	AssumeYesFlagShorthand = "y"
	// AssumeYesFlagUsage describes the shared assume-yes flag purpose.
	AssumeYesFlagUsage = "Launch without waiting for confirmation"
	// DebugFlagName exposes the shared debug flag name.
	DebugFlagName = "debug"
	// DebugFlagUsage describes the shared debug flag purpose.
	DebugFlagUsage = "Print detailed diagnostic information for bug reports"
)
