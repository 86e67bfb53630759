// Package taskrunner hosts the shared abstractions for running xschr experiment
// plans. It exposes the `Executor` interface plus helpers (`Factory`, `Resolve`,
// `BuildDependencies`) so the CLI can assemble the process runner, the launch
// confirmer, and the console writers once and obtain an executor that reports a
// final summary, while unit tests can swap in fakes.
package taskrunner
