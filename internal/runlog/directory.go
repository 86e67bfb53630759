package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	runDirectoryPrefixConstant           = "run_"
	runDirectoryTimestampLayoutConstant  = "20060102_150405"
	logFileNameTemplateConstant          = "%s_%d.log"
	runDirectoryPermissionsConstant      = 0o755
	directoryCreateErrorTemplateConstant = "unable to create run directory %s: %w"
	spaceReplacementConstant             = "_"
	unsafeReplacementConstant            = "-"
	unsafeFileNameCharactersConstant     = `/\:*?"<>|`
)

// Directory is the per-invocation log directory. It is created at most once, on demand.
type Directory struct {
	path    string
	created bool
}

// NewDirectory names the run directory beneath root from the invocation start time.
func NewDirectory(root string, startedAt time.Time) *Directory {
	return &Directory{path: filepath.Join(root, runDirectoryPrefixConstant+startedAt.Format(runDirectoryTimestampLayoutConstant))}
}

// Path returns the run directory path whether or not it exists yet.
func (directory *Directory) Path() string {
	return directory.path
}

// Created reports whether Ensure has created the directory.
func (directory *Directory) Created() bool {
	return directory.created
}

// Ensure creates the run directory on first use.
func (directory *Directory) Ensure() error {
	if directory.created {
		return nil
	}
	if creationError := os.MkdirAll(directory.path, runDirectoryPermissionsConstant); creationError != nil {
		return fmt.Errorf(directoryCreateErrorTemplateConstant, directory.path, creationError)
	}
	directory.created = true
	return nil
}

// FilePath returns the log file path for a run within the directory.
func (directory *Directory) FilePath(experimentName string, runIndex int) string {
	return filepath.Join(directory.path, FileName(experimentName, runIndex))
}

// FileName derives the log file name for the 1-based run index of an experiment.
func FileName(experimentName string, runIndex int) string {
	return fmt.Sprintf(logFileNameTemplateConstant, SanitizeName(experimentName), runIndex)
}

// SanitizeName maps an experiment name onto a single filesystem-safe path segment.
func SanitizeName(name string) string {
	var builder strings.Builder
	for _, character := range name {
		switch {
		case character == ' ':
			builder.WriteString(spaceReplacementConstant)
		case character < ' ' || character == 0x7f || strings.ContainsRune(unsafeFileNameCharactersConstant, character):
			builder.WriteString(unsafeReplacementConstant)
		default:
			builder.WriteRune(character)
		}
	}
	return builder.String()
}
