package system

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/xschr/internal/execshell"
)

const (
	nvidiaQueryArgumentConstant       = "--query-gpu=index,name"
	nvidiaFormatArgumentConstant      = "--format=csv,noheader"
	acceleratorFieldSeparatorConstant = ","
	unknownAcceleratorNameConstant    = "Unknown"
	platformLineTemplateConstant      = "  • Platform:      %s\n"
	acceleratorsLineTemplateConstant  = "  • Accelerator:   Detected %d NVIDIA GPU(s):\n"
	acceleratorLineTemplateConstant   = "    - [%d] %s\n"
	noAcceleratorLineConstant         = "  • Accelerator:   None (Running on CPU)\n"
	probeFailedMessageConstant        = "accelerator probe failed"
	probeLineSkippedMessageConstant   = "accelerator probe line skipped"
)

// Accelerator describes one detected GPU.
type Accelerator struct {
	ID   int
	Name string
}

// Status summarizes the host the queue runs on.
type Status struct {
	Platform     string
	Accelerators []Accelerator
}

// AcceleratorExecutor runs the vendor probe tool.
type AcceleratorExecutor interface {
	ExecuteNvidiaSMI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Prober inspects the host platform and attached accelerators.
type Prober struct {
	logger   *zap.Logger
	executor AcceleratorExecutor
	platform string
}

// NewProber constructs a Prober. A nil executor disables accelerator detection.
func NewProber(logger *zap.Logger, executor AcceleratorExecutor) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		logger:   logger,
		executor: executor,
		platform: runtime.GOOS + " " + runtime.GOARCH,
	}
}

// Status reports the platform and accelerator inventory. Probe failures yield an empty inventory.
func (prober *Prober) Status(executionContext context.Context) Status {
	return Status{
		Platform:     prober.platform,
		Accelerators: prober.detectAccelerators(executionContext),
	}
}

func (prober *Prober) detectAccelerators(executionContext context.Context) []Accelerator {
	if prober.executor == nil {
		return nil
	}

	executionResult, executionError := prober.executor.ExecuteNvidiaSMI(executionContext, execshell.CommandDetails{
		Arguments: []string{nvidiaQueryArgumentConstant, nvidiaFormatArgumentConstant},
	})
	if executionError != nil {
		prober.logger.Debug(probeFailedMessageConstant, zap.Error(executionError))
		return nil
	}

	return prober.parseAccelerators(executionResult.StandardOutput)
}

func (prober *Prober) parseAccelerators(output string) []Accelerator {
	accelerators := make([]Accelerator, 0)
	for _, line := range strings.Split(output, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if len(trimmedLine) == 0 {
			continue
		}

		identifierField, nameField, _ := strings.Cut(trimmedLine, acceleratorFieldSeparatorConstant)
		identifier, parseError := strconv.Atoi(strings.TrimSpace(identifierField))
		if parseError != nil {
			prober.logger.Debug(probeLineSkippedMessageConstant, zap.String("line", trimmedLine), zap.Error(parseError))
			continue
		}

		name := strings.TrimSpace(nameField)
		if len(name) == 0 {
			name = unknownAcceleratorNameConstant
		}
		accelerators = append(accelerators, Accelerator{ID: identifier, Name: name})
	}
	return accelerators
}

// PrintStatus writes the status block shown before a real launch.
func PrintStatus(writer io.Writer, status Status) {
	if writer == nil {
		return
	}

	fmt.Fprintf(writer, platformLineTemplateConstant, status.Platform)
	if len(status.Accelerators) == 0 {
		fmt.Fprint(writer, noAcceleratorLineConstant)
		return
	}

	fmt.Fprintf(writer, acceleratorsLineTemplateConstant, len(status.Accelerators))
	for _, accelerator := range status.Accelerators {
		fmt.Fprintf(writer, acceleratorLineTemplateConstant, accelerator.ID, accelerator.Name)
	}
}
