// Package console styles operator-facing output.
package console

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

const (
	successColorConstant = lipgloss.Color("10")
	failureColorConstant = lipgloss.Color("9")
	warningColorConstant = lipgloss.Color("11")
)

// Palette renders status text for one output stream. Colors are dropped when the
// stream is not a terminal.
type Palette struct {
	success        lipgloss.Style
	failure        lipgloss.Style
	warning        lipgloss.Style
	summarySuccess lipgloss.Style
	summaryFailure lipgloss.Style
}

// NewPalette builds a palette whose color profile matches writer.
func NewPalette(writer io.Writer) Palette {
	renderer := lipgloss.NewRenderer(writer)
	return Palette{
		success:        renderer.NewStyle().Foreground(successColorConstant),
		failure:        renderer.NewStyle().Foreground(failureColorConstant),
		warning:        renderer.NewStyle().Foreground(warningColorConstant),
		summarySuccess: renderer.NewStyle().Foreground(successColorConstant).Bold(true),
		summaryFailure: renderer.NewStyle().Foreground(failureColorConstant).Bold(true),
	}
}

// Success styles a passing indicator.
func (palette Palette) Success(text string) string {
	return palette.success.Render(text)
}

// Failure styles a failing indicator or error label.
func (palette Palette) Failure(text string) string {
	return palette.failure.Render(text)
}

// Warning styles a notice such as the fail-fast halt.
func (palette Palette) Warning(text string) string {
	return palette.warning.Render(text)
}

// SummarySuccess styles the closing line of a clean queue.
func (palette Palette) SummarySuccess(text string) string {
	return palette.summarySuccess.Render(text)
}

// SummaryFailure styles the closing line of a queue with failures.
func (palette Palette) SummaryFailure(text string) string {
	return palette.summaryFailure.Render(text)
}
