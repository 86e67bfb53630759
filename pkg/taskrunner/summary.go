package taskrunner

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/tyemirov/xschr/internal/engine"
)

const (
	allSucceededTemplateConstant = "✓ All %d runs completed successfully."
	someFailedTemplateConstant   = "✗ Completed: %d | Failed: %d"
	runPositionTemplateConstant  = "%d/%d"
	notApplicableConstant        = "-"
	totalLabelConstant           = "TOTAL"
	experimentColumnConstant     = "Experiment"
	runColumnConstant            = "Run"
	statusColumnConstant         = "Status"
	exitCodeColumnConstant       = "Exit Code"
	durationColumnConstant       = "Duration"
	logFileColumnConstant        = "Log File"
	statusSuccessLabelConstant   = "PASS"
	statusFailureLabelConstant   = "FAIL"
	statusMissingLabelConstant   = "MISSING SCRIPT"
	logFileColumnWidthConstant   = 80
)

// RenderSummaryLine returns the closing line printed after a real run.
func RenderSummaryLine(stats engine.Stats) string {
	if stats.Failed == 0 {
		return fmt.Sprintf(allSucceededTemplateConstant, stats.Success)
	}
	return fmt.Sprintf(someFailedTemplateConstant, stats.Success, stats.Failed)
}

// RenderRunTable renders one row per recorded run plus a totals footer.
func RenderRunTable(records []engine.RunRecord) string {
	tableWriter := table.NewWriter()
	tableWriter.AppendHeader(table.Row{
		experimentColumnConstant, runColumnConstant, statusColumnConstant, exitCodeColumnConstant, durationColumnConstant, logFileColumnConstant,
	})
	tableWriter.SetColumnConfigs([]table.ColumnConfig{
		{Name: experimentColumnConstant, AutoMerge: true},
		{Name: runColumnConstant, Align: text.AlignRight},
		{Name: exitCodeColumnConstant, Align: text.AlignRight},
		{Name: durationColumnConstant, Align: text.AlignRight},
		{Name: logFileColumnConstant, WidthMax: logFileColumnWidthConstant, WidthMaxEnforcer: text.WrapSoft},
	})

	var totalDuration time.Duration
	passed := 0
	for _, record := range records {
		totalDuration += record.Duration
		if record.Status == engine.RunStatusSucceeded {
			passed++
		}
		tableWriter.AppendRow(table.Row{
			record.Experiment,
			formatRunPosition(record),
			formatStatus(record.Status),
			record.ExitCode,
			formatDuration(record),
			formatLogFile(record.LogPath),
		})
	}

	tableWriter.AppendFooter(table.Row{
		totalLabelConstant,
		len(records),
		fmt.Sprintf("%s %d", statusSuccessLabelConstant, passed),
		"",
		totalDuration.Round(time.Millisecond).String(),
		"",
	})
	tableWriter.SetStyle(table.StyleLight)
	return tableWriter.Render()
}

func formatRunPosition(record engine.RunRecord) string {
	if record.RunIndex == 0 {
		return notApplicableConstant
	}
	return fmt.Sprintf(runPositionTemplateConstant, record.RunIndex, record.RunCount)
}

func formatStatus(status engine.RunStatus) string {
	switch status {
	case engine.RunStatusSucceeded:
		return statusSuccessLabelConstant
	case engine.RunStatusMissingScript:
		return statusMissingLabelConstant
	default:
		return statusFailureLabelConstant
	}
}

func formatDuration(record engine.RunRecord) string {
	if record.Status == engine.RunStatusMissingScript {
		return notApplicableConstant
	}
	return record.Duration.Round(time.Millisecond).String()
}

func formatLogFile(logPath string) string {
	if len(logPath) == 0 {
		return notApplicableConstant
	}
	return logPath
}
