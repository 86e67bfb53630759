package runlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tyemirov/xschr/internal/utils"
)

const (
	// TimestampLayout formats the Start and End lines of a log record.
	TimestampLayout = "2006-01-02 15:04:05.000000"

	separatorWidthConstant            = 40
	headerCommandTemplateConstant     = "Cmd: %s\n"
	headerStartTemplateConstant       = "Start: %s\n"
	footerEndTemplateConstant         = "End: %s\n"
	footerExitTemplateConstant        = "Exit Code: %d\n"
	recordCreateErrorTemplateConstant = "unable to open log file %s: %w"
)

var separatorLine = strings.Repeat("-", separatorWidthConstant) + "\n"

// Record is one run's log file: header, verbatim body, footer.
type Record struct {
	file   *os.File
	body   *utils.FlushingWriter
	clock  func() time.Time
	closed bool
}

// Create opens path for writing, truncating any previous content.
func Create(path string, clock func() time.Time) (*Record, error) {
	if clock == nil {
		clock = time.Now
	}
	file, openError := os.Create(path)
	if openError != nil {
		return nil, fmt.Errorf(recordCreateErrorTemplateConstant, path, openError)
	}
	return &Record{
		file:  file,
		body:  utils.NewFlushingWriter(bufio.NewWriter(file)),
		clock: clock,
	}, nil
}

// WriteHeader records the command line and start time.
func (record *Record) WriteHeader(command []string) error {
	return record.writeSections(
		fmt.Sprintf(headerCommandTemplateConstant, strings.Join(command, " ")),
		fmt.Sprintf(headerStartTemplateConstant, record.clock().Format(TimestampLayout)),
		separatorLine,
	)
}

// Body returns the writer that receives the child's output. Every write is flushed to the file.
func (record *Record) Body() io.Writer {
	return record.body
}

// WriteFooter records the end time and exit code.
func (record *Record) WriteFooter(exitCode int) error {
	return record.writeSections(
		"\n"+separatorLine,
		fmt.Sprintf(footerEndTemplateConstant, record.clock().Format(TimestampLayout)),
		fmt.Sprintf(footerExitTemplateConstant, exitCode),
	)
}

// Close flushes pending content and closes the file. Repeated calls are no-ops.
func (record *Record) Close() error {
	if record.closed {
		return nil
	}
	record.closed = true
	flushError := record.body.Flush()
	closeError := record.file.Close()
	if flushError != nil {
		return flushError
	}
	return closeError
}

func (record *Record) writeSections(sections ...string) error {
	for _, section := range sections {
		if _, writeError := io.WriteString(record.body, section); writeError != nil {
			return writeError
		}
	}
	return nil
}
