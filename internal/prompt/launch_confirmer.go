package prompt

import (
	"bufio"
	"context"
	"errors"
	"io"
)

var (
	// ErrConfirmationAborted reports that the operator interrupted the prompt.
	ErrConfirmationAborted = errors.New("launch confirmation aborted")
	// ErrConfirmationUnavailable reports that input closed before a response arrived.
	ErrConfirmationUnavailable = errors.New("launch confirmation unavailable: input closed")
)

// LaunchConfirmer waits for the operator to acknowledge the plan before anything runs.
type LaunchConfirmer struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewLaunchConfirmer constructs a confirmer from the provided reader and writer.
func NewLaunchConfirmer(input io.Reader, output io.Writer) *LaunchConfirmer {
	return &LaunchConfirmer{reader: bufio.NewReader(input), writer: output}
}

type lineResult struct {
	line      string
	readError error
}

// AwaitConfirmation writes the prompt and blocks until one line is read.
// Cancellation of executionContext yields ErrConfirmationAborted.
func (confirmer *LaunchConfirmer) AwaitConfirmation(executionContext context.Context, prompt string) error {
	if confirmer.writer != nil {
		if _, writeError := io.WriteString(confirmer.writer, prompt); writeError != nil {
			return writeError
		}
	}

	results := make(chan lineResult, 1)
	go func() {
		line, readError := confirmer.reader.ReadString('\n')
		results <- lineResult{line: line, readError: readError}
	}()

	select {
	case <-executionContext.Done():
		return ErrConfirmationAborted
	case result := <-results:
		if result.readError == nil {
			return nil
		}
		if errors.Is(result.readError, io.EOF) {
			if len(result.line) > 0 {
				return nil
			}
			return ErrConfirmationUnavailable
		}
		return result.readError
	}
}
