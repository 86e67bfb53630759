package utils

import "io"

type flusher interface {
	Flush() error
}

// FlushingWriter flushes the wrapped writer after every write so that streamed output is observed immediately.
type FlushingWriter struct {
	target io.Writer
}

// NewFlushingWriter wraps the provided writer. Writers without Flush pass writes through unchanged.
func NewFlushingWriter(target io.Writer) *FlushingWriter {
	return &FlushingWriter{target: target}
}

// Write forwards data to the wrapped writer and flushes it.
func (writer *FlushingWriter) Write(data []byte) (int, error) {
	bytesWritten, writeError := writer.target.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}
	return bytesWritten, writer.Flush()
}

// Flush flushes buffered data held by the wrapped writer.
func (writer *FlushingWriter) Flush() error {
	if flushableTarget, flushable := writer.target.(flusher); flushable {
		return flushableTarget.Flush()
	}
	return nil
}
