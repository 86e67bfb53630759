package process

import (
	"bytes"
	"io"
	"sync"
)

const (
	outputLinePrefixConstant = "     | "
	lineTerminatorConstant   = '\n'
)

// lineStreamer receives the child's merged stdout and stderr, both bound to the same pipe,
// and forwards complete lines to the console (prefixed) and the log body (verbatim) in
// arrival order.
type lineStreamer struct {
	mutex      sync.Mutex
	console    io.Writer
	logBody    io.Writer
	pending    []byte
	logFailed  bool
	onLogError func(error)
}

func newLineStreamer(console io.Writer, logBody io.Writer, onLogError func(error)) *lineStreamer {
	return &lineStreamer{console: console, logBody: logBody, onLogError: onLogError}
}

// Write never fails so the child is never blocked or broken by a slow or failing sink.
func (streamer *lineStreamer) Write(data []byte) (int, error) {
	streamer.mutex.Lock()
	defer streamer.mutex.Unlock()

	streamer.pending = append(streamer.pending, data...)
	for {
		terminatorIndex := bytes.IndexByte(streamer.pending, lineTerminatorConstant)
		if terminatorIndex < 0 {
			break
		}
		streamer.emit(streamer.pending[:terminatorIndex+1])
		streamer.pending = streamer.pending[terminatorIndex+1:]
	}
	if len(streamer.pending) == 0 {
		streamer.pending = nil
	}
	return len(data), nil
}

// Flush emits a trailing line that arrived without a terminator.
func (streamer *lineStreamer) Flush() {
	streamer.mutex.Lock()
	defer streamer.mutex.Unlock()

	if len(streamer.pending) == 0 {
		return
	}
	streamer.emit(streamer.pending)
	streamer.pending = nil
}

func (streamer *lineStreamer) emit(line []byte) {
	consoleLine := make([]byte, 0, len(outputLinePrefixConstant)+len(line)+1)
	consoleLine = append(consoleLine, outputLinePrefixConstant...)
	consoleLine = append(consoleLine, line...)
	if line[len(line)-1] != lineTerminatorConstant {
		consoleLine = append(consoleLine, lineTerminatorConstant)
	}
	_, _ = streamer.console.Write(consoleLine)

	if _, writeError := streamer.logBody.Write(line); writeError != nil && !streamer.logFailed {
		streamer.logFailed = true
		if streamer.onLogError != nil {
			streamer.onLogError(writeError)
		}
	}
}
