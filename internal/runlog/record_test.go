package runlog_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/xschr/internal/runlog"
)

type steppingClock struct {
	instants []time.Time
}

func (clock *steppingClock) Now() time.Time {
	instant := clock.instants[0]
	if len(clock.instants) > 1 {
		clock.instants = clock.instants[1:]
	}
	return instant
}

func TestRecordWritesHeaderBodyFooter(testInstance *testing.T) {
	logPath := filepath.Join(testInstance.TempDir(), "run_1.log")
	clock := &steppingClock{instants: []time.Time{
		time.Date(2024, time.January, 2, 3, 4, 5, 123456000, time.UTC),
		time.Date(2024, time.January, 2, 3, 4, 9, 0, time.UTC),
	}}

	record, createError := runlog.Create(logPath, clock.Now)
	require.NoError(testInstance, createError)
	require.NoError(testInstance, record.WriteHeader([]string{"python3", "/x/train.py", "--lr", "0.1"}))

	_, writeError := io.WriteString(record.Body(), "epoch 1\n")
	require.NoError(testInstance, writeError)

	partial, readError := os.ReadFile(logPath)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(partial), "epoch 1\n")

	require.NoError(testInstance, record.WriteFooter(3))
	require.NoError(testInstance, record.Close())
	require.NoError(testInstance, record.Close())

	content, readError := os.ReadFile(logPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance,
		"Cmd: python3 /x/train.py --lr 0.1\n"+
			"Start: 2024-01-02 03:04:05.123456\n"+
			"----------------------------------------\n"+
			"epoch 1\n"+
			"\n----------------------------------------\n"+
			"End: 2024-01-02 03:04:09.000000\n"+
			"Exit Code: 3\n",
		string(content))
}

func TestCreateTruncatesExistingFile(testInstance *testing.T) {
	logPath := filepath.Join(testInstance.TempDir(), "run_1.log")
	require.NoError(testInstance, os.WriteFile(logPath, []byte("stale content that is long"), 0o600))

	record, createError := runlog.Create(logPath, nil)
	require.NoError(testInstance, createError)
	require.NoError(testInstance, record.Close())

	content, readError := os.ReadFile(logPath)
	require.NoError(testInstance, readError)
	require.Empty(testInstance, content)
}

func TestCreateReportsMissingDirectory(testInstance *testing.T) {
	_, createError := runlog.Create(filepath.Join(testInstance.TempDir(), "absent", "run.log"), nil)
	require.Error(testInstance, createError)
}
