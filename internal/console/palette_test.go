package console_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/xschr/internal/console"
)

func TestPaletteIsPlainForNonTerminalWriters(testInstance *testing.T) {
	palette := console.NewPalette(&bytes.Buffer{})

	testCases := []struct {
		name   string
		render func(string) string
	}{
		{name: "success", render: palette.Success},
		{name: "failure", render: palette.Failure},
		{name: "warning", render: palette.Warning},
		{name: "summary_success", render: palette.SummarySuccess},
		{name: "summary_failure", render: palette.SummaryFailure},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, "✓ Success", testCase.render("✓ Success"))
		})
	}
}
