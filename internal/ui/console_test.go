package ui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ss5upgrade/internal/ui"
)

func TestConsoleWritesPlainLinesWithoutColor(testInstance *testing.T) {
	testCases := []struct {
		name     string
		invoke   func(console *ui.Console)
		expected string
	}{
		{
			name:     "note",
			invoke:   func(console *ui.Console) { console.Note("Running composer update") },
			expected: "! [NOTE] Running composer update\n",
		},
		{
			name:     "success",
			invoke:   func(console *ui.Console) { console.Success("Upgrade complete") },
			expected: "[OK] Upgrade complete\n",
		},
		{
			name:     "failure",
			invoke:   func(console *ui.Console) { console.Failure("composer update failed") },
			expected: "[ERROR] composer update failed\n",
		},
		{
			name:     "diff",
			invoke:   func(console *ui.Console) { console.Diff("--- a\n+++ b\n@@ -1 +1 @@\n-old\n+new\n") },
			expected: "--- a\n+++ b\n@@ -1 +1 @@\n-old\n+new\n",
		},
		{
			name:     "empty_diff",
			invoke:   func(console *ui.Console) { console.Diff("\n") },
			expected: "",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			outputBuffer := &bytes.Buffer{}
			testCase.invoke(ui.NewConsole(outputBuffer, false))
			require.Equal(testInstance, testCase.expected, outputBuffer.String())
		})
	}
}

func TestConsoleColorsDiffLines(testInstance *testing.T) {
	outputBuffer := &bytes.Buffer{}
	console := ui.NewConsole(outputBuffer, true)

	console.Diff("@@ -1 +1 @@\n-old\n+new\n context\n")

	lines := strings.Split(strings.TrimRight(outputBuffer.String(), "\n"), "\n")
	require.Len(testInstance, lines, 4)
	require.Contains(testInstance, lines[1], "\x1b[31m")
	require.Contains(testInstance, lines[2], "\x1b[32m")
	require.Equal(testInstance, " context", lines[3])
}

func TestNewConsoleToleratesNilWriter(testInstance *testing.T) {
	require.NotPanics(testInstance, func() {
		ui.NewConsole(nil, true).Note("discarded")
	})
}
