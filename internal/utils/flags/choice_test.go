package flags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatChoiceUsage(testInstance *testing.T) {
	testCases := []struct {
		name           string
		defaultChoice  string
		choices        []string
		description    string
		expectedOutput string
	}{
		{
			name:           "default_first_choice",
			defaultChoice:  "console",
			choices:        []string{"console", "structured"},
			description:    "Override the configured log format.",
			expectedOutput: "`<CONSOLE|structured>` Override the configured log format.",
		},
		{
			name:           "default_later_choice",
			defaultChoice:  "info",
			choices:        []string{"debug", "info", "warn", "error"},
			description:    "Override the configured log level.",
			expectedOutput: "`<debug|INFO|warn|error>` Override the configured log level.",
		},
		{
			name:           "empty_description",
			defaultChoice:  "alpha",
			choices:        []string{"alpha", "beta"},
			description:    "",
			expectedOutput: "`<ALPHA|beta>`",
		},
		{
			name:           "duplicate_choices_ignored",
			defaultChoice:  "beta",
			choices:        []string{"beta", "beta", "alpha", "alpha"},
			description:    "Select between options.",
			expectedOutput: "`<BETA|alpha>` Select between options.",
		},
		{
			name:           "whitespace_trimmed",
			defaultChoice:  "structured",
			choices:        []string{" structured ", " console "},
			description:    "Pick an encoding.",
			expectedOutput: "`<STRUCTURED|console>` Pick an encoding.",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			actual := FormatChoiceUsage(testCase.defaultChoice, testCase.choices, testCase.description)
			require.Equal(testInstance, testCase.expectedOutput, actual)
		})
	}
}
