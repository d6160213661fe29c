package ui_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/ss5upgrade/internal/execshell"
	"github.com/temirov/ss5upgrade/internal/ui"
)

const (
	testProjectPathConstant                = "/srv/site"
	testExecutionFailureReasonConstant     = "executable file not found"
	testStandardErrorMessageConstant       = "Your requirements could not be resolved"
	testStartMessageExpectationConstant    = "Updating dependencies in /srv/site"
	testSuccessMessageExpectationConstant  = "Updated dependencies in /srv/site"
	testFailureMessageExpectationConstant  = "Failed to update dependencies in /srv/site (exit code 2: " + testStandardErrorMessageConstant + ")"
	testExecutionFailureMessageExpectation = "Unable to update dependencies in /srv/site: " + testExecutionFailureReasonConstant
)

func TestConsoleCommandEventLoggerEmitsMessages(testInstance *testing.T) {
	command := execshell.ShellCommand{
		Tool: execshell.ToolComposer,
		Name: execshell.CommandName("composer"),
		Details: execshell.CommandDetails{
			Arguments:        []string{"update", "--working-dir=" + testProjectPathConstant, "--no-interaction"},
			WorkingDirectory: testProjectPathConstant,
		},
	}

	requireCommand := execshell.ShellCommand{
		Tool: execshell.ToolComposer,
		Name: execshell.CommandName("composer"),
		Details: execshell.CommandDetails{
			Arguments:        []string{"require", "silverstripe/recipe-cms:^5", "--working-dir=" + testProjectPathConstant, "--no-install", "--no-interaction", "--quiet"},
			WorkingDirectory: testProjectPathConstant,
		},
	}

	testCases := []struct {
		name            string
		invoke          func(logger *ui.ConsoleCommandEventLogger)
		expectedLevel   zapcore.Level
		expectedMessage string
	}{
		{
			name: "command_started",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandStarted(command)
			},
			expectedLevel:   zapcore.InfoLevel,
			expectedMessage: testStartMessageExpectationConstant,
		},
		{
			name: "command_completed_success",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(command, execshell.ExecutionResult{ExitCode: 0})
			},
			expectedLevel:   zapcore.InfoLevel,
			expectedMessage: testSuccessMessageExpectationConstant,
		},
		{
			name: "command_completed_failure",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(command, execshell.ExecutionResult{ExitCode: 2, StandardError: testStandardErrorMessageConstant})
			},
			expectedLevel:   zapcore.WarnLevel,
			expectedMessage: testFailureMessageExpectationConstant,
		},
		{
			name: "composer_require_rejection_is_informational",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(requireCommand, execshell.ExecutionResult{ExitCode: 2})
			},
			expectedLevel:   zapcore.InfoLevel,
			expectedMessage: "Could not require silverstripe/recipe-cms:^5 in /srv/site (exit code 2)",
		},
		{
			name: "command_execution_failure",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandExecutionFailed(command, errors.New(testExecutionFailureReasonConstant))
			},
			expectedLevel:   zapcore.ErrorLevel,
			expectedMessage: testExecutionFailureMessageExpectation,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observedLogs := observer.New(zapcore.DebugLevel)
			consoleLogger := zap.New(observerCore)
			eventLogger := ui.NewConsoleCommandEventLogger(consoleLogger)

			testCase.invoke(eventLogger)

			entries := observedLogs.All()
			require.Len(testInstance, entries, 1)
			require.Equal(testInstance, testCase.expectedLevel, entries[0].Level)
			require.Equal(testInstance, testCase.expectedMessage, entries[0].Message)
			require.Equal(testInstance, "composer", entries[0].ContextMap()["tool"])
		})
	}
}

func TestNilConsoleCommandEventLoggerIsSafe(testInstance *testing.T) {
	var eventLogger *ui.ConsoleCommandEventLogger
	require.NotPanics(testInstance, func() {
		eventLogger.CommandStarted(execshell.ShellCommand{})
		eventLogger.CommandCompleted(execshell.ShellCommand{}, execshell.ExecutionResult{})
		eventLogger.CommandExecutionFailed(execshell.ShellCommand{}, nil)
	})
}
