package ui

import (
	"go.uber.org/zap"

	"github.com/temirov/ss5upgrade/internal/execshell"
)

const (
	logFieldToolConstant        = "tool"
	composerRequireVerbConstant = "require"
)

// ConsoleCommandEventLogger renders Composer and Rector lifecycle events as
// human-readable log lines.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter execshell.CommandMessageFormatter
}

// NewConsoleCommandEventLogger constructs an event logger. A nil logger selects a no-op logger.
func NewConsoleCommandEventLogger(logger *zap.Logger) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleCommandEventLogger{logger: logger, formatter: execshell.CommandMessageFormatter{}}
}

// CommandStarted logs the start of a tool run.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command execshell.ShellCommand) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.BuildStartedMessage(command), toolField(command))
}

// CommandCompleted logs the outcome of a tool run. A rejected composer require
// is logged at info level because the upgrade retries it with a fallback.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if eventLogger == nil {
		return
	}
	switch {
	case result.ExitCode == 0:
		eventLogger.logger.Info(eventLogger.formatter.BuildSuccessMessage(command), toolField(command))
	case isComposerRequire(command):
		eventLogger.logger.Info(eventLogger.formatter.BuildFailureMessage(command, result), toolField(command))
	default:
		eventLogger.logger.Warn(eventLogger.formatter.BuildFailureMessage(command, result), toolField(command))
	}
}

// CommandExecutionFailed logs a tool that could not be started.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionFailureMessage(command, failure), toolField(command))
}

func toolField(command execshell.ShellCommand) zap.Field {
	return zap.String(logFieldToolConstant, string(command.Tool))
}

func isComposerRequire(command execshell.ShellCommand) bool {
	if command.Tool != execshell.ToolComposer || len(command.Details.Arguments) == 0 {
		return false
	}
	return command.Details.Arguments[0] == composerRequireVerbConstant
}
