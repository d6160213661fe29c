package execshell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant        = "shell executor logger not configured"
	commandRunnerNotConfiguredMessageConstant = "shell executor command runner not configured"
	commandFailedTemplateConstant             = "%s exited with code %d"
	commandFailedWithErrorTemplateConstant    = "%s exited with code %d: %s"
	commandExecutionFailedTemplateConstant    = "%s could not be executed: %v"
	commandStartedLogMessageConstant          = "shell command started"
	commandCompletedLogMessageConstant        = "shell command completed"
	commandFailedLogMessageConstant           = "shell command failed"
	commandExecutionFailedLogMessageConstant  = "shell command execution failed"
	logFieldToolConstant                      = "tool"
	logFieldExecutableConstant                = "executable"
	logFieldArgumentsConstant                 = "arguments"
	logFieldWorkingDirectoryConstant          = "working_directory"
	logFieldExitCodeConstant                  = "exit_code"
	logFieldStandardErrorConstant             = "stderr"
	defaultComposerExecutableConstant         = "composer"
	defaultPHPExecutableConstant              = "php"
	defaultRectorScriptConstant               = "vendor/bin/rector"
)

// ToolName identifies a logical external tool independent of how it is launched.
type ToolName string

// Supported tools.
const (
	ToolComposer ToolName = "composer"
	ToolRector   ToolName = "rector"
)

// CommandName is the executable actually launched for a tool.
type CommandName string

// CommandDetails describes the tool-specific part of an invocation. When
// OutputWriter is set it receives stdout and stderr as they are produced.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
	OutputWriter         io.Writer
}

// ShellCommand is a fully resolved invocation handed to a CommandRunner.
type ShellCommand struct {
	Tool    ToolName
	Name    CommandName
	Prefix  []string
	Details CommandDetails
}

// CommandLine returns the executable arguments in launch order.
func (command ShellCommand) CommandLine() []string {
	arguments := make([]string, 0, len(command.Prefix)+len(command.Details.Arguments))
	arguments = append(arguments, command.Prefix...)
	arguments = append(arguments, command.Details.Arguments...)
	return arguments
}

// ExecutionResult captures the observable results of a finished process.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner runs a resolved shell command.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// ToolInvocations maps tools to the command line used to launch them.
type ToolInvocations map[ToolName]ToolInvocation

// DefaultToolInvocations returns the launch commands used when nothing is configured.
func DefaultToolInvocations() ToolInvocations {
	return ToolInvocations{
		ToolComposer: {Executable: defaultComposerExecutableConstant},
		ToolRector:   {Executable: defaultPHPExecutableConstant, Arguments: []string{defaultRectorScriptConstant}},
	}
}

var (
	// ErrLoggerNotConfigured indicates a missing logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates a missing command runner.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
)

// CommandFailedError reports a process that ran and exited with a non-zero status.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command.
func (failure CommandFailedError) Error() string {
	standardError := strings.TrimSpace(failure.Result.StandardError)
	if len(standardError) == 0 {
		return fmt.Sprintf(commandFailedTemplateConstant, failure.Command.Tool, failure.Result.ExitCode)
	}
	return fmt.Sprintf(commandFailedWithErrorTemplateConstant, failure.Command.Tool, failure.Result.ExitCode, standardError)
}

// CommandExecutionError reports a process that could not be started or awaited.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (failure CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionFailedTemplateConstant, failure.Command.Tool, failure.Cause)
}

// Unwrap exposes the underlying cause.
func (failure CommandExecutionError) Unwrap() error {
	return failure.Cause
}

// ShellExecutor resolves tool invocations, runs them, and reports their lifecycle.
type ShellExecutor struct {
	logger               *zap.Logger
	runner               CommandRunner
	humanReadableLogging bool
	messageFormatter     CommandMessageFormatter
	toolInvocations      ToolInvocations
	eventObserver        CommandEventObserver
}

// NewShellExecutor constructs a ShellExecutor. A nil toolInvocations map selects DefaultToolInvocations.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, humanReadableLogging bool, toolInvocations ToolInvocations) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	resolvedInvocations := DefaultToolInvocations()
	for toolName, invocation := range toolInvocations {
		if len(strings.TrimSpace(invocation.Executable)) == 0 {
			continue
		}
		resolvedInvocations[toolName] = invocation
	}

	return &ShellExecutor{
		logger:               logger,
		runner:               runner,
		humanReadableLogging: humanReadableLogging,
		messageFormatter:     CommandMessageFormatter{},
		toolInvocations:      resolvedInvocations,
		eventObserver:        noopCommandEventObserver{},
	}, nil
}

// SetEventObserver registers an observer notified about every command; nil restores the no-op observer.
func (executor *ShellExecutor) SetEventObserver(observer CommandEventObserver) {
	if observer == nil {
		executor.eventObserver = noopCommandEventObserver{}
		return
	}
	executor.eventObserver = observer
}

// ExecuteComposer runs Composer with the provided details.
func (executor *ShellExecutor) ExecuteComposer(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, executor.resolveCommand(ToolComposer, details))
}

// ExecuteRector runs Rector with the provided details.
func (executor *ShellExecutor) ExecuteRector(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, executor.resolveCommand(ToolRector, details))
}

// Execute runs a resolved command and converts non-zero exits into CommandFailedError.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executor.logStarted(command)
	executor.eventObserver.CommandStarted(command)

	executionResult, runError := executor.runner.Run(executionContext, command)
	if runError != nil {
		executor.logExecutionFailure(command, runError)
		executor.eventObserver.CommandExecutionFailed(command, runError)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.eventObserver.CommandCompleted(command, executionResult)
	if executionResult.ExitCode != 0 {
		executor.logFailure(command, executionResult)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logCompleted(command)
	return executionResult, nil
}

func (executor *ShellExecutor) resolveCommand(toolName ToolName, details CommandDetails) ShellCommand {
	invocation := executor.toolInvocations[toolName]
	return ShellCommand{
		Tool:    toolName,
		Name:    CommandName(invocation.Executable),
		Prefix:  append([]string{}, invocation.Arguments...),
		Details: details,
	}
}

func (executor *ShellExecutor) logStarted(command ShellCommand) {
	if executor.humanReadableLogging {
		executor.logger.Info(executor.messageFormatter.BuildStartedMessage(command))
		return
	}
	executor.logger.Info(commandStartedLogMessageConstant, executor.commandFields(command)...)
}

func (executor *ShellExecutor) logCompleted(command ShellCommand) {
	if executor.humanReadableLogging {
		executor.logger.Info(executor.messageFormatter.BuildSuccessMessage(command))
		return
	}
	executor.logger.Info(commandCompletedLogMessageConstant, executor.commandFields(command)...)
}

func (executor *ShellExecutor) logFailure(command ShellCommand, result ExecutionResult) {
	if executor.humanReadableLogging {
		executor.logger.Warn(executor.messageFormatter.BuildFailureMessage(command, result))
		return
	}
	fields := executor.commandFields(command)
	fields = append(fields,
		zap.Int(logFieldExitCodeConstant, result.ExitCode),
		zap.String(logFieldStandardErrorConstant, strings.TrimSpace(result.StandardError)),
	)
	executor.logger.Warn(commandFailedLogMessageConstant, fields...)
}

func (executor *ShellExecutor) logExecutionFailure(command ShellCommand, failure error) {
	if executor.humanReadableLogging {
		executor.logger.Error(executor.messageFormatter.BuildExecutionFailureMessage(command, failure))
		return
	}
	fields := append(executor.commandFields(command), zap.Error(failure))
	executor.logger.Error(commandExecutionFailedLogMessageConstant, fields...)
}

func (executor *ShellExecutor) commandFields(command ShellCommand) []zap.Field {
	return []zap.Field{
		zap.String(logFieldToolConstant, string(command.Tool)),
		zap.String(logFieldExecutableConstant, string(command.Name)),
		zap.Strings(logFieldArgumentsConstant, command.CommandLine()),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	}
}
