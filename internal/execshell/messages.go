package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	flagPrefixConstant                      = "-"
	workingDirectoryFlagPrefixConstant      = "--working-dir="
)

const (
	composerRequireSubcommandNameConstant      = "require"
	composerUpdateSubcommandNameConstant       = "update"
	composerVendorExposeSubcommandNameConstant = "vendor-expose"
	composerDevFlagConstant                    = "--dev"
	rectorProcessSubcommandNameConstant        = "process"
)

const (
	composerRequireStartTemplateConstant            = "Requiring %s%s in %s"
	composerRequireSuccessTemplateConstant          = "Required %s%s in %s"
	composerRequireFailureTemplateConstant          = "Could not require %s%s in %s (exit code %d%s)"
	composerRequireExecutionFailureTemplateConstant = "Unable to require %s%s in %s: %s"
	composerDevelopmentSuffixConstant               = " as a development dependency"
	composerUpdateStartTemplateConstant             = "Updating dependencies in %s"
	composerUpdateSuccessTemplateConstant           = "Updated dependencies in %s"
	composerUpdateFailureTemplateConstant           = "Failed to update dependencies in %s (exit code %d%s)"
	composerUpdateExecutionFailureTemplateConstant  = "Unable to update dependencies in %s: %s"
	composerExposeStartTemplateConstant             = "Exposing vendor assets in %s"
	composerExposeSuccessTemplateConstant           = "Exposed vendor assets in %s"
	composerExposeFailureTemplateConstant           = "Failed to expose vendor assets in %s (exit code %d%s)"
	composerExposeExecutionFailureTemplateConstant  = "Unable to expose vendor assets in %s: %s"
	rectorProcessStartTemplateConstant              = "Rewriting sources in %s"
	rectorProcessSuccessTemplateConstant            = "Rewrote sources in %s"
	rectorProcessFailureTemplateConstant            = "Failed to rewrite sources in %s (exit code %d%s)"
	rectorProcessExecutionFailureTemplateConstant   = "Unable to rewrite sources in %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Tool {
	case ToolComposer:
		return formatter.describeComposerMessage(command, result, failure, stage)
	case ToolRector:
		return formatter.describeRectorMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeComposerMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeComposerWorkingDirectory(command)
	switch strings.TrimSpace(arguments[0]) {
	case composerRequireSubcommandNameConstant:
		packageLabel := formatter.ensureValue(extractFirstNonFlagArgument(arguments[1:]))
		channelSuffix := emptyStringConstant
		if containsArgument(arguments, composerDevFlagConstant) {
			channelSuffix = composerDevelopmentSuffixConstant
		}
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(composerRequireStartTemplateConstant, packageLabel, channelSuffix, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(composerRequireSuccessTemplateConstant, packageLabel, channelSuffix, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(composerRequireFailureTemplateConstant, packageLabel, channelSuffix, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(composerRequireExecutionFailureTemplateConstant, packageLabel, channelSuffix, workingDirectory, formatter.describeFailure(failure))
		}
	case composerUpdateSubcommandNameConstant:
		return formatter.describeDirectoryStage(stage, workingDirectory, result, failure,
			composerUpdateStartTemplateConstant,
			composerUpdateSuccessTemplateConstant,
			composerUpdateFailureTemplateConstant,
			composerUpdateExecutionFailureTemplateConstant,
		)
	case composerVendorExposeSubcommandNameConstant:
		return formatter.describeDirectoryStage(stage, workingDirectory, result, failure,
			composerExposeStartTemplateConstant,
			composerExposeSuccessTemplateConstant,
			composerExposeFailureTemplateConstant,
			composerExposeExecutionFailureTemplateConstant,
		)
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) describeRectorMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) < 2 || strings.TrimSpace(arguments[0]) != rectorProcessSubcommandNameConstant {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	sourcePath := formatter.ensureValue(extractFirstNonFlagArgument(arguments[1:]))
	return formatter.describeDirectoryStage(stage, sourcePath, result, failure,
		rectorProcessStartTemplateConstant,
		rectorProcessSuccessTemplateConstant,
		rectorProcessFailureTemplateConstant,
		rectorProcessExecutionFailureTemplateConstant,
	)
}

func (formatter CommandMessageFormatter) describeDirectoryStage(stage messageStage, directory string, result ExecutionResult, failure error, startTemplate string, successTemplate string, failureTemplate string, executionFailureTemplate string) string {
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(startTemplate, directory)
	case messageStageSuccess:
		return fmt.Sprintf(successTemplate, directory)
	case messageStageFailure:
		return fmt.Sprintf(failureTemplate, directory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(executionFailureTemplate, directory, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandParts := []string{formatter.ensureValue(string(command.Name))}
	commandLine := command.CommandLine()
	if len(commandLine) > 0 {
		commandParts = append(commandParts, strings.Join(commandLine, commandArgumentsJoinSeparatorConstant))
	}
	commandLabel := strings.Join(commandParts, commandArgumentsJoinSeparatorConstant)
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

// describeComposerWorkingDirectory prefers the --working-dir flag because Composer
// commands may be launched from outside the project.
func (formatter CommandMessageFormatter) describeComposerWorkingDirectory(command ShellCommand) string {
	for _, argument := range command.Details.Arguments {
		if strings.HasPrefix(argument, workingDirectoryFlagPrefixConstant) {
			return formatter.ensureValue(strings.TrimPrefix(argument, workingDirectoryFlagPrefixConstant))
		}
	}
	return formatter.describeWorkingDirectory(command)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmedValue
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}

func extractFirstNonFlagArgument(arguments []string) string {
	for _, argument := range arguments {
		trimmedArgument := strings.TrimSpace(argument)
		if len(trimmedArgument) == 0 || strings.HasPrefix(trimmedArgument, flagPrefixConstant) {
			continue
		}
		return trimmedArgument
	}
	return emptyStringConstant
}
