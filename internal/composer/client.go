package composer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/ss5upgrade/internal/execshell"
)

const (
	requireSubcommandConstant               = "require"
	updateSubcommandConstant                = "update"
	vendorExposeSubcommandConstant          = "vendor-expose"
	workingDirectoryFlagTemplateConstant    = "--working-dir=%s"
	noInstallFlagConstant                   = "--no-install"
	noInteractionFlagConstant               = "--no-interaction"
	developmentFlagConstant                 = "--dev"
	quietFlagConstant                       = "--quiet"
	packageConstraintTemplateConstant       = "%s:%s"
	executorNotConfiguredMessageConstant    = "composer executor not configured"
	operationErrorMessageTemplateConstant   = "composer %s failed"
	operationErrorWithCauseTemplateConstant = "composer %s failed: %s"
	requireAcceptedLogMessageConstant       = "composer accepted package"
	requireRejectedLogMessageConstant       = "composer rejected package"
	logFieldPackageConstant                 = "package"
	logFieldConstraintConstant              = "constraint"
	logFieldChannelConstant                 = "channel"
	logFieldProjectPathConstant             = "project_path"
	unconstrainedLabelConstant              = "*"
	updateOperationNameConstant             = OperationName("update")
	vendorExposeOperationNameConstant       = OperationName("vendor-expose")
)

// OperationName identifies a Composer verb that reports failures as errors.
type OperationName string

// Channel selects the manifest list a required package lands in.
type Channel string

// Supported channels.
const (
	ChannelProduction  Channel = Channel("production")
	ChannelDevelopment Channel = Channel("development")
)

// RequireRequest describes one composer require attempt. Constraint is
// appended to the package identifier when set. Quiet passes --quiet and keeps
// Composer output off the operator console.
type RequireRequest struct {
	ProjectPath string
	Package     string
	Constraint  *string
	Channel     Channel
	Quiet       bool
}

// CommandExecutor is the minimal interface required from execshell.ShellExecutor.
type CommandExecutor interface {
	ExecuteComposer(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

var (
	// ErrExecutorNotConfigured indicates the client was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
)

// OperationError wraps a failed Composer verb.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// Client coordinates Composer invocations.
type Client struct {
	executor     CommandExecutor
	logger       *zap.Logger
	outputWriter io.Writer
}

// NewClient constructs a Composer client. Output of non-quiet commands is
// streamed to outputWriter when it is not nil.
func NewClient(executor CommandExecutor, logger *zap.Logger, outputWriter io.Writer) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{executor: executor, logger: logger, outputWriter: outputWriter}, nil
}

// Require asks Composer to add a single package to the manifest without
// installing it. It returns true only when Composer exits successfully; any
// other outcome, including a failure to launch Composer, yields false.
func (client *Client) Require(executionContext context.Context, request RequireRequest) bool {
	arguments := []string{
		requireSubcommandConstant,
		formatPackageArgument(request.Package, request.Constraint),
		formatWorkingDirectoryFlag(request.ProjectPath),
		noInstallFlagConstant,
		noInteractionFlagConstant,
	}
	if request.Channel == ChannelDevelopment {
		arguments = append(arguments, developmentFlagConstant)
	}
	if request.Quiet {
		arguments = append(arguments, quietFlagConstant)
	}

	commandDetails := execshell.CommandDetails{Arguments: arguments, WorkingDirectory: request.ProjectPath}
	if !request.Quiet {
		commandDetails.OutputWriter = client.outputWriter
	}

	logFields := []zap.Field{
		zap.String(logFieldPackageConstant, request.Package),
		zap.String(logFieldConstraintConstant, describeConstraint(request.Constraint)),
		zap.String(logFieldChannelConstant, string(request.Channel)),
		zap.String(logFieldProjectPathConstant, request.ProjectPath),
	}

	if _, executionError := client.executor.ExecuteComposer(executionContext, commandDetails); executionError != nil {
		client.logger.Info(requireRejectedLogMessageConstant, append(logFields, zap.Error(executionError))...)
		return false
	}

	client.logger.Debug(requireAcceptedLogMessageConstant, logFields...)
	return true
}

// Update runs a full composer update for the project.
func (client *Client) Update(executionContext context.Context, projectPath string) error {
	return client.runStreamed(executionContext, updateOperationNameConstant, projectPath, updateSubcommandConstant)
}

// VendorExpose publishes vendor module resources into the project's public web root.
func (client *Client) VendorExpose(executionContext context.Context, projectPath string) error {
	return client.runStreamed(executionContext, vendorExposeOperationNameConstant, projectPath, vendorExposeSubcommandConstant)
}

func (client *Client) runStreamed(executionContext context.Context, operation OperationName, projectPath string, subcommand string) error {
	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			subcommand,
			formatWorkingDirectoryFlag(projectPath),
			noInteractionFlagConstant,
		},
		WorkingDirectory: projectPath,
		OutputWriter:     client.outputWriter,
	}

	if _, executionError := client.executor.ExecuteComposer(executionContext, commandDetails); executionError != nil {
		return OperationError{Operation: operation, Cause: executionError}
	}
	return nil
}

func formatPackageArgument(packageName string, constraint *string) string {
	trimmedPackageName := strings.TrimSpace(packageName)
	if constraint == nil || len(strings.TrimSpace(*constraint)) == 0 {
		return trimmedPackageName
	}
	return fmt.Sprintf(packageConstraintTemplateConstant, trimmedPackageName, strings.TrimSpace(*constraint))
}

func formatWorkingDirectoryFlag(projectPath string) string {
	return fmt.Sprintf(workingDirectoryFlagTemplateConstant, projectPath)
}

func describeConstraint(constraint *string) string {
	if constraint == nil {
		return unconstrainedLabelConstant
	}
	return *constraint
}
