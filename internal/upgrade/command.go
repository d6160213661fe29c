package upgrade

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/ss5upgrade/internal/composer"
	"github.com/temirov/ss5upgrade/internal/envfile"
	"github.com/temirov/ss5upgrade/internal/execshell"
	"github.com/temirov/ss5upgrade/internal/manifest"
	"github.com/temirov/ss5upgrade/internal/rector"
	"github.com/temirov/ss5upgrade/internal/substitution"
	"github.com/temirov/ss5upgrade/internal/ui"
	"github.com/temirov/ss5upgrade/internal/utils"
	"github.com/temirov/ss5upgrade/internal/utils/flags"
	pathutils "github.com/temirov/ss5upgrade/internal/utils/path"
)

const (
	commandUseConstant                        = "upgrade <project-path>"
	commandShortDescriptionConstant           = "Upgrade a Silverstripe 4 project to Silverstripe 5"
	commandLongDescriptionConstant            = "upgrade rewrites composer.json for Silverstripe 5, requires every package again with a legacy-constraint fallback, runs composer update and vendor-expose, patches the removed database driver in .env, and runs rector over the application sources."
	diffLinesFlagNameConstant                 = "diff-lines"
	diffLinesFlagUsageConstant                = "Maximum number of composer.json diff lines to print"
	sourceDirectoryFlagNameConstant           = "source-dir"
	sourceDirectoryFlagUsageConstant          = "Application source directory passed to rector, relative to the project"
	environmentFileFlagNameConstant           = "env-file"
	environmentFileFlagUsageConstant          = "Environment file patched for the removed database driver, relative to the project"
	rulesFileFlagNameConstant                 = "rules-file"
	rulesFileFlagUsageConstant                = "YAML substitution table replacing the built-in package rules, relative to the project"
	rectorConfigFlagNameConstant              = "rector-config"
	rectorConfigFlagUsageConstant             = "Rector configuration file replacing the built-in Silverstripe 5 rules, relative to the project"
	colorFlagNameConstant                     = "color"
	colorFlagUsageConstant                    = "Colorize notes and the manifest diff"
	upgradeFailedErrorTemplateConstant        = "upgrade of %s failed: %w"
	toolConfigurationErrorTemplateConstant    = "unable to configure tools: %w"
	substitutionTableErrorTemplateConstant    = "unable to load substitution table: %w"
	collaboratorCreationErrorTemplateConstant = "unable to construct %s: %w"
	composerClientComponentConstant           = "composer client"
	sourceRewriterComponentConstant           = "source rewriter"
	manifestStoreComponentConstant            = "manifest store"
	environmentEditorComponentConstant        = "environment editor"
	upgradeCompletedMessageTemplateConstant   = "%s now targets Silverstripe 5"
	upgradeCompletedLogMessageConstant        = "Silverstripe 5 upgrade completed"
	upgradeFailedLogMessageConstant           = "Silverstripe 5 upgrade failed"
	logFieldPackagesConstant                  = "packages"
	logFieldFallbackPackagesConstant          = "fallback_packages"
	logFieldEnvironmentPatchedConstant        = "environment_patched"
	logFieldDiffTruncatedConstant             = "diff_truncated"
	logFieldStageFailedConstant               = "failed_stage"
)

// CommandExecutor runs Composer and Rector on behalf of the upgrade collaborators.
type CommandExecutor interface {
	ExecuteComposer(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteRector(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// UpgradeExecutor runs the migration for a single project.
type UpgradeExecutor interface {
	Execute(executionContext context.Context, options Options) (Result, error)
}

// ServiceProvider constructs an upgrade executor from dependencies.
type ServiceProvider func(dependencies ServiceDependencies) (UpgradeExecutor, error)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

type commandOptions struct {
	debugLoggingEnabled bool
	projectPath         string
	configuration       CommandConfiguration
}

// CommandBuilder assembles the upgrade Cobra command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	Executor                     CommandExecutor
	FileSystem                   afero.Fs
	ProjectPathResolver          *pathutils.ProjectPathResolver
	ServiceProvider              ServiceProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
}

// Build constructs the upgrade command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(1),
		RunE:          builder.runUpgrade,
	}

	defaults := DefaultCommandConfiguration()
	command.Flags().Int(diffLinesFlagNameConstant, defaults.DiffLines, diffLinesFlagUsageConstant)
	command.Flags().String(sourceDirectoryFlagNameConstant, defaults.SourceDirectory, sourceDirectoryFlagUsageConstant)
	command.Flags().String(environmentFileFlagNameConstant, defaults.EnvironmentFile, environmentFileFlagUsageConstant)
	command.Flags().String(rulesFileFlagNameConstant, defaults.RulesFile, rulesFileFlagUsageConstant)
	command.Flags().String(rectorConfigFlagNameConstant, defaults.RectorConfig, rectorConfigFlagUsageConstant)
	flags.AddToggleFlag(command.Flags(), nil, colorFlagNameConstant, "", defaults.Color, colorFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) runUpgrade(command *cobra.Command, arguments []string) error {
	options, optionsError := builder.parseOptions(command, arguments)
	if optionsError != nil {
		return optionsError
	}
	configuration := options.configuration

	logger := builder.resolveLogger(options.debugLoggingEnabled)
	fileSystem := builder.resolveFileSystem()
	outputWriter := utils.NewFlushingWriter(command.OutOrStdout())
	console := ui.NewConsole(outputWriter, configuration.Color && !color.NoColor)

	executor, executorError := builder.resolveExecutor(logger, configuration)
	if executorError != nil {
		return executorError
	}

	dependencies, dependenciesError := builder.buildDependencies(logger, executor, fileSystem, outputWriter, options.projectPath, configuration)
	if dependenciesError != nil {
		return dependenciesError
	}
	dependencies.Reporter = console

	service, serviceError := builder.resolveService(dependencies)
	if serviceError != nil {
		return serviceError
	}

	result, upgradeError := service.Execute(command.Context(), Options{
		ProjectPath:      options.projectPath,
		SourceDirectory:  configuration.SourceDirectory,
		RectorConfigPath: configuration.RectorConfig,
		EnvironmentFile:  configuration.EnvironmentFile,
		DiffMaxLines:     configuration.DiffLines,
	})
	if upgradeError != nil {
		builder.logFailure(logger, options.projectPath, upgradeError)
		return fmt.Errorf(upgradeFailedErrorTemplateConstant, options.projectPath, upgradeError)
	}

	builder.logSummary(logger, options.projectPath, result)
	console.Success(fmt.Sprintf(upgradeCompletedMessageTemplateConstant, options.projectPath))
	return nil
}

func (builder *CommandBuilder) buildDependencies(logger *zap.Logger, executor CommandExecutor, fileSystem afero.Fs, outputWriter io.Writer, projectPath string, configuration CommandConfiguration) (ServiceDependencies, error) {
	composerClient, composerError := composer.NewClient(executor, logger, outputWriter)
	if composerError != nil {
		return ServiceDependencies{}, fmt.Errorf(collaboratorCreationErrorTemplateConstant, composerClientComponentConstant, composerError)
	}

	sourceRewriter, rewriterError := rector.NewRewriter(executor, fileSystem, logger, outputWriter)
	if rewriterError != nil {
		return ServiceDependencies{}, fmt.Errorf(collaboratorCreationErrorTemplateConstant, sourceRewriterComponentConstant, rewriterError)
	}

	manifestStore, storeError := manifest.NewStore(fileSystem, logger)
	if storeError != nil {
		return ServiceDependencies{}, fmt.Errorf(collaboratorCreationErrorTemplateConstant, manifestStoreComponentConstant, storeError)
	}

	environmentEditor, editorError := envfile.NewEditor(fileSystem, logger)
	if editorError != nil {
		return ServiceDependencies{}, fmt.Errorf(collaboratorCreationErrorTemplateConstant, environmentEditorComponentConstant, editorError)
	}

	substitutions, tableError := resolveSubstitutionTable(fileSystem, projectPath, configuration.RulesFile)
	if tableError != nil {
		return ServiceDependencies{}, fmt.Errorf(substitutionTableErrorTemplateConstant, tableError)
	}

	return ServiceDependencies{
		Logger:            logger,
		ManifestStore:     manifestStore,
		Substitutions:     substitutions,
		Installer:         composerClient,
		EnvironmentEditor: environmentEditor,
		SourceRewriter:    sourceRewriter,
	}, nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command, arguments []string) (commandOptions, error) {
	configuration := builder.resolveConfiguration()

	debugEnabled := false
	if command != nil {
		contextAccessor := utils.NewCommandContextAccessor()
		if logLevel, available := contextAccessor.LogLevel(command.Context()); available {
			debugEnabled = strings.EqualFold(logLevel, string(utils.LogLevelDebug))
		}

		commandFlags := command.Flags()
		if commandFlags.Changed(diffLinesFlagNameConstant) {
			configuration.DiffLines, _ = commandFlags.GetInt(diffLinesFlagNameConstant)
		}
		if commandFlags.Changed(sourceDirectoryFlagNameConstant) {
			configuration.SourceDirectory, _ = commandFlags.GetString(sourceDirectoryFlagNameConstant)
		}
		if commandFlags.Changed(environmentFileFlagNameConstant) {
			configuration.EnvironmentFile, _ = commandFlags.GetString(environmentFileFlagNameConstant)
		}
		if commandFlags.Changed(rulesFileFlagNameConstant) {
			configuration.RulesFile, _ = commandFlags.GetString(rulesFileFlagNameConstant)
		}
		if commandFlags.Changed(rectorConfigFlagNameConstant) {
			configuration.RectorConfig, _ = commandFlags.GetString(rectorConfigFlagNameConstant)
		}
		if commandFlags.Changed(colorFlagNameConstant) {
			configuration.Color, _ = commandFlags.GetBool(colorFlagNameConstant)
		}
	}

	projectPath, resolveError := builder.resolveProjectPathResolver().Resolve(arguments[0])
	if resolveError != nil {
		return commandOptions{}, resolveError
	}

	return commandOptions{
		debugLoggingEnabled: debugEnabled,
		projectPath:         projectPath,
		configuration:       configuration.Sanitize(),
	}, nil
}

func (builder *CommandBuilder) resolveLogger(enableDebug bool) *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if enableDebug {
		logger = logger.WithOptions(zap.IncreaseLevel(zapcore.DebugLevel))
	}
	return logger
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger, configuration CommandConfiguration) (CommandExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}

	toolInvocations, invocationError := configuration.ToolInvocations()
	if invocationError != nil {
		return nil, fmt.Errorf(toolConfigurationErrorTemplateConstant, invocationError)
	}

	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}
	shellExecutor, creationError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), humanReadableLogging, toolInvocations)
	if creationError != nil {
		return nil, creationError
	}
	if humanReadableLogging {
		shellExecutor.SetEventObserver(ui.NewConsoleCommandEventLogger(logger))
	}
	return shellExecutor, nil
}

func (builder *CommandBuilder) resolveFileSystem() afero.Fs {
	if builder.FileSystem != nil {
		return builder.FileSystem
	}
	return afero.NewOsFs()
}

func (builder *CommandBuilder) resolveProjectPathResolver() *pathutils.ProjectPathResolver {
	if builder.ProjectPathResolver != nil {
		return builder.ProjectPathResolver
	}
	return pathutils.NewProjectPathResolver()
}

func (builder *CommandBuilder) resolveService(dependencies ServiceDependencies) (UpgradeExecutor, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies)
	}
	return NewService(dependencies)
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider()
}

// resolveSubstitutionTable loads the rules file relative to the project, the
// same anchor used for the source directory, env file and rector config.
func resolveSubstitutionTable(fileSystem afero.Fs, projectPath string, rulesFile string) (*substitution.Table, error) {
	trimmedRulesFile := strings.TrimSpace(rulesFile)
	if len(trimmedRulesFile) == 0 {
		return substitution.DefaultTable()
	}
	if !filepath.IsAbs(trimmedRulesFile) {
		trimmedRulesFile = filepath.Join(projectPath, trimmedRulesFile)
	}
	return substitution.LoadTableFile(fileSystem, trimmedRulesFile)
}

func (builder *CommandBuilder) logFailure(logger *zap.Logger, projectPath string, failure error) {
	fields := []zap.Field{zap.String(logFieldProjectPathConstant, projectPath), zap.Error(failure)}
	var stageError StageError
	if errors.As(failure, &stageError) {
		fields = append(fields, zap.String(logFieldStageFailedConstant, string(stageError.Stage)))
	}
	logger.Warn(upgradeFailedLogMessageConstant, fields...)
}

func (builder *CommandBuilder) logSummary(logger *zap.Logger, projectPath string, result Result) {
	packageNames := make([]string, 0, len(result.Packages))
	fallbackPackageNames := []string{}
	for _, installedPackage := range result.Packages {
		packageNames = append(packageNames, installedPackage.Name)
		if installedPackage.UsedFallback {
			fallbackPackageNames = append(fallbackPackageNames, installedPackage.Name)
		}
	}

	logger.Info(
		upgradeCompletedLogMessageConstant,
		zap.String(logFieldProjectPathConstant, projectPath),
		zap.Strings(logFieldPackagesConstant, packageNames),
		zap.Strings(logFieldFallbackPackagesConstant, fallbackPackageNames),
		zap.Bool(logFieldEnvironmentPatchedConstant, result.EnvironmentPatched),
		zap.Bool(logFieldDiffTruncatedConstant, result.ManifestDiff.Truncated),
	)
}
