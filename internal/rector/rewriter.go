package rector

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/ss5upgrade/internal/execshell"
)

const (
	// DefaultSourceDirectory is the project-relative directory rewritten when none is configured.
	DefaultSourceDirectory = "app/src"

	processSubcommandConstant              = "process"
	clearCacheFlagConstant                 = "--clear-cache"
	noProgressBarFlagConstant              = "--no-progress-bar"
	configFlagTemplateConstant             = "--config=%s"
	executorNotConfiguredMessageConstant   = "rector executor not configured"
	fileSystemNotConfiguredMessageConstant = "rector file system not configured"
	invalidSourcePathMessageConstant       = "source path is not a directory"
	invalidSourcePathTemplateConstant      = "%w: %s"
	sourceCheckFailedTemplateConstant      = "failed to inspect source path %s: %w"
	rewriteFailedMessageConstant           = "rector rewrite failed"
	rewriteFailedTemplateConstant          = "%w: %w"
	rewriteStartedLogMessageConstant       = "rector rewrite started"
	rewriteCompletedLogMessageConstant     = "rector rewrite completed"
	logFieldSourcePathConstant             = "source_path"
	logFieldConfigPathConstant             = "config_path"
	logFieldBundledRulesConstant           = "bundled_rules"
	bundledRulesPatternConstant            = "ss5upgrade-rector-*.php"
	bundledRulesWriteTemplateConstant      = "%w: failed to stage bundled rector rules: %w"
	bundledRulesCleanupLogMessageConstant  = "failed to remove staged rector rules"
)

//go:embed rules.php
var bundledRules []byte

var (
	// ErrExecutorNotConfigured indicates the rewriter was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
	// ErrFileSystemNotConfigured indicates the rewriter was constructed without a file system.
	ErrFileSystemNotConfigured = errors.New(fileSystemNotConfiguredMessageConstant)
	// ErrInvalidSourcePath indicates the source directory is missing or is not a directory.
	ErrInvalidSourcePath = errors.New(invalidSourcePathMessageConstant)
	// ErrRewriteFailed indicates Rector ran and failed, or could not be launched.
	ErrRewriteFailed = errors.New(rewriteFailedMessageConstant)
)

// CommandExecutor is the minimal interface required from execshell.ShellExecutor.
type CommandExecutor interface {
	ExecuteRector(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Request describes one rewrite run. SourceDirectory and ConfigPath are
// resolved against ProjectPath when relative; an empty SourceDirectory selects
// DefaultSourceDirectory and an empty ConfigPath selects the bundled
// Silverstripe 5 rule set.
type Request struct {
	ProjectPath     string
	SourceDirectory string
	ConfigPath      string
}

// Rewriter invokes Rector for a project.
type Rewriter struct {
	executor     CommandExecutor
	fileSystem   afero.Fs
	logger       *zap.Logger
	outputWriter io.Writer
}

// NewRewriter constructs a Rewriter. Rector output is streamed to outputWriter when it is not nil.
func NewRewriter(executor CommandExecutor, fileSystem afero.Fs, logger *zap.Logger, outputWriter io.Writer) (*Rewriter, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if fileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{executor: executor, fileSystem: fileSystem, logger: logger, outputWriter: outputWriter}, nil
}

// SourcePath returns the absolute source directory a request targets.
func SourcePath(request Request) string {
	sourceDirectory := strings.TrimSpace(request.SourceDirectory)
	if len(sourceDirectory) == 0 {
		sourceDirectory = DefaultSourceDirectory
	}
	return resolveAgainst(request.ProjectPath, sourceDirectory)
}

// Rewrite runs Rector over the source directory. The directory is checked
// before Rector is launched; a missing directory yields ErrInvalidSourcePath
// and no process is started.
func (rewriter *Rewriter) Rewrite(executionContext context.Context, request Request) error {
	sourcePath := SourcePath(request)
	isDirectory, statError := afero.DirExists(rewriter.fileSystem, sourcePath)
	if statError != nil {
		return fmt.Errorf(sourceCheckFailedTemplateConstant, sourcePath, statError)
	}
	if !isDirectory {
		return fmt.Errorf(invalidSourcePathTemplateConstant, ErrInvalidSourcePath, sourcePath)
	}

	configPath, bundled, configError := rewriter.resolveConfigPath(request)
	if configError != nil {
		return configError
	}
	if bundled {
		defer rewriter.removeStagedRules(configPath)
	}

	arguments := []string{processSubcommandConstant, sourcePath, clearCacheFlagConstant, noProgressBarFlagConstant, fmt.Sprintf(configFlagTemplateConstant, configPath)}
	logFields := []zap.Field{
		zap.String(logFieldSourcePathConstant, sourcePath),
		zap.String(logFieldConfigPathConstant, configPath),
		zap.Bool(logFieldBundledRulesConstant, bundled),
	}

	rewriter.logger.Debug(rewriteStartedLogMessageConstant, logFields...)
	commandDetails := execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: request.ProjectPath,
		OutputWriter:     rewriter.outputWriter,
	}
	if _, executionError := rewriter.executor.ExecuteRector(executionContext, commandDetails); executionError != nil {
		return fmt.Errorf(rewriteFailedTemplateConstant, ErrRewriteFailed, executionError)
	}

	rewriter.logger.Info(rewriteCompletedLogMessageConstant, logFields...)
	return nil
}

// resolveConfigPath returns the configured Rector config, or stages the
// bundled rule set in a temporary file and reports bundled as true.
func (rewriter *Rewriter) resolveConfigPath(request Request) (string, bool, error) {
	if configPath := strings.TrimSpace(request.ConfigPath); len(configPath) > 0 {
		return resolveAgainst(request.ProjectPath, configPath), false, nil
	}

	stagedFile, createError := afero.TempFile(rewriter.fileSystem, "", bundledRulesPatternConstant)
	if createError != nil {
		return "", false, fmt.Errorf(bundledRulesWriteTemplateConstant, ErrRewriteFailed, createError)
	}
	stagedPath := stagedFile.Name()
	_, writeError := stagedFile.Write(bundledRules)
	closeError := stagedFile.Close()
	if stagingError := errors.Join(writeError, closeError); stagingError != nil {
		rewriter.removeStagedRules(stagedPath)
		return "", false, fmt.Errorf(bundledRulesWriteTemplateConstant, ErrRewriteFailed, stagingError)
	}
	return stagedPath, true, nil
}

func (rewriter *Rewriter) removeStagedRules(stagedPath string) {
	if removeError := rewriter.fileSystem.Remove(stagedPath); removeError != nil {
		rewriter.logger.Debug(bundledRulesCleanupLogMessageConstant, zap.String(logFieldConfigPathConstant, stagedPath), zap.Error(removeError))
	}
}

func resolveAgainst(basePath string, candidatePath string) string {
	if filepath.IsAbs(candidatePath) {
		return filepath.Clean(candidatePath)
	}
	return filepath.Join(basePath, candidatePath)
}
