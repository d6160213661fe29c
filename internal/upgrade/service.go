package upgrade

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/ss5upgrade/internal/composer"
	"github.com/temirov/ss5upgrade/internal/envfile"
	"github.com/temirov/ss5upgrade/internal/manifest"
	"github.com/temirov/ss5upgrade/internal/rector"
)

const (
	// DefaultEnvironmentFile is the project-relative environment file patched when none is configured.
	DefaultEnvironmentFile = ".env"
	// DatabaseClassKey is the environment key naming the database driver class.
	DatabaseClassKey = "SS_DATABASE_CLASS"
	// RemovedDatabaseClass is the driver class Silverstripe 5 no longer ships.
	RemovedDatabaseClass = "MySQLPDODatabase"
	// ReplacementDatabaseClass is the driver class that replaces RemovedDatabaseClass.
	ReplacementDatabaseClass = "MySQLDatabase"

	manifestStoreMissingMessageConstant     = "manifest store not configured"
	substitutionTableMissingMessageConstant = "substitution table not configured"
	installerMissingMessageConstant         = "dependency installer not configured"
	environmentEditorMissingMessageConstant = "environment editor not configured"
	sourceRewriterMissingMessageConstant    = "source rewriter not configured"
	wrappedErrorTemplateConstant            = "%w: %w"
	unconstrainedLabelConstant              = "no constraint"
	rewriteManifestNoteTemplateConstant     = "Rewriting %s for Silverstripe 5"
	requirePackagesNoteTemplateConstant     = "Requiring %d production and %d development packages"
	fallbackNoteTemplateConstant            = "%s could not be required with %s, retrying with %s"
	rollbackNoteTemplateConstant            = "%s could not be resolved, restoring %s"
	globalUpdateNoteConstant                = "Running composer update"
	exposeVendorNoteConstant                = "Running composer vendor-expose"
	environmentMissingNoteTemplateConstant  = "No %s file found to make updates to"
	environmentPatchedNoteTemplateConstant  = "Changing removed %s=%s to %s=%s"
	rewriteSourceNoteTemplateConstant       = "Running rector over %s"
	pinnedPackageSkippedLogMessageConstant  = "pinned package skipped during install"
	packageInstalledLogMessageConstant      = "package required"
	rollbackFailedLogMessageConstant        = "manifest rollback failed"
	stageStartedLogMessageConstant          = "upgrade stage started"
	logFieldStageConstant                   = "stage"
	logFieldPackageConstant                 = "package"
	logFieldChannelConstant                 = "channel"
	logFieldConstraintConstant              = "constraint"
	logFieldUsedFallbackConstant            = "used_fallback"
	logFieldProjectPathConstant             = "project_path"
	logFieldRestoreErrorConstant            = "restore_error"
	logFieldLockfileErrorConstant           = "lockfile_error"
	patchEnvironmentNoteTemplateConstant    = "Updating %s"
)

// Stage names one step of the migration.
type Stage string

// Migration stages in execution order.
const (
	StageRewriteManifest Stage = Stage("rewrite-manifest")
	StageInstallAll      Stage = Stage("install-all")
	StageGlobalUpdate    Stage = Stage("global-update")
	StageExposeVendor    Stage = Stage("expose-vendor")
	StagePatchEnv        Stage = Stage("patch-env")
	StageRewriteSource   Stage = Stage("rewrite-source")
)

// ManifestStore reads and writes the project's Composer manifest.
type ManifestStore interface {
	Load(projectPath string) (manifest.Manifest, error)
	Snapshot(projectPath string) (manifest.Snapshot, error)
	Save(projectPath string, document manifest.Manifest) error
	Restore(projectPath string, snapshot manifest.Snapshot) error
	RemoveLockfile(projectPath string) error
}

// SubstitutionTable maps Silverstripe 4 packages to their Silverstripe 5 replacements.
type SubstitutionTable interface {
	Apply(packages manifest.PackageList) manifest.PackageList
	Fallback(packageName string) (string, bool)
	Pins() manifest.PackageList
}

// DependencyInstaller runs the Composer verbs the migration needs.
type DependencyInstaller interface {
	Require(executionContext context.Context, request composer.RequireRequest) bool
	Update(executionContext context.Context, projectPath string) error
	VendorExpose(executionContext context.Context, projectPath string) error
}

// EnvironmentEditor conditionally rewrites a single dotenv value.
type EnvironmentEditor interface {
	ReplaceValue(filePath string, key string, expected string, replacement string) (bool, error)
}

// SourceRewriter rewrites application sources for the new framework major.
type SourceRewriter interface {
	Rewrite(executionContext context.Context, request rector.Request) error
}

// Reporter receives operator-facing progress output.
type Reporter interface {
	Note(message string)
	Diff(unifiedDiff string)
}

// ServiceDependencies describes required collaborators for the migration.
type ServiceDependencies struct {
	Logger            *zap.Logger
	ManifestStore     ManifestStore
	Substitutions     SubstitutionTable
	Installer         DependencyInstaller
	EnvironmentEditor EnvironmentEditor
	SourceRewriter    SourceRewriter
	Reporter          Reporter
}

// Options configures one migration run.
type Options struct {
	ProjectPath      string
	SourceDirectory  string
	RectorConfigPath string
	EnvironmentFile  string
	DiffMaxLines     int
}

// InstalledPackage records the constraint a package was finally required with.
type InstalledPackage struct {
	Name         string
	Channel      composer.Channel
	Constraint   *string
	UsedFallback bool
}

// Result captures the observable outcomes of a successful run.
type Result struct {
	ManifestDiff       DiffPreview
	Packages           []InstalledPackage
	EnvironmentFound   bool
	EnvironmentPatched bool
}

// Service orchestrates the Silverstripe 5 migration.
type Service struct {
	logger            *zap.Logger
	manifestStore     ManifestStore
	substitutions     SubstitutionTable
	installer         DependencyInstaller
	environmentEditor EnvironmentEditor
	sourceRewriter    SourceRewriter
	reporter          Reporter
}

var (
	errManifestStoreMissing     = errors.New(manifestStoreMissingMessageConstant)
	errSubstitutionTableMissing = errors.New(substitutionTableMissingMessageConstant)
	errInstallerMissing         = errors.New(installerMissingMessageConstant)
	errEnvironmentEditorMissing = errors.New(environmentEditorMissingMessageConstant)
	errSourceRewriterMissing    = errors.New(sourceRewriterMissingMessageConstant)
)

// NewService constructs a Service with the provided dependencies. A nil
// logger or reporter discards the corresponding output.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.ManifestStore == nil {
		return nil, errManifestStoreMissing
	}
	if dependencies.Substitutions == nil {
		return nil, errSubstitutionTableMissing
	}
	if dependencies.Installer == nil {
		return nil, errInstallerMissing
	}
	if dependencies.EnvironmentEditor == nil {
		return nil, errEnvironmentEditorMissing
	}
	if dependencies.SourceRewriter == nil {
		return nil, errSourceRewriterMissing
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reporter := dependencies.Reporter
	if reporter == nil {
		reporter = discardReporter{}
	}

	return &Service{
		logger:            logger,
		manifestStore:     dependencies.ManifestStore,
		substitutions:     dependencies.Substitutions,
		installer:         dependencies.Installer,
		environmentEditor: dependencies.EnvironmentEditor,
		sourceRewriter:    dependencies.SourceRewriter,
		reporter:          reporter,
	}, nil
}

type installPlan struct {
	snapshot    manifest.Snapshot
	production  manifest.PackageList
	development manifest.PackageList
}

// Execute runs every stage in order and stops at the first terminal failure,
// which is returned as a StageError.
func (service *Service) Execute(executionContext context.Context, options Options) (Result, error) {
	projectPath := strings.TrimSpace(options.ProjectPath)
	if len(projectPath) == 0 {
		return Result{}, ErrProjectPathRequired
	}
	projectPath = filepath.Clean(projectPath)

	result := Result{}

	service.startStage(StageRewriteManifest, projectPath, fmt.Sprintf(rewriteManifestNoteTemplateConstant, manifest.ManifestPath(projectPath)))
	plan, diffPreview, rewriteError := service.rewriteManifest(projectPath, options.DiffMaxLines)
	if rewriteError != nil {
		return result, StageError{Stage: StageRewriteManifest, Cause: rewriteError}
	}
	result.ManifestDiff = diffPreview
	service.reporter.Diff(diffPreview.UnifiedDiff)

	service.startStage(StageInstallAll, projectPath, fmt.Sprintf(requirePackagesNoteTemplateConstant, len(plan.production), len(plan.development)))
	installedPackages, installError := service.installAll(executionContext, projectPath, plan)
	result.Packages = installedPackages
	if installError != nil {
		return result, StageError{Stage: StageInstallAll, Cause: installError}
	}

	service.startStage(StageGlobalUpdate, projectPath, globalUpdateNoteConstant)
	if updateError := service.installer.Update(executionContext, projectPath); updateError != nil {
		return result, StageError{Stage: StageGlobalUpdate, Cause: fmt.Errorf(wrappedErrorTemplateConstant, ErrUpdateFailed, updateError)}
	}

	service.startStage(StageExposeVendor, projectPath, exposeVendorNoteConstant)
	if exposeError := service.installer.VendorExpose(executionContext, projectPath); exposeError != nil {
		return result, StageError{Stage: StageExposeVendor, Cause: fmt.Errorf(wrappedErrorTemplateConstant, ErrExposeFailed, exposeError)}
	}

	environmentFile := resolveEnvironmentFile(options.EnvironmentFile)
	service.startStage(StagePatchEnv, projectPath, fmt.Sprintf(patchEnvironmentNoteTemplateConstant, environmentFile))
	environmentFound, environmentPatched, patchError := service.patchEnvironment(projectPath, environmentFile)
	result.EnvironmentFound = environmentFound
	result.EnvironmentPatched = environmentPatched
	if patchError != nil {
		return result, StageError{Stage: StagePatchEnv, Cause: patchError}
	}

	rewriteRequest := rector.Request{ProjectPath: projectPath, SourceDirectory: options.SourceDirectory, ConfigPath: options.RectorConfigPath}
	service.startStage(StageRewriteSource, projectPath, fmt.Sprintf(rewriteSourceNoteTemplateConstant, rector.SourcePath(rewriteRequest)))
	if sourceError := service.sourceRewriter.Rewrite(executionContext, rewriteRequest); sourceError != nil {
		if !errors.Is(sourceError, ErrInvalidSourcePath) && !errors.Is(sourceError, ErrRewriteFailed) {
			sourceError = fmt.Errorf(wrappedErrorTemplateConstant, ErrRewriteFailed, sourceError)
		}
		return result, StageError{Stage: StageRewriteSource, Cause: sourceError}
	}

	return result, nil
}

// rewriteManifest snapshots composer.json, substitutes both package lists,
// pins require and empties require-dev so every package is required again.
func (service *Service) rewriteManifest(projectPath string, diffMaxLines int) (installPlan, DiffPreview, error) {
	originalManifest, loadError := service.manifestStore.Load(projectPath)
	if loadError != nil {
		return installPlan{}, DiffPreview{}, loadError
	}
	snapshot, snapshotError := service.manifestStore.Snapshot(projectPath)
	if snapshotError != nil {
		return installPlan{}, DiffPreview{}, snapshotError
	}
	if lockfileError := service.manifestStore.RemoveLockfile(projectPath); lockfileError != nil {
		return installPlan{}, DiffPreview{}, lockfileError
	}

	pins := service.substitutions.Pins()
	plan := installPlan{
		snapshot:    snapshot,
		production:  service.withoutPinned(service.substitutions.Apply(originalManifest.Required), pins),
		development: service.withoutPinned(service.substitutions.Apply(originalManifest.RequiredDev), pins),
	}

	rewrittenManifest := originalManifest
	rewrittenManifest.Required = pins
	if originalManifest.RequiredDev != nil {
		rewrittenManifest.RequiredDev = manifest.PackageList{}
	}
	if saveError := service.manifestStore.Save(projectPath, rewrittenManifest); saveError != nil {
		return installPlan{}, DiffPreview{}, saveError
	}

	return plan, service.previewManifestDiff(projectPath, originalManifest, rewrittenManifest, diffMaxLines), nil
}

func (service *Service) previewManifestDiff(projectPath string, originalManifest manifest.Manifest, rewrittenManifest manifest.Manifest, diffMaxLines int) DiffPreview {
	originalContent, originalEncodeError := manifest.Encode(originalManifest)
	rewrittenContent, rewrittenEncodeError := manifest.Encode(rewrittenManifest)
	if originalEncodeError != nil || rewrittenEncodeError != nil {
		return DiffPreview{}
	}
	return renderManifestDiff(manifest.ManifestPath(projectPath), originalContent, rewrittenContent, diffMaxLines)
}

// withoutPinned removes packages that are already pinned in require so the
// pins cannot be overridden by a legacy constraint.
func (service *Service) withoutPinned(packages manifest.PackageList, pins manifest.PackageList) manifest.PackageList {
	filtered := make(manifest.PackageList, 0, len(packages))
	for _, entry := range packages {
		if _, pinned := pins.Lookup(entry.Name); pinned {
			service.logger.Debug(pinnedPackageSkippedLogMessageConstant, zap.String(logFieldPackageConstant, entry.Name))
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

// installAll requires production packages and then development packages in
// manifest order. Any failure restores the snapshot and removes the lockfile.
func (service *Service) installAll(executionContext context.Context, projectPath string, plan installPlan) ([]InstalledPackage, error) {
	batches := []struct {
		channel  composer.Channel
		packages manifest.PackageList
	}{
		{channel: composer.ChannelProduction, packages: plan.production},
		{channel: composer.ChannelDevelopment, packages: plan.development},
	}

	installedPackages := make([]InstalledPackage, 0, len(plan.production)+len(plan.development))
	for _, batch := range batches {
		for _, entry := range batch.packages {
			installedPackage, installError := service.installPackage(executionContext, projectPath, entry, batch.channel)
			if installError != nil {
				return installedPackages, service.rollback(projectPath, plan.snapshot, entry.Name, installError)
			}
			installedPackages = append(installedPackages, installedPackage)
		}
	}
	return installedPackages, nil
}

func (service *Service) installPackage(executionContext context.Context, projectPath string, entry manifest.PackageEntry, channel composer.Channel) (InstalledPackage, error) {
	request := composer.RequireRequest{
		ProjectPath: projectPath,
		Package:     entry.Name,
		Constraint:  entry.Constraint,
		Channel:     channel,
		Quiet:       true,
	}
	if service.installer.Require(executionContext, request) {
		return service.recordInstalled(entry.Name, channel, entry.Constraint, false), nil
	}
	if contextError := executionContext.Err(); contextError != nil {
		return InstalledPackage{}, contextError
	}

	var fallbackConstraint *string
	if constraint, hasFallback := service.substitutions.Fallback(entry.Name); hasFallback {
		fallbackConstraint = manifest.Constraint(constraint)
	}
	service.reporter.Note(fmt.Sprintf(fallbackNoteTemplateConstant, entry.Name, describeConstraint(entry.Constraint), describeConstraint(fallbackConstraint)))

	if lockfileError := service.manifestStore.RemoveLockfile(projectPath); lockfileError != nil {
		return InstalledPackage{}, lockfileError
	}
	request.Constraint = fallbackConstraint
	if service.installer.Require(executionContext, request) {
		return service.recordInstalled(entry.Name, channel, fallbackConstraint, true), nil
	}
	if contextError := executionContext.Err(); contextError != nil {
		return InstalledPackage{}, contextError
	}
	return InstalledPackage{}, UnresolvablePackageError{PackageName: entry.Name}
}

func (service *Service) recordInstalled(packageName string, channel composer.Channel, constraint *string, usedFallback bool) InstalledPackage {
	service.logger.Debug(packageInstalledLogMessageConstant,
		zap.String(logFieldPackageConstant, packageName),
		zap.String(logFieldChannelConstant, string(channel)),
		zap.String(logFieldConstraintConstant, describeConstraint(constraint)),
		zap.Bool(logFieldUsedFallbackConstant, usedFallback),
	)
	return InstalledPackage{Name: packageName, Channel: channel, Constraint: constraint, UsedFallback: usedFallback}
}

// rollback returns the manifest to its pre-run bytes. Rollback failures are
// joined to cause rather than replacing it.
func (service *Service) rollback(projectPath string, snapshot manifest.Snapshot, packageName string, cause error) error {
	service.reporter.Note(fmt.Sprintf(rollbackNoteTemplateConstant, packageName, manifest.ManifestPath(projectPath)))
	restoreError := service.manifestStore.Restore(projectPath, snapshot)
	lockfileError := service.manifestStore.RemoveLockfile(projectPath)
	if restoreError == nil && lockfileError == nil {
		return cause
	}
	service.logger.Error(rollbackFailedLogMessageConstant, zap.String(logFieldProjectPathConstant, projectPath), zap.NamedError(logFieldRestoreErrorConstant, restoreError), zap.NamedError(logFieldLockfileErrorConstant, lockfileError))
	return errors.Join(cause, restoreError, lockfileError)
}

// patchEnvironment replaces the removed database driver class. A missing
// environment file is reported and is not an error.
func (service *Service) patchEnvironment(projectPath string, environmentFile string) (bool, bool, error) {
	environmentPath := environmentFile
	if !filepath.IsAbs(environmentPath) {
		environmentPath = filepath.Join(projectPath, environmentPath)
	}

	patched, replaceError := service.environmentEditor.ReplaceValue(environmentPath, DatabaseClassKey, RemovedDatabaseClass, ReplacementDatabaseClass)
	if replaceError != nil {
		if errors.Is(replaceError, envfile.ErrNotFound) {
			service.reporter.Note(fmt.Sprintf(environmentMissingNoteTemplateConstant, environmentFile))
			return false, false, nil
		}
		return true, false, fmt.Errorf(wrappedErrorTemplateConstant, ErrIO, replaceError)
	}
	if patched {
		service.reporter.Note(fmt.Sprintf(environmentPatchedNoteTemplateConstant, DatabaseClassKey, RemovedDatabaseClass, DatabaseClassKey, ReplacementDatabaseClass))
	}
	return true, patched, nil
}

func (service *Service) startStage(stage Stage, projectPath string, note string) {
	service.logger.Debug(stageStartedLogMessageConstant, zap.String(logFieldStageConstant, string(stage)), zap.String(logFieldProjectPathConstant, projectPath))
	service.reporter.Note(note)
}

func resolveEnvironmentFile(environmentFile string) string {
	trimmedEnvironmentFile := strings.TrimSpace(environmentFile)
	if len(trimmedEnvironmentFile) == 0 {
		return DefaultEnvironmentFile
	}
	return trimmedEnvironmentFile
}

func describeConstraint(constraint *string) string {
	if constraint == nil || len(strings.TrimSpace(*constraint)) == 0 {
		return unconstrainedLabelConstant
	}
	return *constraint
}

type discardReporter struct{}

func (discardReporter) Note(string) {}

func (discardReporter) Diff(string) {}
