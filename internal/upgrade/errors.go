package upgrade

import (
	"errors"
	"fmt"

	"github.com/temirov/ss5upgrade/internal/manifest"
	"github.com/temirov/ss5upgrade/internal/rector"
)

const (
	unresolvablePackageMessageConstant     = "unresolvable package"
	unresolvablePackageTemplateConstant    = "unresolvable package %s"
	updateFailedMessageConstant            = "dependency update failed"
	exposeFailedMessageConstant            = "vendor expose failed"
	projectPathRequiredMessageConstant     = "project path must be provided"
	stageErrorTemplateConstant             = "%s: %v"
	stageErrorWithoutCauseTemplateConstant = "%s failed"
)

var (
	// ErrInvalidManifest indicates composer.json is missing, unreadable, or empty.
	ErrInvalidManifest = manifest.ErrInvalidManifest
	// ErrIO indicates a failed file operation on project files.
	ErrIO = manifest.ErrIO
	// ErrInvalidSourcePath indicates the application source directory does not exist.
	ErrInvalidSourcePath = rector.ErrInvalidSourcePath
	// ErrRewriteFailed indicates the source rewriter failed.
	ErrRewriteFailed = rector.ErrRewriteFailed
	// ErrUnresolvablePackage indicates a package failed both its primary and fallback require.
	ErrUnresolvablePackage = errors.New(unresolvablePackageMessageConstant)
	// ErrUpdateFailed indicates composer update failed.
	ErrUpdateFailed = errors.New(updateFailedMessageConstant)
	// ErrExposeFailed indicates composer vendor-expose failed.
	ErrExposeFailed = errors.New(exposeFailedMessageConstant)
	// ErrProjectPathRequired indicates Execute was called without a project path.
	ErrProjectPathRequired = errors.New(projectPathRequiredMessageConstant)
)

// UnresolvablePackageError names the package that could not be required.
type UnresolvablePackageError struct {
	PackageName string
}

// Error describes the unresolvable package.
func (unresolvable UnresolvablePackageError) Error() string {
	return fmt.Sprintf(unresolvablePackageTemplateConstant, unresolvable.PackageName)
}

// Is reports whether target is ErrUnresolvablePackage.
func (unresolvable UnresolvablePackageError) Is(target error) bool {
	return target == ErrUnresolvablePackage
}

// StageError attributes a terminal failure to the stage it happened in.
type StageError struct {
	Stage Stage
	Cause error
}

// Error describes the failed stage.
func (stageError StageError) Error() string {
	if stageError.Cause == nil {
		return fmt.Sprintf(stageErrorWithoutCauseTemplateConstant, stageError.Stage)
	}
	return fmt.Sprintf(stageErrorTemplateConstant, stageError.Stage, stageError.Cause)
}

// Unwrap exposes the underlying cause.
func (stageError StageError) Unwrap() error {
	return stageError.Cause
}
