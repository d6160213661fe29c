package pathutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	emptyProjectPathMessageConstant            = "project path is empty"
	projectPathResolutionErrorTemplateConstant = "unable to resolve project path %s: %w"
)

// ErrEmptyProjectPath indicates a blank project path argument.
var ErrEmptyProjectPath = errors.New(emptyProjectPathMessageConstant)

// WorkingDirectoryProvider resolves the directory relative paths are anchored to.
type WorkingDirectoryProvider func() (string, error)

// ProjectPathResolver turns a user-supplied project path into a clean absolute path.
type ProjectPathResolver struct {
	homeExpander             *HomeExpander
	workingDirectoryProvider WorkingDirectoryProvider
}

// NewProjectPathResolver constructs a ProjectPathResolver anchored at the process working directory.
func NewProjectPathResolver() *ProjectPathResolver {
	return NewProjectPathResolverWithProviders(nil, nil)
}

// NewProjectPathResolverWithProviders constructs a ProjectPathResolver with custom lookups.
func NewProjectPathResolverWithProviders(homeExpander *HomeExpander, workingDirectoryProvider WorkingDirectoryProvider) *ProjectPathResolver {
	if homeExpander == nil {
		homeExpander = NewHomeExpander()
	}
	if workingDirectoryProvider == nil {
		workingDirectoryProvider = os.Getwd
	}
	return &ProjectPathResolver{homeExpander: homeExpander, workingDirectoryProvider: workingDirectoryProvider}
}

// Resolve trims whitespace, expands the user's home directory, and anchors
// relative paths at the working directory.
func (resolver *ProjectPathResolver) Resolve(candidatePath string) (string, error) {
	trimmedCandidate := strings.TrimSpace(candidatePath)
	if len(trimmedCandidate) == 0 {
		return "", ErrEmptyProjectPath
	}

	expandedPath := resolver.homeExpander.Expand(trimmedCandidate)
	if filepath.IsAbs(expandedPath) {
		return filepath.Clean(expandedPath), nil
	}

	workingDirectory, workingDirectoryError := resolver.workingDirectoryProvider()
	if workingDirectoryError != nil {
		return "", fmt.Errorf(projectPathResolutionErrorTemplateConstant, trimmedCandidate, workingDirectoryError)
	}
	return filepath.Join(workingDirectory, expandedPath), nil
}
