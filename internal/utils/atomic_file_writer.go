package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	temporaryFilePatternTemplateConstant = ".%s.*.tmp"
	createTemporaryFileTemplateConstant  = "create temp file for %s: %w"
	writeTemporaryFileTemplateConstant   = "write temp file for %s: %w"
	syncTemporaryFileTemplateConstant    = "sync temp file for %s: %w"
	closeTemporaryFileTemplateConstant   = "close temp file for %s: %w"
	setPermissionsTemplateConstant       = "set permissions for %s: %w"
	renameTemporaryFileTemplateConstant  = "rename temp file for %s: %w"
)

// AtomicFileWriter replaces files by writing a temporary sibling and renaming it
// over the target, so readers observe either the old or the new content.
type AtomicFileWriter struct {
	fileSystem afero.Fs
}

// NewAtomicFileWriter constructs a writer operating on the provided file system.
func NewAtomicFileWriter(fileSystem afero.Fs) *AtomicFileWriter {
	return &AtomicFileWriter{fileSystem: fileSystem}
}

// WriteFile atomically replaces targetPath with content. An existing target keeps
// its permissions; a new file receives defaultPermissions.
func (writer *AtomicFileWriter) WriteFile(targetPath string, content []byte, defaultPermissions os.FileMode) error {
	permissions := defaultPermissions
	if existingInfo, statError := writer.fileSystem.Stat(targetPath); statError == nil {
		permissions = existingInfo.Mode().Perm()
	}

	temporaryFile, createError := afero.TempFile(writer.fileSystem, filepath.Dir(targetPath), fmt.Sprintf(temporaryFilePatternTemplateConstant, filepath.Base(targetPath)))
	if createError != nil {
		return fmt.Errorf(createTemporaryFileTemplateConstant, targetPath, createError)
	}
	temporaryPath := temporaryFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = writer.fileSystem.Remove(temporaryPath)
		}
	}()

	if _, writeError := temporaryFile.Write(content); writeError != nil {
		_ = temporaryFile.Close()
		return fmt.Errorf(writeTemporaryFileTemplateConstant, targetPath, writeError)
	}
	if syncError := temporaryFile.Sync(); syncError != nil {
		_ = temporaryFile.Close()
		return fmt.Errorf(syncTemporaryFileTemplateConstant, targetPath, syncError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return fmt.Errorf(closeTemporaryFileTemplateConstant, targetPath, closeError)
	}
	if chmodError := writer.fileSystem.Chmod(temporaryPath, permissions); chmodError != nil {
		return fmt.Errorf(setPermissionsTemplateConstant, targetPath, chmodError)
	}
	if renameError := writer.fileSystem.Rename(temporaryPath, targetPath); renameError != nil {
		return fmt.Errorf(renameTemporaryFileTemplateConstant, targetPath, renameError)
	}

	committed = true
	return nil
}
