package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/ss5upgrade/internal/utils"
)

const (
	// ManifestFileName is the Composer manifest file inside a project.
	ManifestFileName = "composer.json"
	// LockfileFileName is the resolver lock file removed before fresh resolutions.
	LockfileFileName = "composer.lock"
	// SnapshotSuffix is appended to the manifest file name to form the backup path.
	SnapshotSuffix = ".upgradebak"

	defaultFilePermissionsConstant         = os.FileMode(0o644)
	invalidManifestMessageConstant         = "invalid manifest"
	ioFailureMessageConstant               = "manifest I/O failure"
	fileSystemNotConfiguredMessageConstant = "manifest store file system not configured"
	invalidManifestTemplateConstant        = "%w: %s: %w"
	ioFailureTemplateConstant              = "%w: %s %s: %w"
	operationReadConstant                  = "read"
	operationSnapshotConstant              = "snapshot"
	operationWriteConstant                 = "write"
	operationRestoreConstant               = "restore"
	operationRemoveConstant                = "remove"
	operationEncodeConstant                = "encode"
	manifestLoadedLogMessageConstant       = "manifest loaded"
	manifestSavedLogMessageConstant        = "manifest saved"
	manifestSnapshotLogMessageConstant     = "manifest snapshot created"
	manifestRestoredLogMessageConstant     = "manifest restored from snapshot"
	lockfileRemovedLogMessageConstant      = "lockfile removed"
	lockfileAbsentLogMessageConstant       = "lockfile absent"
	logFieldPathConstant                   = "path"
	logFieldSnapshotPathConstant           = "snapshot_path"
	logFieldRequiredCountConstant          = "required_packages"
	logFieldRequiredDevCountConstant       = "required_dev_packages"
)

var (
	// ErrInvalidManifest indicates a manifest that is missing, unreadable, or not a non-empty JSON object.
	ErrInvalidManifest = errors.New(invalidManifestMessageConstant)
	// ErrIO indicates a failed file operation on the manifest, its snapshot, or the lockfile.
	ErrIO = errors.New(ioFailureMessageConstant)
	// ErrFileSystemNotConfigured indicates a Store constructed without a file system.
	ErrFileSystemNotConfigured = errors.New(fileSystemNotConfiguredMessageConstant)
)

// Snapshot names the byte-for-byte backup of a manifest.
type Snapshot struct {
	Path string
}

// Store performs manifest file operations for a project directory.
type Store struct {
	fileSystem afero.Fs
	fileWriter *utils.AtomicFileWriter
	logger     *zap.Logger
}

// NewStore constructs a Store. A nil logger selects a no-op logger.
func NewStore(fileSystem afero.Fs, logger *zap.Logger) (*Store, error) {
	if fileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{fileSystem: fileSystem, fileWriter: utils.NewAtomicFileWriter(fileSystem), logger: logger}, nil
}

// ManifestPath returns the composer.json path for a project.
func ManifestPath(projectPath string) string {
	return filepath.Join(projectPath, ManifestFileName)
}

// LockfilePath returns the composer.lock path for a project.
func LockfilePath(projectPath string) string {
	return filepath.Join(projectPath, LockfileFileName)
}

// SnapshotPath returns the backup path for a project's manifest.
func SnapshotPath(projectPath string) string {
	return ManifestPath(projectPath) + SnapshotSuffix
}

// Load reads and decodes the project's manifest.
func (store *Store) Load(projectPath string) (Manifest, error) {
	manifestPath := ManifestPath(projectPath)
	content, readError := afero.ReadFile(store.fileSystem, manifestPath)
	if readError != nil {
		return Manifest{}, fmt.Errorf(invalidManifestTemplateConstant, ErrInvalidManifest, manifestPath, readError)
	}

	decodedManifest, decodeError := Decode(content)
	if decodeError != nil {
		return Manifest{}, fmt.Errorf(invalidManifestTemplateConstant, ErrInvalidManifest, manifestPath, decodeError)
	}

	store.logger.Debug(manifestLoadedLogMessageConstant,
		zap.String(logFieldPathConstant, manifestPath),
		zap.Int(logFieldRequiredCountConstant, len(decodedManifest.Required)),
		zap.Int(logFieldRequiredDevCountConstant, len(decodedManifest.RequiredDev)),
	)
	return decodedManifest, nil
}

// Snapshot copies the manifest bytes to the sibling backup file. The manifest is not modified.
func (store *Store) Snapshot(projectPath string) (Snapshot, error) {
	manifestPath := ManifestPath(projectPath)
	content, readError := afero.ReadFile(store.fileSystem, manifestPath)
	if readError != nil {
		return Snapshot{}, fmt.Errorf(ioFailureTemplateConstant, ErrIO, operationSnapshotConstant, manifestPath, readError)
	}

	snapshotPath := SnapshotPath(projectPath)
	if writeError := store.fileWriter.WriteFile(snapshotPath, content, defaultFilePermissionsConstant); writeError != nil {
		return Snapshot{}, fmt.Errorf(ioFailureTemplateConstant, ErrIO, operationSnapshotConstant, snapshotPath, writeError)
	}

	store.logger.Debug(manifestSnapshotLogMessageConstant, zap.String(logFieldPathConstant, manifestPath), zap.String(logFieldSnapshotPathConstant, snapshotPath))
	return Snapshot{Path: snapshotPath}, nil
}

// Save encodes the manifest and atomically replaces the project's composer.json.
func (store *Store) Save(projectPath string, manifest Manifest) error {
	manifestPath := ManifestPath(projectPath)
	content, encodeError := Encode(manifest)
	if encodeError != nil {
		return fmt.Errorf(ioFailureTemplateConstant, ErrIO, operationEncodeConstant, manifestPath, encodeError)
	}
	if writeError := store.fileWriter.WriteFile(manifestPath, content, defaultFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(ioFailureTemplateConstant, ErrIO, operationWriteConstant, manifestPath, writeError)
	}

	store.logger.Debug(manifestSavedLogMessageConstant, zap.String(logFieldPathConstant, manifestPath))
	return nil
}

// Restore atomically copies the snapshot bytes back over the project's composer.json.
func (store *Store) Restore(projectPath string, snapshot Snapshot) error {
	content, readError := afero.ReadFile(store.fileSystem, snapshot.Path)
	if readError != nil {
		return fmt.Errorf(ioFailureTemplateConstant, ErrIO, operationReadConstant, snapshot.Path, readError)
	}

	manifestPath := ManifestPath(projectPath)
	if writeError := store.fileWriter.WriteFile(manifestPath, content, defaultFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(ioFailureTemplateConstant, ErrIO, operationRestoreConstant, manifestPath, writeError)
	}

	store.logger.Info(manifestRestoredLogMessageConstant, zap.String(logFieldPathConstant, manifestPath), zap.String(logFieldSnapshotPathConstant, snapshot.Path))
	return nil
}

// RemoveLockfile deletes composer.lock when present.
func (store *Store) RemoveLockfile(projectPath string) error {
	lockfilePath := LockfilePath(projectPath)
	removeError := store.fileSystem.Remove(lockfilePath)
	if removeError != nil {
		if errors.Is(removeError, os.ErrNotExist) {
			store.logger.Debug(lockfileAbsentLogMessageConstant, zap.String(logFieldPathConstant, lockfilePath))
			return nil
		}
		return fmt.Errorf(ioFailureTemplateConstant, ErrIO, operationRemoveConstant, lockfilePath, removeError)
	}

	store.logger.Debug(lockfileRemovedLogMessageConstant, zap.String(logFieldPathConstant, lockfilePath))
	return nil
}
