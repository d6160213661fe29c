// Package utils exposes reusable helpers consumed by the CLI and the upgrade
// collaborators.
//
// It houses the Viper backed ConfigurationLoader, the zap LoggerFactory, the
// command context accessor, and the afero based AtomicFileWriter used to
// replace project files without partial writes.
package utils
