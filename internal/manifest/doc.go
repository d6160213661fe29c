// Package manifest reads, writes, snapshots, and restores a project's
// composer.json.
//
// Store keeps every top-level key in document order and exposes the require
// and require-dev package lists as ordered PackageList values. Writes go through
// a temporary sibling file renamed over the target so readers never observe a
// partially written manifest. All file access goes through an afero.Fs.
package manifest
