// Package substitution decides how each Composer package is carried into the
// upgraded manifest.
//
// A Table maps package names to keep, drop, or rename rules, holds fallback
// constraints tried when an install fails, and lists the pinned platform
// entries that replace require. The default table is embedded from rules.yaml;
// operators may load a replacement file of the same shape.
package substitution
