// Package upgrade migrates a Silverstripe 4 project to Silverstripe 5.
//
// Service runs the migration as a fixed sequence of stages: the Composer
// manifest is rewritten through the substitution table, every package is
// required again against the new platform pins with a single fallback retry,
// Composer update and vendor-expose run, the environment file is patched, and
// Rector rewrites the application sources. A package that cannot be resolved
// restores the manifest snapshot taken before the first change.
package upgrade
