// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner for
// default process execution, and defines the abstractions ss5upgrade uses to
// run Composer and Rector in a testable manner. Every outcome is reduced to an
// exit status; callers decide whether a non-zero status is expected.
package execshell
