// Package cli constructs the ss5upgrade command-line interface. It wires the
// Cobra command hierarchy to the layered configuration loader and the zap
// logger, and registers the upgrade command.
package cli
