// Package ui renders operator-facing console output.
//
// Stage notes and manifest diffs are written in color to the terminal, while
// command lifecycle events are translated into concise messages on a
// human-readable zap logger. Detailed telemetry continues to flow through the
// structured loggers.
package ui
