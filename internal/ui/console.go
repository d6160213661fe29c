package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const (
	notePrefixConstant        = "! [NOTE] "
	successPrefixConstant     = "[OK] "
	failurePrefixConstant     = "[ERROR] "
	diffAddedPrefixConstant   = "+"
	diffRemovedPrefixConstant = "-"
	diffHunkPrefixConstant    = "@@"
	diffAddedHeaderConstant   = "+++"
	diffRemovedHeaderConstant = "---"
	lineSeparatorConstant     = "\n"
)

var plainColor = func() *color.Color {
	palette := color.New()
	palette.DisableColor()
	return palette
}()

// Console writes operator notes and diffs to a terminal.
type Console struct {
	writer       io.Writer
	noteColor    *color.Color
	successColor *color.Color
	failureColor *color.Color
	addedColor   *color.Color
	removedColor *color.Color
	hunkColor    *color.Color
}

// NewConsole constructs a Console writing to writer. When colorEnabled is
// false no escape sequences are emitted regardless of terminal detection.
func NewConsole(writer io.Writer, colorEnabled bool) *Console {
	if writer == nil {
		writer = io.Discard
	}
	console := &Console{
		writer:       writer,
		noteColor:    color.New(color.FgYellow),
		successColor: color.New(color.FgGreen, color.Bold),
		failureColor: color.New(color.FgRed, color.Bold),
		addedColor:   color.New(color.FgGreen),
		removedColor: color.New(color.FgRed),
		hunkColor:    color.New(color.FgCyan),
	}
	for _, palette := range []*color.Color{console.noteColor, console.successColor, console.failureColor, console.addedColor, console.removedColor, console.hunkColor} {
		if colorEnabled {
			palette.EnableColor()
		} else {
			palette.DisableColor()
		}
	}
	return console
}

// Note prints a highlighted informational line.
func (console *Console) Note(message string) {
	console.writeLine(console.noteColor, notePrefixConstant+message)
}

// Success prints a highlighted completion line.
func (console *Console) Success(message string) {
	console.writeLine(console.successColor, successPrefixConstant+message)
}

// Failure prints a highlighted error line.
func (console *Console) Failure(message string) {
	console.writeLine(console.failureColor, failurePrefixConstant+message)
}

// Diff prints a unified diff with added, removed and hunk lines colored.
func (console *Console) Diff(unifiedDiff string) {
	trimmedDiff := strings.TrimRight(unifiedDiff, lineSeparatorConstant)
	if len(trimmedDiff) == 0 {
		return
	}
	for _, line := range strings.Split(trimmedDiff, lineSeparatorConstant) {
		console.writeLine(console.diffColor(line), line)
	}
}

// writeLine keeps escape sequences on the same line as the text they color.
func (console *Console) writeLine(palette *color.Color, text string) {
	_, _ = fmt.Fprintln(console.writer, palette.Sprint(text))
}

func (console *Console) diffColor(line string) *color.Color {
	switch {
	case strings.HasPrefix(line, diffAddedHeaderConstant), strings.HasPrefix(line, diffRemovedHeaderConstant), strings.HasPrefix(line, diffHunkPrefixConstant):
		return console.hunkColor
	case strings.HasPrefix(line, diffAddedPrefixConstant):
		return console.addedColor
	case strings.HasPrefix(line, diffRemovedPrefixConstant):
		return console.removedColor
	default:
		return plainColor
	}
}
