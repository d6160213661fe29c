package execshell

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
)

const (
	emptyToolCommandMessageConstant       = "tool command is empty"
	toolCommandParseErrorTemplateConstant = "unable to parse tool command %q: %w"
)

// ErrEmptyToolCommand indicates a configured tool command without an executable.
var ErrEmptyToolCommand = errors.New(emptyToolCommandMessageConstant)

// ToolInvocation is the executable and leading arguments used to launch a tool,
// for example "php" and ["composer.phar"].
type ToolInvocation struct {
	Executable string
	Arguments  []string
}

// ParseToolInvocation splits a shell-style command line into a ToolInvocation.
// Quoting follows POSIX shell rules; variables and backticks are not expanded.
func ParseToolInvocation(commandLine string) (ToolInvocation, error) {
	trimmedCommandLine := strings.TrimSpace(commandLine)
	if len(trimmedCommandLine) == 0 {
		return ToolInvocation{}, ErrEmptyToolCommand
	}

	parser := shellwords.NewParser()
	parser.ParseEnv = false
	parser.ParseBacktick = false

	words, parseError := parser.Parse(trimmedCommandLine)
	if parseError != nil {
		return ToolInvocation{}, fmt.Errorf(toolCommandParseErrorTemplateConstant, commandLine, parseError)
	}
	if len(words) == 0 {
		return ToolInvocation{}, ErrEmptyToolCommand
	}

	return ToolInvocation{Executable: words[0], Arguments: words[1:]}, nil
}

// String renders the invocation back into a single line for display.
func (invocation ToolInvocation) String() string {
	parts := append([]string{invocation.Executable}, invocation.Arguments...)
	return strings.Join(parts, " ")
}
