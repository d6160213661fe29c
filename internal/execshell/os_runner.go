package execshell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
)

const (
	environmentAssignmentSeparatorConstant = "="
	lineTerminatorConstant                 = '\n'
)

// OSCommandRunner starts Composer and Rector as operating system processes.
type OSCommandRunner struct{}

// NewOSCommandRunner constructs a runner backed by os/exec.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// Run executes command and waits for it to exit. Both output streams are
// captured into the result; when the command carries an OutputWriter, complete
// lines from either stream are also forwarded to it as they arrive.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	process := exec.CommandContext(executionContext, string(command.Name), command.CommandLine()...)
	process.Dir = command.Details.WorkingDirectory
	process.Env = mergeEnvironment(command.Details.EnvironmentVariables)
	if len(command.Details.StandardInput) > 0 {
		process.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	process.Stdout = &standardOutputBuffer
	process.Stderr = &standardErrorBuffer

	var streamers []*lineStreamer
	if command.Details.OutputWriter != nil {
		sharedMutex := &sync.Mutex{}
		outputStreamer := newLineStreamer(command.Details.OutputWriter, sharedMutex)
		errorStreamer := newLineStreamer(command.Details.OutputWriter, sharedMutex)
		streamers = append(streamers, outputStreamer, errorStreamer)
		process.Stdout = io.MultiWriter(&standardOutputBuffer, outputStreamer)
		process.Stderr = io.MultiWriter(&standardErrorBuffer, errorStreamer)
	}

	runError := process.Run()
	for _, streamer := range streamers {
		streamer.Flush()
	}

	result := ExecutionResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
	}
	if runError == nil {
		return result, nil
	}

	var exitError *exec.ExitError
	if errors.As(runError, &exitError) && executionContext.Err() == nil {
		result.ExitCode = exitError.ExitCode()
		return result, nil
	}
	if contextError := executionContext.Err(); contextError != nil {
		return ExecutionResult{}, contextError
	}
	return ExecutionResult{}, runError
}

// mergeEnvironment returns nil when there are no overrides so the child
// inherits the current environment unchanged.
func mergeEnvironment(overrides map[string]string) []string {
	if len(overrides) == 0 {
		return nil
	}
	mergedEnvironment := append([]string{}, os.Environ()...)
	for environmentKey, environmentValue := range overrides {
		mergedEnvironment = append(mergedEnvironment, environmentKey+environmentAssignmentSeparatorConstant+environmentValue)
	}
	return mergedEnvironment
}

// lineStreamer forwards whole lines to a writer shared with other streamers.
// The shared mutex keeps lines from stdout and stderr from interleaving.
type lineStreamer struct {
	destination io.Writer
	mutex       *sync.Mutex
	pending     []byte
}

func newLineStreamer(destination io.Writer, mutex *sync.Mutex) *lineStreamer {
	return &lineStreamer{destination: destination, mutex: mutex}
}

// Write never fails; a destination error must not abort the child process.
func (streamer *lineStreamer) Write(data []byte) (int, error) {
	streamer.pending = append(streamer.pending, data...)
	lastTerminator := bytes.LastIndexByte(streamer.pending, lineTerminatorConstant)
	if lastTerminator < 0 {
		return len(data), nil
	}
	streamer.emit(streamer.pending[:lastTerminator+1])
	streamer.pending = append(streamer.pending[:0], streamer.pending[lastTerminator+1:]...)
	return len(data), nil
}

// Flush forwards a trailing partial line.
func (streamer *lineStreamer) Flush() {
	if len(streamer.pending) == 0 {
		return
	}
	streamer.emit(streamer.pending)
	streamer.pending = nil
}

func (streamer *lineStreamer) emit(lines []byte) {
	streamer.mutex.Lock()
	defer streamer.mutex.Unlock()
	_, _ = streamer.destination.Write(lines)
}
