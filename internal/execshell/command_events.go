package execshell

// CommandEventObserver is notified around every Composer and Rector run made
// through a ShellExecutor.
type CommandEventObserver interface {
	// CommandStarted is called before the process is launched.
	CommandStarted(command ShellCommand)
	// CommandCompleted is called once the process exited, whatever its exit code.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed is called when the process could not be run at all.
	CommandExecutionFailed(command ShellCommand, failure error)
}

type noopCommandEventObserver struct{}

func (noopCommandEventObserver) CommandStarted(ShellCommand) {}

func (noopCommandEventObserver) CommandCompleted(ShellCommand, ExecutionResult) {}

func (noopCommandEventObserver) CommandExecutionFailed(ShellCommand, error) {}
