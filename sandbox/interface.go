package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ExecuteRequest represents the parameters for one sandboxed execution.
// A zero Timeout or MemoryMB falls back to the configured default.
type ExecuteRequest struct {
	Code     string
	Workdir  string // host directory granted to the sandbox, empty means no grant
	MemoryMB int
	Timeout  time.Duration
}

// ExecuteResult represents the raw outcome of one sandboxed execution.
type ExecuteResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// CallSpec describes a single function call to marshal into the sandbox.
// Args and Kwargs values must be JSON-representable. The function name is
// not validated here; an invalid identifier is rejected by the sandboxed
// interpreter itself.
type CallSpec struct {
	Function string
	Args     []any
	Kwargs   map[string]any
}

// Status is the terminal state of a marshalled function call.
type Status string

const (
	// StatusSucceeded means the callee returned and its value was decoded.
	StatusSucceeded Status = "succeeded"
	// StatusRaised means the callee raised and the exception was decoded.
	StatusRaised Status = "raised"
	// StatusTimedOut means the sandbox was terminated at the deadline.
	StatusTimedOut Status = "timed_out"
	// StatusCrashed covers abnormal exits with no sentinel and sentinel
	// payloads that failed to decode.
	StatusCrashed Status = "crashed"
)

// CallResult extends ExecuteResult with the decoded return value of a
// marshalled function call. Value is only meaningful when Status is
// StatusSucceeded; Raised is only set when Status is StatusRaised.
type CallResult struct {
	ExecuteResult
	Status Status
	Value  any
	Raised *RaisedError
}

// SandboxExecutor defines the interface for sandboxed execution.
type SandboxExecutor interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
	ExecuteCall(ctx context.Context, req ExecuteRequest, spec CallSpec) (CallResult, error)
}

// CommandRunner defines an interface for spawning the runtime subprocess.
// The stdin payload is fully written and closed before output is read.
type CommandRunner interface {
	RunCommand(ctx context.Context, stdin string, args []string) (stdout, stderr string, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands.
// MaxOutputBytes caps each captured stream; zero means unbounded.
type RealCommandRunner struct {
	MaxOutputBytes int
}

// RunCommand executes the given command, feeding stdin and capturing both
// output streams. A nonzero exit is not an error; exceeding the output cap
// is reported as *OutputLimitError.
func (r RealCommandRunner) RunCommand(ctx context.Context, stdin string, args []string) (stdout, stderr string, exitCode int, err error) {
	if len(args) < 1 {
		return "", "", 0, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // Argument vector is engine-controlled
	cmd.Stdin = strings.NewReader(stdin)

	// Once a stream is over the cap the producer is killed; a sandboxed
	// program that prints without bound must not stall on a full pipe
	// until the deadline.
	kill := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
	stdoutBuf := &cappedBuffer{limit: r.MaxOutputBytes, onExceed: kill}
	stderrBuf := &cappedBuffer{limit: r.MaxOutputBytes, onExceed: kill}
	cmd.Stdout = stdoutBuf
	cmd.Stderr = stderrBuf

	err = cmd.Run()

	exitCode = 0
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else if !stdoutBuf.exceeded && !stderrBuf.exceeded {
			return "", "", 0, err
		}
	}

	if stdoutBuf.exceeded || stderrBuf.exceeded {
		return stdoutBuf.String(), stderrBuf.String(), exitCode, &OutputLimitError{Limit: r.MaxOutputBytes}
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// cappedBuffer rejects writes past its limit, keeping the bytes seen so
// far and firing onExceed once on the first overflowing write.
type cappedBuffer struct {
	buf      bytes.Buffer
	limit    int
	exceeded bool
	onExceed func()
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.limit > 0 && b.buf.Len()+len(p) > b.limit {
		if !b.exceeded {
			b.exceeded = true
			if b.onExceed != nil {
				b.onExceed()
			}
		}
		if room := b.limit - b.buf.Len(); room > 0 {
			b.buf.Write(p[:room])
		}
		return 0, &OutputLimitError{Limit: b.limit}
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
	FileExists(path string) (bool, error)
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (RealFileSystem) FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// File permission and size constants
const (
	DirPermission  = 0755
	FilePermission = 0600
	BytesPerKB     = 1024
	BytesPerMB     = 1024 * 1024
)
