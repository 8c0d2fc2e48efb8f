package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds configuration for the sandbox executor
type Config struct {
	TimeoutSec  int
	MemoryMB    int
	MaxOutputKB int
}

// WasmExecutor implements SandboxExecutor by driving the wasmtime
// runtime as a subprocess, one fresh process per invocation.
type WasmExecutor struct {
	logger    *zap.Logger
	config    *Config
	paths     RuntimePaths
	cmdRunner CommandRunner
}

// WasmExecutorOption defines a functional option for WasmExecutor
type WasmExecutorOption func(*WasmExecutor)

// WithCommandRunner sets the CommandRunner for WasmExecutor
func WithCommandRunner(cmdRunner CommandRunner) WasmExecutorOption {
	return func(w *WasmExecutor) {
		w.cmdRunner = cmdRunner
	}
}

// NewWasmExecutor creates a new WasmExecutor for the given runtime paths
func NewWasmExecutor(logger *zap.Logger, config *Config, paths RuntimePaths, opts ...WasmExecutorOption) *WasmExecutor {
	executor := &WasmExecutor{
		logger:    logger,
		config:    config,
		paths:     paths,
		cmdRunner: RealCommandRunner{MaxOutputBytes: config.MaxOutputKB * BytesPerKB},
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute runs the source code in a fresh sandbox and captures its
// output verbatim. A deadline overrun is reported in the result, not as
// an error; only spawn failures and the output cap surface as errors.
func (w *WasmExecutor) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	return w.run(ctx, BuildInvocation(w.paths, w.withDefaults(req)), req.Timeout)
}

// ExecuteCall runs the source code with the synthesized call harness
// appended and decodes the sentinel-framed result from stdout.
func (w *WasmExecutor) ExecuteCall(ctx context.Context, req ExecuteRequest, spec CallSpec) (CallResult, error) {
	invocation, err := BuildCallInvocation(w.paths, w.withDefaults(req), spec)
	if err != nil {
		return CallResult{}, err
	}

	raw, err := w.run(ctx, invocation, req.Timeout)
	if err != nil {
		return CallResult{ExecuteResult: raw, Status: StatusCrashed}, err
	}

	result, err := DecodeCallOutput(raw)
	if err != nil {
		w.logger.Error("failed to decode call payload",
			zap.String("function", spec.Function),
			zap.Error(err))
	}
	return result, err
}

func (w *WasmExecutor) withDefaults(req ExecuteRequest) ExecuteRequest {
	if req.MemoryMB <= 0 {
		req.MemoryMB = w.config.MemoryMB
	}
	return req
}

func (w *WasmExecutor) run(ctx context.Context, invocation Invocation, timeout time.Duration) (ExecuteResult, error) {
	if timeout <= 0 {
		timeout = time.Duration(w.config.TimeoutSec) * time.Second
	}

	invocationID := uuid.NewString()
	w.logger.Info("spawning sandbox",
		zap.String("invocation_id", invocationID),
		zap.String("runtime", w.paths.Runtime),
		zap.String("module", w.paths.Module),
		zap.Duration("timeout", timeout),
		zap.Int("stdin_len", len(invocation.Stdin)))

	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, exitCode, err := w.cmdRunner.RunCommand(ctxWithTimeout, invocation.Stdin, invocation.Args)

	// The runtime was forcibly terminated at the deadline; partial
	// stderr is kept, no return value is reconstructed.
	if ctxWithTimeout.Err() == context.DeadlineExceeded {
		w.logger.Warn("sandbox timed out",
			zap.String("invocation_id", invocationID),
			zap.Duration("timeout", timeout))
		return ExecuteResult{
			Stdout:   stdout,
			Stderr:   stderr,
			ExitCode: exitCode,
			TimedOut: true,
		}, nil
	}

	if err != nil {
		var limitErr *OutputLimitError
		if errors.As(err, &limitErr) {
			w.logger.Warn("sandbox output capped",
				zap.String("invocation_id", invocationID),
				zap.Int("limit_bytes", limitErr.Limit))
			return ExecuteResult{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}, limitErr
		}
		return ExecuteResult{}, fmt.Errorf("failed to spawn sandbox runtime: %w", err)
	}

	w.logger.Info("sandbox exited",
		zap.String("invocation_id", invocationID),
		zap.Int("exit_code", exitCode),
		zap.Int("stdout_len", len(stdout)),
		zap.Int("stderr_len", len(stderr)))

	return ExecuteResult{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}, nil
}
