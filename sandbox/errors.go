package sandbox

import "fmt"

// RuntimeNotFoundError signals that the wasmtime executable could not be
// located. It is a configuration error, surfaced before any process is
// spawned, and carries a remediation hint for the operator.
type RuntimeNotFoundError struct {
	Hint string
}

func (e *RuntimeNotFoundError) Error() string {
	return "wasmtime executable not found: " + e.Hint
}

// InterpreterModuleMissingError signals that the prebuilt interpreter
// module is absent from the resolved path. Like RuntimeNotFoundError this
// is a non-retryable configuration error, not a per-call failure.
type InterpreterModuleMissingError struct {
	Path string
}

func (e *InterpreterModuleMissingError) Error() string {
	return fmt.Sprintf("interpreter module missing at %s", e.Path)
}

// MalformedPayloadError signals that a result sentinel was present on
// stdout but the payload after it failed to decode. This is distinct from
// a genuine user exception: it means the bridge broke, not the callee.
type MalformedPayloadError struct {
	Payload string
	Err     error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed call payload %q: %v", e.Payload, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

// OutputLimitError signals that a captured stream exceeded the configured
// byte cap. The run is terminated rather than silently truncated.
type OutputLimitError struct {
	Limit int
}

func (e *OutputLimitError) Error() string {
	return fmt.Sprintf("captured output exceeded %d bytes", e.Limit)
}

// RaisedError is the decoded exception of a sandboxed callee: the type
// name and message only. The traceback originates inside the sandbox and
// is not reconstructed.
type RaisedError struct {
	Type    string
	Message string
}

func (e *RaisedError) Error() string {
	return e.Type + ": " + e.Message
}
