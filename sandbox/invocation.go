package sandbox

import (
	"encoding/json"
	"fmt"
)

// Invocation is the exact argument vector and stdin payload for one
// runtime subprocess. The source code travels on stdin only; argv never
// carries user-controlled text.
type Invocation struct {
	Args  []string
	Stdin string
}

// Sentinel tokens framing the marshalled call result on stdout. The
// tokens carry a fixed random suffix so that ordinary program output is
// vanishingly unlikely to collide with them; the decoder takes the first
// occurrence either way.
const (
	successSentinel = "__WASMBOX_RESULT_3f9c41d8__"
	errorSentinel   = "__WASMBOX_RAISED_3f9c41d8__"
)

// callHarness is appended after the user's source in call mode. Argument
// payloads and sentinel tokens are embedded as string literals produced
// by pyStringLiteral and handed to the guest's own json.loads, so user
// code and harness code cannot interfere lexically. The call and the
// serialization of its result run inside one try block: any exception,
// including a non-serializable return value, is reported behind the
// error sentinel instead.
const callHarness = `

import json as __wasmbox_json

__wasmbox_args = __wasmbox_json.loads(%s)
__wasmbox_kwargs = __wasmbox_json.loads(%s)

try:
    __wasmbox_result = %s(*__wasmbox_args, **__wasmbox_kwargs)
    print(%s + __wasmbox_json.dumps(__wasmbox_result))
except BaseException as __wasmbox_exc:
    print(%s + __wasmbox_json.dumps({"type": type(__wasmbox_exc).__name__, "message": str(__wasmbox_exc)}))
`

// BuildInvocation produces the invocation for plain execution: the
// source code is forwarded verbatim on stdin.
func BuildInvocation(paths RuntimePaths, req ExecuteRequest) Invocation {
	return Invocation{
		Args:  buildArgs(paths, req),
		Stdin: req.Code,
	}
}

// BuildCallInvocation produces the invocation for call mode: the user's
// source followed by the synthesized harness that deserializes the
// arguments, invokes the named function, and prints the sentinel-framed
// result. It fails only when the arguments are not JSON-representable.
func BuildCallInvocation(paths RuntimePaths, req ExecuteRequest, spec CallSpec) (Invocation, error) {
	args := spec.Args
	if args == nil {
		args = []any{}
	}
	kwargs := spec.Kwargs
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return Invocation{}, fmt.Errorf("failed to encode call arguments: %w", err)
	}
	kwargsJSON, err := json.Marshal(kwargs)
	if err != nil {
		return Invocation{}, fmt.Errorf("failed to encode call keyword arguments: %w", err)
	}

	harness := fmt.Sprintf(callHarness,
		pyStringLiteral(string(argsJSON)),
		pyStringLiteral(string(kwargsJSON)),
		spec.Function,
		pyStringLiteral(successSentinel),
		pyStringLiteral(errorSentinel),
	)

	return Invocation{
		Args:  buildArgs(paths, req),
		Stdin: req.Code + harness,
	}, nil
}

// buildArgs assembles the runtime argument vector: the run subcommand,
// the optional memory cap, the optional working-directory grant, then
// the module path. No other capabilities are granted.
func buildArgs(paths RuntimePaths, req ExecuteRequest) []string {
	args := []string{paths.Runtime, "run"}
	if req.MemoryMB > 0 {
		args = append(args, "-W", fmt.Sprintf("max-memory-size=%d", req.MemoryMB*BytesPerMB))
	}
	if req.Workdir != "" {
		args = append(args, fmt.Sprintf("--dir=%s::/workdir", req.Workdir))
	}
	return append(args, paths.Module)
}

// pyStringLiteral encodes s as a double-quoted literal valid in both
// JSON and the guest language's grammar. Embedded data always passes
// through this function, never through string concatenation into syntax.
func pyStringLiteral(s string) string {
	literal, err := json.Marshal(s)
	if err != nil {
		// json.Marshal of a string cannot fail
		panic(err)
	}
	return string(literal)
}
