// Package sandbox provides WASI-sandboxed execution of untrusted code.
//
// The sandbox package implements the execution engine: it locates the
// wasmtime runtime and the bundled interpreter module, builds an
// invocation that delivers source code over stdin, drives the runtime
// subprocess under a timeout, and decodes captured output into typed
// results. A second protocol layer marshals a single function call's
// arguments and return value through the sandbox boundary as JSON
// framed by private sentinel tokens on stdout.
//
// Every invocation spawns a fresh runtime process with no filesystem
// or network capabilities beyond loading the module (plus an optional
// explicit working-directory grant). Processes are never reused or
// pooled.
//
// Usage:
//
//	executor, err := sandbox.NewExecutor(logger, cfg)
//	result, err := executor.Execute(ctx, sandbox.ExecuteRequest{
//	    Code: "print('Hello, World!')",
//	})
package sandbox
