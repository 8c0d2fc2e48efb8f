// Package main is the entry point for the wasmbox MCP server.
//
// The wasmbox server executes untrusted Python code inside a
// WASI-constrained WebAssembly sandbox: each call spawns a fresh
// wasmtime process hosting a prebuilt RustPython module with no
// filesystem or network capabilities beyond loading the module. The
// server exposes plain execution and marshalled function calls as MCP
// tools over stdio or HTTP transports.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
