// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes
// the sandbox engine as tools. It uses the mark3labs/mcp-go library to
// handle the protocol details and provides two tools: execute_code for
// plain execution with stdout/stderr/exit-code capture, and
// call_function for marshalling a single function call's arguments and
// return value through the sandbox.
//
// The server supports both stdio and HTTP transports as configured by
// the application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, sandboxExecutor)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
