package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/wasmbox/config"
	"github.com/isdmx/wasmbox/sandbox"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config      *config.Config
	logger      *zap.Logger
	sandboxExec sandbox.SandboxExecutor
	fs          sandbox.FileSystem
	mcpServer   *server.MCPServer
}

// executeCodeResponse is the JSON payload returned by the execute_code tool
type executeCodeResponse struct {
	Stdout       string `json:"stdout"`
	Stderr       string `json:"stderr"`
	ExitCode     int    `json:"exit_code"`
	TimedOut     bool   `json:"timed_out"`
	ArtifactsTar string `json:"artifacts_tar,omitempty"`
}

// callFunctionResponse extends executeCodeResponse with the decoded call
// outcome: the return value on success, or the exception description.
type callFunctionResponse struct {
	executeCodeResponse
	Status string         `json:"status"`
	Result any            `json:"result,omitempty"`
	Error  *callException `json:"error,omitempty"`
}

type callException struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, sandboxExec sandbox.SandboxExecutor) (*MCPServer, error) {
	s := &MCPServer{
		config:      cfg,
		logger:      logger,
		sandboxExec: sandboxExec,
		fs:          &sandbox.RealFileSystem{},
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.String("sandbox.runtime_path", s.config.Sandbox.RuntimePath),
		zap.String("sandbox.module_path", s.config.Sandbox.ModulePath),
		zap.Int("sandbox.timeout_sec", s.config.Sandbox.TimeoutSec),
		zap.Int("sandbox.memory_mb", s.config.Sandbox.MemoryMB),
		zap.Int("sandbox.max_output_kb", s.config.Sandbox.MaxOutputKB),
		zap.Int("sandbox.max_artifact_size_mb", s.config.Sandbox.MaxArtifactSizeMB),
	)

	// Create the MCP server
	s.mcpServer = server.NewMCPServer("wasmbox-executor", "A WASI-sandboxed code execution server")

	s.registerExecuteCodeTool()
	s.registerCallFunctionTool()

	return s, nil
}

// registerExecuteCodeTool registers the execute_code tool
func (s *MCPServer) registerExecuteCodeTool() {
	tool := mcp.Tool{
		Name:        "execute_code",
		Description: "Execute untrusted Python code in a WASI sandbox and capture stdout, stderr, and the exit code",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "User-provided source code",
				},
				"timeout_sec": map[string]any{
					"type":        "integer",
					"description": "Per-call timeout in seconds (optional)",
				},
				"workdir_tar": map[string]any{
					"type":        "string",
					"description": "Base64-encoded tar.gz of initial working directory (optional)",
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteCode)
}

// registerCallFunctionTool registers the call_function tool
func (s *MCPServer) registerCallFunctionTool() {
	tool := mcp.Tool{
		Name:        "call_function",
		Description: "Define untrusted Python code in a WASI sandbox, call one of its functions with JSON arguments, and decode the return value or exception",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "User-provided source code defining the function",
				},
				"function_name": map[string]any{
					"type":        "string",
					"description": "Name of the function to call",
				},
				"args": map[string]any{
					"type":        "array",
					"description": "Positional arguments, any JSON values (optional)",
				},
				"kwargs": map[string]any{
					"type":        "object",
					"description": "Keyword arguments, JSON values by name (optional)",
				},
				"timeout_sec": map[string]any{
					"type":        "integer",
					"description": "Per-call timeout in seconds (optional)",
				},
			},
			Required: []string{"code", "function_name"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleCallFunction)
}

// handleExecuteCode handles the execute_code tool
func (s *MCPServer) handleExecuteCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	req, cleanup, err := s.buildExecuteRequest(code, request)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	s.logger.Info("executing code in sandbox",
		zap.Bool("has_workdir", req.Workdir != ""))

	result, err := s.sandboxExec.Execute(ctx, req)
	if err != nil {
		s.logger.Error("sandbox execution failed", zap.Error(err))
		return errorResult(fmt.Sprintf("Execution failed: %v", err)), nil
	}

	response := executeCodeResponse{
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		ExitCode: result.ExitCode,
		TimedOut: result.TimedOut,
	}

	if req.Workdir != "" {
		artifacts, archiveErr := s.archiveArtifacts(req.Workdir)
		if archiveErr != nil {
			return errorResult(fmt.Sprintf("Execution failed: %v", archiveErr)), nil
		}
		response.ArtifactsTar = artifacts
	}

	s.logger.Info("code execution completed",
		zap.Int("exit_code", result.ExitCode),
		zap.Bool("timed_out", result.TimedOut),
		zap.Int("stdout_len", len(result.Stdout)),
		zap.Int("stderr_len", len(result.Stderr)))

	return jsonResult(response)
}

// handleCallFunction handles the call_function tool
func (s *MCPServer) handleCallFunction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	functionName, err := request.RequireString("function_name")
	if err != nil {
		return nil, fmt.Errorf("function_name parameter is required: %w", err)
	}

	spec := sandbox.CallSpec{Function: functionName}
	arguments := request.GetArguments()
	if rawArgs, ok := arguments["args"]; ok {
		args, isList := rawArgs.([]any)
		if !isList {
			return nil, fmt.Errorf("args parameter must be an array")
		}
		spec.Args = args
	}
	if rawKwargs, ok := arguments["kwargs"]; ok {
		kwargs, isMap := rawKwargs.(map[string]any)
		if !isMap {
			return nil, fmt.Errorf("kwargs parameter must be an object")
		}
		spec.Kwargs = kwargs
	}

	req, cleanup, err := s.buildExecuteRequest(code, request)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	s.logger.Info("calling function in sandbox",
		zap.String("function", functionName),
		zap.Int("args", len(spec.Args)),
		zap.Int("kwargs", len(spec.Kwargs)))

	result, err := s.sandboxExec.ExecuteCall(ctx, req, spec)
	if err != nil {
		s.logger.Error("sandbox call failed",
			zap.Error(err),
			zap.String("function", functionName))
		return errorResult(fmt.Sprintf("Call failed: %v", err)), nil
	}

	response := callFunctionResponse{
		executeCodeResponse: executeCodeResponse{
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
			ExitCode: result.ExitCode,
			TimedOut: result.TimedOut,
		},
		Status: string(result.Status),
		Result: result.Value,
	}
	if result.Raised != nil {
		response.Error = &callException{Type: result.Raised.Type, Message: result.Raised.Message}
	}

	s.logger.Info("function call completed",
		zap.String("function", functionName),
		zap.String("status", string(result.Status)),
		zap.Int("exit_code", result.ExitCode))

	return jsonResult(response)
}

// buildExecuteRequest assembles the engine request from tool parameters,
// extracting the optional workdir tar into a temp directory. The cleanup
// function removes that directory and is safe to call unconditionally.
func (s *MCPServer) buildExecuteRequest(code string, request mcp.CallToolRequest) (sandbox.ExecuteRequest, func(), error) {
	req := sandbox.ExecuteRequest{Code: code}
	cleanup := func() {}

	if timeoutSec := request.GetInt("timeout_sec", 0); timeoutSec > 0 {
		req.Timeout = time.Duration(timeoutSec) * time.Second
	}

	workdirTarStr := request.GetString("workdir_tar", "")
	if workdirTarStr == "" {
		return req, cleanup, nil
	}

	workdirTar, err := base64.StdEncoding.DecodeString(workdirTarStr)
	if err != nil {
		return req, cleanup, fmt.Errorf("failed to decode workdir_tar: %w", err)
	}

	workdir, err := s.fs.MkdirTemp("", "wasmbox-exec-*")
	if err != nil {
		return req, cleanup, fmt.Errorf("failed to create workdir: %w", err)
	}
	cleanup = func() {
		if rmErr := s.fs.RemoveAll(workdir); rmErr != nil {
			s.logger.Error("failed to remove workdir", zap.String("path", workdir), zap.Error(rmErr))
		}
	}

	if err := sandbox.ExtractWorkdirTar(s.fs, workdirTar, workdir); err != nil {
		cleanup()
		return req, func() {}, fmt.Errorf("failed to extract workdir_tar: %w", err)
	}

	req.Workdir = workdir
	return req, cleanup, nil
}

// archiveArtifacts packs the working directory after a run, enforcing
// the configured size cap, and returns it base64-encoded.
func (s *MCPServer) archiveArtifacts(workdir string) (string, error) {
	artifactsTar, err := sandbox.ArchiveWorkdir(workdir)
	if err != nil {
		return "", fmt.Errorf("failed to create artifacts tar: %w", err)
	}

	maxBytes := s.config.Sandbox.MaxArtifactSizeMB * sandbox.BytesPerMB
	if len(artifactsTar) > maxBytes {
		return "", fmt.Errorf("artifacts size exceeds limit: %d bytes > %d bytes", len(artifactsTar), maxBytes)
	}

	return base64.StdEncoding.EncodeToString(artifactsTar), nil
}

func jsonResult(response any) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool response: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(payload),
			},
		},
	}, nil
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: message,
			},
		},
		IsError: true,
	}
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
