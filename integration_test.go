package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/wasmbox/config"
	"github.com/isdmx/wasmbox/logger"
	"github.com/isdmx/wasmbox/mcpserver"
	"github.com/isdmx/wasmbox/sandbox"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Transport: "stdio",
			HTTPPort:  8080,
		},
		Sandbox: config.SandboxConfig{
			TimeoutSec:        5,
			MemoryMB:          128,
			MaxOutputKB:       512,
			MaxArtifactSizeMB: 5,
		},
		Logging: config.LoggingConfig{
			Mode:  "development",
			Level: "info",
		},
	}
}

// scriptedRunner stands in for the wasmtime subprocess, which is not
// installed in CI.
type scriptedRunner struct {
	stdout   string
	stderr   string
	exitCode int
}

func (r scriptedRunner) RunCommand(_ context.Context, _ string, _ []string) (string, string, int, error) {
	return r.stdout, r.stderr, r.exitCode, nil
}

// TestIntegrationConfigLoggerSandbox tests the integration between config, logger, and sandbox packages
func TestIntegrationConfigLoggerSandbox(t *testing.T) {
	t.Run("ConfigAndLoggerIntegration", func(t *testing.T) {
		cfg := testConfig()
		require.NoError(t, cfg.Validate())

		testLogger, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
		require.NoError(t, err)
		require.NotNil(t, testLogger)

		testLogger.Info("Integration test started")
		_ = testLogger.Sync()
	})

	t.Run("FactoryFailsFastWithoutRuntime", func(t *testing.T) {
		cfg := testConfig()
		cfg.Sandbox.RuntimePath = "/nonexistent/path/to/wasmtime"

		testLogger := zaptest.NewLogger(t)
		_, err := sandbox.NewExecutor(testLogger, cfg)
		var notFound *sandbox.RuntimeNotFoundError
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("FullMCPIntegration", func(t *testing.T) {
		cfg := testConfig()

		mcpLogger, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
		require.NoError(t, err)

		executor := sandbox.NewWasmExecutor(
			mcpLogger,
			&sandbox.Config{
				TimeoutSec:  cfg.Sandbox.TimeoutSec,
				MemoryMB:    cfg.Sandbox.MemoryMB,
				MaxOutputKB: cfg.Sandbox.MaxOutputKB,
			},
			sandbox.RuntimePaths{Runtime: "/usr/bin/wasmtime", Module: "/opt/wasmbox/rustpython.wasm"},
			sandbox.WithCommandRunner(scriptedRunner{stdout: "Hello, world!\n"}),
		)

		server, err := mcpserver.New(cfg, mcpLogger, executor)
		require.NoError(t, err)
		require.NotNil(t, server)
		require.NotNil(t, server.GetMCPServer())

		result, err := executor.Execute(context.Background(), sandbox.ExecuteRequest{
			Code: `print("Hello, world!")`,
		})
		require.NoError(t, err)
		assert.Equal(t, "Hello, world!\n", result.Stdout)
		assert.Equal(t, 0, result.ExitCode)
	})
}
