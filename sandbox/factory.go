package sandbox

import (
	"go.uber.org/zap"

	"github.com/isdmx/wasmbox/config"
)

// NewExecutor resolves the runtime installation and creates the sandbox
// executor. Locating the runtime or the interpreter module fails here,
// before any code execution is attempted.
func NewExecutor(logger *zap.Logger, cfg *config.Config) (SandboxExecutor, error) {
	locator := NewLocator(cfg.Sandbox.RuntimePath, cfg.Sandbox.ModulePath)
	paths, err := locator.Locate()
	if err != nil {
		return nil, err
	}

	logger.Info("sandbox runtime located",
		zap.String("runtime", paths.Runtime),
		zap.String("module", paths.Module))

	executorConfig := Config{
		TimeoutSec:  cfg.Sandbox.TimeoutSec,
		MemoryMB:    cfg.Sandbox.MemoryMB,
		MaxOutputKB: cfg.Sandbox.MaxOutputKB,
	}

	return NewWasmExecutor(logger, &executorConfig, paths), nil
}
