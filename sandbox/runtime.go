package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Filename and location constants for the runtime and interpreter module
const (
	RuntimeExecName       = "wasmtime"
	RuntimeInstallDir     = ".wasmtime"
	InterpreterModuleName = "rustpython.wasm"
	ModuleInstallDir      = ".wasmbox"
)

// RuntimePaths holds the resolved locations of the isolated-execution
// host runtime and the prebuilt interpreter module.
type RuntimePaths struct {
	Runtime string
	Module  string
}

// Locator resolves RuntimePaths from explicit configuration or the
// conventional install locations. Lookups are read-only.
type Locator struct {
	runtimePath string
	modulePath  string
	fs          FileSystem
	lookPath    func(string) (string, error)
	userHome    func() (string, error)
	executable  func() (string, error)
}

// LocatorOption defines a functional option for Locator
type LocatorOption func(*Locator)

// WithLocatorFileSystem sets the FileSystem for Locator
func WithLocatorFileSystem(fs FileSystem) LocatorOption {
	return func(l *Locator) {
		l.fs = fs
	}
}

// WithLocatorLookPath sets the PATH lookup function for Locator
func WithLocatorLookPath(lookPath func(string) (string, error)) LocatorOption {
	return func(l *Locator) {
		l.lookPath = lookPath
	}
}

// WithLocatorUserHome sets the home directory resolver for Locator
func WithLocatorUserHome(userHome func() (string, error)) LocatorOption {
	return func(l *Locator) {
		l.userHome = userHome
	}
}

// WithLocatorExecutable sets the server executable resolver for Locator
func WithLocatorExecutable(executable func() (string, error)) LocatorOption {
	return func(l *Locator) {
		l.executable = executable
	}
}

// NewLocator creates a Locator. Empty runtimePath or modulePath enables
// resolution from the conventional install locations.
func NewLocator(runtimePath, modulePath string, opts ...LocatorOption) *Locator {
	locator := &Locator{
		runtimePath: runtimePath,
		modulePath:  modulePath,
		fs:          &RealFileSystem{},
		lookPath:    exec.LookPath,
		userHome:    os.UserHomeDir,
		executable:  os.Executable,
	}

	for _, opt := range opts {
		opt(locator)
	}

	return locator
}

// Locate resolves both paths, failing fast when either is absent.
// The runtime is resolved from the explicit path, then the wasmtime
// installer's default location, then $PATH. The module is resolved from
// the explicit path, then the install directory under $HOME, then the
// directory of the server executable.
func (l *Locator) Locate() (RuntimePaths, error) {
	runtime, err := l.locateRuntime()
	if err != nil {
		return RuntimePaths{}, err
	}

	module, err := l.locateModule()
	if err != nil {
		return RuntimePaths{}, err
	}

	return RuntimePaths{Runtime: runtime, Module: module}, nil
}

func (l *Locator) locateRuntime() (string, error) {
	if l.runtimePath != "" {
		exists, err := l.fs.FileExists(l.runtimePath)
		if err != nil {
			return "", fmt.Errorf("failed to stat configured runtime path: %w", err)
		}
		if !exists {
			return "", &RuntimeNotFoundError{Hint: fmt.Sprintf("configured path %s does not exist", l.runtimePath)}
		}
		return l.runtimePath, nil
	}

	if home, err := l.userHome(); err == nil {
		installed := filepath.Join(home, RuntimeInstallDir, "bin", RuntimeExecName)
		if exists, statErr := l.fs.FileExists(installed); statErr == nil && exists {
			return installed, nil
		}
	}

	if found, err := l.lookPath(RuntimeExecName); err == nil {
		return found, nil
	}

	return "", &RuntimeNotFoundError{
		Hint: "install it with: curl -sSf https://wasmtime.dev/install.sh | bash",
	}
}

func (l *Locator) locateModule() (string, error) {
	if l.modulePath != "" {
		exists, err := l.fs.FileExists(l.modulePath)
		if err != nil {
			return "", fmt.Errorf("failed to stat configured module path: %w", err)
		}
		if !exists {
			return "", &InterpreterModuleMissingError{Path: l.modulePath}
		}
		return l.modulePath, nil
	}

	candidates := make([]string, 0, 2)
	if home, err := l.userHome(); err == nil {
		candidates = append(candidates, filepath.Join(home, ModuleInstallDir, InterpreterModuleName))
	}
	if exe, err := l.executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), InterpreterModuleName))
	}

	for _, candidate := range candidates {
		if exists, err := l.fs.FileExists(candidate); err == nil && exists {
			return candidate, nil
		}
	}

	fallback := filepath.Join("$HOME", ModuleInstallDir, InterpreterModuleName)
	if len(candidates) > 0 {
		fallback = candidates[0]
	}
	return "", &InterpreterModuleMissingError{Path: fallback}
}
