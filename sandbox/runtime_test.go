package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockFileSystem implements FileSystem for testing
type MockFileSystem struct {
	existing        map[string]bool
	mkdirTempResult string
	mkdirTempErr    error
	mkdirAllErrors  map[string]error
	writeFileErrors map[string]error
	writeFileData   map[string][]byte
	removeAllErrors map[string]error
	removedPaths    []string
}

func (m *MockFileSystem) MkdirTemp(_, _ string) (string, error) {
	if m.mkdirTempErr != nil {
		return "", m.mkdirTempErr
	}
	if m.mkdirTempResult != "" {
		return m.mkdirTempResult, nil
	}
	return "/tmp/test", nil
}

func (m *MockFileSystem) MkdirAll(path string, _ os.FileMode) error {
	if err, exists := m.mkdirAllErrors[path]; exists {
		return err
	}
	return nil
}

func (m *MockFileSystem) WriteFile(filename string, data []byte, _ os.FileMode) error {
	if err, exists := m.writeFileErrors[filename]; exists {
		return err
	}
	if m.writeFileData == nil {
		m.writeFileData = make(map[string][]byte)
	}
	m.writeFileData[filename] = data
	return nil
}

func (m *MockFileSystem) RemoveAll(path string) error {
	m.removedPaths = append(m.removedPaths, path)
	if err, exists := m.removeAllErrors[path]; exists {
		return err
	}
	return nil
}

func (m *MockFileSystem) FileExists(path string) (bool, error) {
	return m.existing[path], nil
}

func noLookPath(string) (string, error) {
	return "", errors.New("not in PATH")
}

func TestLocatorRuntime(t *testing.T) {
	home := filepath.Join("/home", "tester")
	homeFn := func() (string, error) { return home, nil }
	exeFn := func() (string, error) { return filepath.Join("/opt", "wasmbox", "server"), nil }
	installedRuntime := filepath.Join(home, RuntimeInstallDir, "bin", RuntimeExecName)
	installedModule := filepath.Join(home, ModuleInstallDir, InterpreterModuleName)

	t.Run("ExplicitPaths", func(t *testing.T) {
		fs := &MockFileSystem{existing: map[string]bool{
			"/usr/bin/wasmtime": true,
			"/opt/rp.wasm":      true,
		}}
		locator := NewLocator("/usr/bin/wasmtime", "/opt/rp.wasm",
			WithLocatorFileSystem(fs),
			WithLocatorLookPath(noLookPath),
			WithLocatorUserHome(homeFn),
			WithLocatorExecutable(exeFn),
		)

		paths, err := locator.Locate()
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/wasmtime", paths.Runtime)
		assert.Equal(t, "/opt/rp.wasm", paths.Module)
	})

	t.Run("ExplicitRuntimePathMissing", func(t *testing.T) {
		fs := &MockFileSystem{existing: map[string]bool{}}
		locator := NewLocator("/usr/bin/wasmtime", "",
			WithLocatorFileSystem(fs),
			WithLocatorLookPath(noLookPath),
			WithLocatorUserHome(homeFn),
			WithLocatorExecutable(exeFn),
		)

		_, err := locator.Locate()
		var notFound *RuntimeNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Contains(t, notFound.Hint, "/usr/bin/wasmtime")
	})

	t.Run("InstallDirPreferredOverPath", func(t *testing.T) {
		fs := &MockFileSystem{existing: map[string]bool{
			installedRuntime: true,
			installedModule:  true,
		}}
		locator := NewLocator("", "",
			WithLocatorFileSystem(fs),
			WithLocatorLookPath(func(string) (string, error) { return "/usr/local/bin/wasmtime", nil }),
			WithLocatorUserHome(homeFn),
			WithLocatorExecutable(exeFn),
		)

		paths, err := locator.Locate()
		require.NoError(t, err)
		assert.Equal(t, installedRuntime, paths.Runtime)
	})

	t.Run("FallsBackToPathLookup", func(t *testing.T) {
		fs := &MockFileSystem{existing: map[string]bool{installedModule: true}}
		locator := NewLocator("", "",
			WithLocatorFileSystem(fs),
			WithLocatorLookPath(func(name string) (string, error) {
				assert.Equal(t, RuntimeExecName, name)
				return "/usr/local/bin/wasmtime", nil
			}),
			WithLocatorUserHome(homeFn),
			WithLocatorExecutable(exeFn),
		)

		paths, err := locator.Locate()
		require.NoError(t, err)
		assert.Equal(t, "/usr/local/bin/wasmtime", paths.Runtime)
	})

	t.Run("RuntimeNowhere", func(t *testing.T) {
		fs := &MockFileSystem{existing: map[string]bool{}}
		locator := NewLocator("", "",
			WithLocatorFileSystem(fs),
			WithLocatorLookPath(noLookPath),
			WithLocatorUserHome(homeFn),
			WithLocatorExecutable(exeFn),
		)

		_, err := locator.Locate()
		var notFound *RuntimeNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Contains(t, notFound.Hint, "wasmtime.dev")
	})
}

func TestLocatorModule(t *testing.T) {
	home := filepath.Join("/home", "tester")
	homeFn := func() (string, error) { return home, nil }
	exeDir := filepath.Join("/opt", "wasmbox")
	exeFn := func() (string, error) { return filepath.Join(exeDir, "server"), nil }
	installedRuntime := filepath.Join(home, RuntimeInstallDir, "bin", RuntimeExecName)

	t.Run("ExplicitModulePathMissing", func(t *testing.T) {
		fs := &MockFileSystem{existing: map[string]bool{installedRuntime: true}}
		locator := NewLocator("", "/opt/rp.wasm",
			WithLocatorFileSystem(fs),
			WithLocatorLookPath(noLookPath),
			WithLocatorUserHome(homeFn),
			WithLocatorExecutable(exeFn),
		)

		_, err := locator.Locate()
		var missing *InterpreterModuleMissingError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "/opt/rp.wasm", missing.Path)
	})

	t.Run("ModuleFromHomeInstallDir", func(t *testing.T) {
		installedModule := filepath.Join(home, ModuleInstallDir, InterpreterModuleName)
		fs := &MockFileSystem{existing: map[string]bool{
			installedRuntime: true,
			installedModule:  true,
		}}
		locator := NewLocator("", "",
			WithLocatorFileSystem(fs),
			WithLocatorLookPath(noLookPath),
			WithLocatorUserHome(homeFn),
			WithLocatorExecutable(exeFn),
		)

		paths, err := locator.Locate()
		require.NoError(t, err)
		assert.Equal(t, installedModule, paths.Module)
	})

	t.Run("ModuleBesideExecutable", func(t *testing.T) {
		besideExe := filepath.Join(exeDir, InterpreterModuleName)
		fs := &MockFileSystem{existing: map[string]bool{
			installedRuntime: true,
			besideExe:        true,
		}}
		locator := NewLocator("", "",
			WithLocatorFileSystem(fs),
			WithLocatorLookPath(noLookPath),
			WithLocatorUserHome(homeFn),
			WithLocatorExecutable(exeFn),
		)

		paths, err := locator.Locate()
		require.NoError(t, err)
		assert.Equal(t, besideExe, paths.Module)
	})

	t.Run("ModuleNowhere", func(t *testing.T) {
		fs := &MockFileSystem{existing: map[string]bool{installedRuntime: true}}
		locator := NewLocator("", "",
			WithLocatorFileSystem(fs),
			WithLocatorLookPath(noLookPath),
			WithLocatorUserHome(homeFn),
			WithLocatorExecutable(exeFn),
		)

		_, err := locator.Locate()
		var missing *InterpreterModuleMissingError
		require.ErrorAs(t, err, &missing)
	})
}
