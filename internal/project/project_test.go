package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func writePackage(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	h, err := Open(path)
	require.NoError(t, err)
	require.Empty(t, h.Name())
	require.False(t, h.Dirty())

	// Nothing to write yet.
	require.NoError(t, h.Write())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestOpenRejectsInvalidJSON(t *testing.T) {
	_, err := Open(writePackage(t, "{oops"))
	require.Error(t, err)
}

func TestDependencies(t *testing.T) {
	h, err := Open(writePackage(t, `{"name": "com.example.app", "version": "1.0.0", "dependencies": {"electron-log": "^5.0.0"}}`))
	require.NoError(t, err)
	require.Equal(t, "com.example.app", h.Name())
	require.Equal(t, "1.0.0", h.Version())

	spec, ok := h.Dependency("electron-log")
	require.True(t, ok)
	require.Equal(t, "^5.0.0", spec)

	require.NoError(t, h.SetDependency("@scope/lib.js", "file:Plugins/p/lib"))
	spec, ok = h.Dependency("@scope/lib.js")
	require.True(t, ok)
	require.Equal(t, "file:Plugins/p/lib", spec)
	require.True(t, h.Dirty())

	require.Equal(t, map[string]string{
		"electron-log":  "^5.0.0",
		"@scope/lib.js": "file:Plugins/p/lib",
	}, h.Dependencies())

	// The dotted name is a single key, not a nested path.
	require.Equal(t, "file:Plugins/p/lib", gjson.GetBytes(h.Bytes(), `dependencies.\@scope/lib\.js`).String())

	require.NoError(t, h.RemoveDependency("@scope/lib.js"))
	_, ok = h.Dependency("@scope/lib.js")
	require.False(t, ok)
	require.NoError(t, h.RemoveDependency("never-added"))
}

func TestSetThenRemoveRestoresDocument(t *testing.T) {
	h, err := Open(writePackage(t, `{"name": "app"}`))
	require.NoError(t, err)
	before := h.Bytes()

	require.NoError(t, h.SetDependency("left-pad", "^1.3.0"))
	require.NoError(t, h.SetScript("prebuild:com.example.p", "node hooks/prebuild.js"))
	require.NotEqual(t, before, h.Bytes())

	require.NoError(t, h.RemoveScript("prebuild:com.example.p"))
	require.NoError(t, h.RemoveDependency("left-pad"))
	require.Equal(t, string(before), string(h.Bytes()))
}

func TestExistingEmptyObjectIsKept(t *testing.T) {
	h, err := Open(writePackage(t, `{"name": "app", "dependencies": {}}`))
	require.NoError(t, err)
	before := h.Bytes()

	require.NoError(t, h.SetDependency("left-pad", "^1.3.0"))
	require.NoError(t, h.RemoveDependency("left-pad"))
	require.Equal(t, string(before), string(h.Bytes()))
}

func TestScripts(t *testing.T) {
	h, err := Open(writePackage(t, `{"scripts": {"start": "electron ."}}`))
	require.NoError(t, err)

	require.NoError(t, h.SetScript("postinstall:p", "node x.js"))
	cmd, ok := h.Script("postinstall:p")
	require.True(t, ok)
	require.Equal(t, "node x.js", cmd)

	cmd, ok = h.Script("start")
	require.True(t, ok)
	require.Equal(t, "electron .", cmd)
}

func TestWritePersistsAtomically(t *testing.T) {
	path := writePackage(t, `{"name":"app"}`)
	h, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, h.SetDependency("left-pad", "^1.3.0"))
	require.NoError(t, h.Write())
	require.False(t, h.Dirty())

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	reopened, err := Open(path)
	require.NoError(t, err)
	spec, ok := reopened.Dependency("left-pad")
	require.True(t, ok)
	require.Equal(t, "^1.3.0", spec)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "\n  \"name\": \"app\"")
}

func TestSetSameValueIsNotAnEdit(t *testing.T) {
	h, err := Open(writePackage(t, `{"dependencies": {"a": "1"}}`))
	require.NoError(t, err)
	require.NoError(t, h.SetDependency("a", "1"))
	require.False(t, h.Dirty())
}

func TestDropEmpty(t *testing.T) {
	h, err := Open(writePackage(t, `{"name":"app","scripts":{},"dependencies":{"a":"1"}}`))
	require.NoError(t, err)
	require.True(t, h.Has("scripts"))
	require.False(t, h.Has("devDependencies"))

	require.NoError(t, h.DropEmpty("dependencies"))
	require.False(t, h.Dirty())
	require.NoError(t, h.DropEmpty("scripts"))
	require.True(t, h.Dirty())
	require.False(t, h.Has("scripts"))
	require.NoError(t, h.DropEmpty("missing"))
}

func TestEmptySection(t *testing.T) {
	h, err := Open(writePackage(t, `{"name": "app", "scripts": {}, "dependencies": {"a": "1"}}`))
	require.NoError(t, err)
	require.True(t, h.Empty("scripts"))
	require.True(t, h.Empty("devDependencies"))
	require.False(t, h.Empty("dependencies"))
}
