package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/plugsmith/internal/plugin"
)

func fooPlugin() *plugin.Info {
	return &plugin.Info{
		PluginID:      "com.example.foo",
		PluginVersion: "1.0.0",
		Directory:     "/tmp/foo",
		Common: plugin.Section{
			JSModules: []plugin.JSModule{{Src: "www/foo.js", Name: "bar", Clobbers: []string{"window.bar"}}},
		},
	}
}

func encode(t *testing.T, s State) string {
	t.Helper()
	b, err := Encode(s)
	require.NoError(t, err)
	return string(b)
}

func TestEntriesForSingleModule(t *testing.T) {
	entries := EntriesFor(fooPlugin(), "electron")
	require.Equal(t, []Entry{{
		File:     "plugins/com.example.foo/www/foo.js",
		ID:       "com.example.foo.bar",
		PluginID: "com.example.foo",
		Clobbers: []string{"window.bar"},
	}}, entries)
	require.Equal(t, []string{"plugins/com.example.foo/www/foo.js"}, FilesFor(fooPlugin(), "electron"))
}

func TestAddModulesIntoEmptyRegistry(t *testing.T) {
	p := fooPlugin()
	s := AddModules(State{}, p.ID(), p.Version(), EntriesFor(p, "electron"))

	require.Len(t, s.Modules, 1)
	require.Equal(t, "com.example.foo.bar", s.Modules[0].ID)
	require.Equal(t, map[string]string{"com.example.foo": "1.0.0"}, s.Metadata)
}

func TestAddModulesIsIdempotent(t *testing.T) {
	p := fooPlugin()
	entries := EntriesFor(p, "electron")

	once := AddModules(State{}, p.ID(), p.Version(), entries)
	twice := AddModules(once, p.ID(), p.Version(), entries)

	require.Len(t, twice.Modules, 1)
	require.Equal(t, encode(t, once), encode(t, twice))
}

func TestAddModulesDeduplicatesWithinBatch(t *testing.T) {
	e := Entry{File: "plugins/p/a.js", ID: "p.a", PluginID: "p"}
	s := AddModules(State{}, "p", "1", []Entry{e, e})
	require.Len(t, s.Modules, 1)
}

func TestAddModulesDoesNotMutateInput(t *testing.T) {
	base := AddModules(State{}, "a", "1", []Entry{{File: "plugins/a/a.js", ID: "a.a", PluginID: "a"}})
	before := encode(t, base)
	_ = AddModules(base, "b", "2", []Entry{{File: "plugins/b/b.js", ID: "b.b", PluginID: "b"}})
	_ = RemoveModules(base, "a", []string{"plugins/a/a.js"})
	require.Equal(t, before, encode(t, base))
}

func TestRemoveThenAddRoundTrip(t *testing.T) {
	other := Entry{File: "plugins/other/x.js", ID: "other.x", PluginID: "other", Runs: true}
	p := fooPlugin()
	s := AddModules(State{}, "other", "0.1.0", []Entry{other})
	s = AddModules(s, p.ID(), p.Version(), EntriesFor(p, "electron"))
	before := encode(t, s)

	removed := RemoveModules(s, p.ID(), FilesFor(p, "electron"))
	require.Len(t, removed.Modules, 1)
	require.NotContains(t, removed.Metadata, p.ID())

	restored := AddModules(removed, p.ID(), p.Version(), EntriesFor(p, "electron"))
	require.Equal(t, before, encode(t, restored))
}

func TestRemoveModulesWithoutEntriesIsNoop(t *testing.T) {
	s := AddModules(State{}, "other", "0.1.0", []Entry{{File: "plugins/other/x.js", ID: "other.x", PluginID: "other"}})
	before := encode(t, s)

	after := RemoveModules(s, "com.example.none", nil)
	require.Equal(t, before, encode(t, after))
}

func TestRemoveModulesLeavesUnderivableEntries(t *testing.T) {
	p := fooPlugin()
	s := AddModules(State{}, p.ID(), p.Version(), EntriesFor(p, "electron"))

	// The plugin's module list changed on disk after install.
	p.Common.JSModules = []plugin.JSModule{{Src: "www/renamed.js"}}
	s = RemoveModules(s, p.ID(), FilesFor(p, "electron"))

	require.Len(t, s.Modules, 1)
	require.Equal(t, "plugins/com.example.foo/www/foo.js", s.Modules[0].File)
	require.Empty(t, s.Metadata)
}

func TestInstalledVariables(t *testing.T) {
	vars := map[string]string{"API_KEY": "x"}
	s := SetInstalled(State{}, "p", vars)
	vars["API_KEY"] = "mutated"
	require.Equal(t, "x", s.Installed["p"]["API_KEY"])

	s = ClearInstalled(s, "p")
	require.NotContains(t, s.Installed, "p")
}

func TestByPlugin(t *testing.T) {
	s := AddModules(State{}, "a", "1", []Entry{
		{File: "plugins/a/1.js", PluginID: "a"},
		{File: "plugins/a/2.js", PluginID: "a"},
	})
	s = AddModules(s, "b", "1", []Entry{{File: "plugins/b/1.js", PluginID: "b"}})

	groups := s.ByPlugin()
	require.Len(t, groups["a"], 2)
	require.Len(t, groups["b"], 1)
}

func TestStoreLoadMissingFile(t *testing.T) {
	st, err := Load(filepath.Join(t.TempDir(), "electron.json"))
	require.NoError(t, err)
	require.Empty(t, st.State.Modules)
	require.NotNil(t, st.State.Metadata)
}

func TestStoreSaveAndLoadPreservesUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName("electron"))
	require.NoError(t, os.WriteFile(path, []byte(`{
  "prepare_queue": {"installed": [], "uninstalled": []},
  "modules": [],
  "plugin_metadata": {}
}`), 0o600))

	st, err := Load(path)
	require.NoError(t, err)

	p := fooPlugin()
	st.State = AddModules(st.State, p.ID(), p.Version(), EntriesFor(p, "electron"))
	require.NoError(t, st.Save())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"prepare_queue"`)
	require.Contains(t, string(raw), `"pluginId": "com.example.foo"`)
	require.NotContains(t, string(raw), `"merges"`)
	require.NotContains(t, string(raw), `"runs"`)

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, encode(t, st.State), encode(t, reloaded.State))
}

func TestStoreLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "electron.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestStoreSaveFailsOnUnwritableTarget(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	st := &Store{path: filepath.Join(blocker, "electron.json"), State: State{}}
	require.Error(t, st.Save())
}
