package pluginlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/plugsmith/internal/registry"
)

var fooEntries = []registry.Entry{{
	File:     "plugins/com.example.foo/www/foo.js",
	ID:       "com.example.foo.bar",
	PluginID: "com.example.foo",
	Clobbers: []string{"window.bar"},
}}

func TestRenderDefineWrapper(t *testing.T) {
	out, err := Render(fooEntries, map[string]string{"com.example.foo": "1.0.0"}, nil)
	require.NoError(t, err)

	want := `cordova.define("cordova/plugin_list", function (require, exports, module) {
  module.exports = [
      {
          "file": "plugins/com.example.foo/www/foo.js",
          "id": "com.example.foo.bar",
          "pluginId": "com.example.foo",
          "clobbers": [
              "window.bar"
          ]
      }
  ];

  module.exports.metadata =
  // TOP OF METADATA
  {
      "com.example.foo": "1.0.0"
  };
  // BOTTOM OF METADATA
});
`
	require.Equal(t, want, string(out))
}

func TestRenderEmpty(t *testing.T) {
	out, err := Render(nil, nil, DefineWrapper{ModuleName: "app/plugins"})
	require.NoError(t, err)
	s := string(out)
	require.True(t, strings.HasPrefix(s, `cordova.define("app/plugins",`))
	require.Contains(t, s, "module.exports = [];")
	require.Contains(t, s, "  {};\n")
}

func TestDefineWrapperEscapesModuleName(t *testing.T) {
	out, err := Render(nil, nil, DefineWrapper{ModuleName: `it's "x"`})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), `cordova.define("it's \"x\"", function`))
}

func TestRenderIsDeterministic(t *testing.T) {
	meta := map[string]string{"z": "1", "a": "2", "m": "3"}
	first, err := Render(fooEntries, meta, nil)
	require.NoError(t, err)
	for range 10 {
		again, err := Render(fooEntries, meta, nil)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
	s := string(first)
	require.Less(t, strings.Index(s, `"a"`), strings.Index(s, `"m"`))
	require.Less(t, strings.Index(s, `"m"`), strings.Index(s, `"z"`))
}

type jsonWrapper struct{}

func (jsonWrapper) Wrap(entries, metadata []byte) []byte {
	return []byte(`{"modules":` + string(entries) + `,"metadata":` + string(metadata) + "}")
}

func TestRenderCustomWrapper(t *testing.T) {
	out, err := Render(fooEntries, nil, jsonWrapper{})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), `{"modules":[`))
	require.NotContains(t, string(out), "cordova.define")
}

func TestGenerateWritesSingleTarget(t *testing.T) {
	root := t.TempDir()
	www := filepath.Join(root, "www")
	platformWww := filepath.Join(root, "platform_www")

	state := registry.AddModules(registry.State{}, "com.example.foo", "1.0.0", fooEntries)
	path, err := Generate(state, www, "", nil)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(www, DefaultFileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "com.example.foo.bar")

	_, err = os.Stat(platformWww)
	require.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(www)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
