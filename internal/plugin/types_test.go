package plugin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseItemKind(t *testing.T) {
	tests := []struct {
		tag   string
		want  ItemKind
		valid bool
	}{
		{"source-file", KindSourceFile, true},
		{"framework", KindFramework, true},
		{" asset ", KindAsset, true},
		{"js-module", KindJSModule, true},
		{"resource-file", ItemKind("resource-file"), false},
		{"", ItemKind(""), false},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, ok := ParseItemKind(tt.tag)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.valid, ok)
		})
	}
}

func TestItemKinds(t *testing.T) {
	items := []Item{SourceFile{Src: "a.c"}, Framework{Src: "x"}, Asset{Src: "a", Target: "b"}, JSModule{Src: "m.js"}}
	want := []ItemKind{KindSourceFile, KindFramework, KindAsset, KindJSModule}
	for i, it := range items {
		require.Equal(t, want[i], it.Kind())
		require.True(t, it.Kind().IsValid())
	}

	u := UnknownItem{Tag: "lib-file", Src: "lib.so"}
	require.False(t, u.Kind().IsValid())
	require.Equal(t, "lib-file lib.so", u.Describe())
}

func TestJSModuleNames(t *testing.T) {
	m := JSModule{Src: "www/foo.js", Name: "bar"}
	require.Equal(t, "com.example.p.bar", m.ModuleName("com.example.p"))
	require.Equal(t, "plugins/com.example.p/www/foo.js", m.RegistryFile("com.example.p"))

	unnamed := JSModule{Src: `www\sub\device.js`}
	require.Equal(t, "p.device", unnamed.ModuleName("p"))
	require.Equal(t, "plugins/p/www/sub/device.js", unnamed.RegistryFile("p"))

	jsonModule := JSModule{Src: "www/config.json"}
	require.Equal(t, "p.config", jsonModule.ModuleName("p"))
}

func TestConfigChangeKey(t *testing.T) {
	a := ConfigChange{Target: "config.xml", Parent: "/*", XML: "<x/>"}
	b := a
	require.Equal(t, a.Key(), b.Key())
	b.Parent = "/widget"
	require.NotEqual(t, a.Key(), b.Key())
}
