package plugin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleInfo() *Info {
	return &Info{
		PluginID:      "com.example.p",
		PluginVersion: "1.2.3",
		Directory:     "/plugins/p",
		Common: Section{
			Assets:    []Asset{{Src: "www/a.css", Target: "a.css"}},
			JSModules: []JSModule{{Src: "www/common.js"}},
		},
		Platforms: map[string]Section{
			"electron": {
				Files: []Item{
					Framework{Src: "left-pad", Spec: "^1.0.0"},
					SourceFile{Src: "src/electron/index.js"},
					UnknownItem{Tag: "lib-file", Src: "x.so"},
				},
				Assets:        []Asset{{Src: "www/e.css", Target: "e.css"}},
				JSModules:     []JSModule{{Src: "www/electron.js", Runs: true}},
				ConfigChanges: []ConfigChange{{Target: "config.xml", Parent: "/*", XML: "<feature/>"}},
			},
		},
	}
}

func TestInfoAccessors(t *testing.T) {
	info := sampleInfo()
	var d Descriptor = info

	require.Equal(t, "com.example.p", d.ID())
	require.Equal(t, "1.2.3", d.Version())
	require.Equal(t, "/plugins/p", d.Dir())

	files := d.FilesAndFrameworks("electron")
	require.Len(t, files, 3)
	require.Equal(t, KindFramework, files[0].Kind())
	require.Equal(t, KindSourceFile, files[1].Kind())

	require.Equal(t, []Asset{{Src: "www/a.css", Target: "a.css"}, {Src: "www/e.css", Target: "e.css"}}, d.Assets("electron"))
	mods := d.JSModules("electron")
	require.Len(t, mods, 2)
	require.Equal(t, "www/common.js", mods[0].Src)
	require.Len(t, d.ConfigChanges("electron"), 1)

	// Platforms without a section still see common items.
	require.Empty(t, d.FilesAndFrameworks("browser"))
	require.Len(t, d.Assets("browser"), 1)
	require.Len(t, d.JSModules("browser"), 1)
}

func TestInfoAccessorsReturnCopies(t *testing.T) {
	info := sampleInfo()
	mods := info.JSModules("electron")
	mods[0].Src = "changed.js"
	require.Equal(t, "www/common.js", info.Common.JSModules[0].Src)
}

func TestInfoValidate(t *testing.T) {
	require.NoError(t, sampleInfo().Validate())

	tests := []struct {
		name   string
		mutate func(*Info)
	}{
		{"missing id", func(i *Info) { i.PluginID = " " }},
		{"id with separator", func(i *Info) { i.PluginID = "../evil" }},
		{"missing dir", func(i *Info) { i.Directory = "" }},
		{"module without src", func(i *Info) { i.Common.JSModules = append(i.Common.JSModules, JSModule{Name: "x"}) }},
		{"asset without target", func(i *Info) {
			s := i.Platforms["electron"]
			s.Assets = []Asset{{Src: "a"}}
			i.Platforms["electron"] = s
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := sampleInfo()
			tt.mutate(info)
			err := info.Validate()
			require.Error(t, err)
			require.ErrorIs(t, err, ErrInvalidDescriptor)
		})
	}
}
