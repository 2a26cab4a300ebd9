package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
)

const echoPlugin = `<plugin id="org.example.echo" version="0.3.0">
  <js-module src="www/echo.js" name="echo"><clobbers target="echo" /></js-module>
  <platform name="electron">
    <asset src="www/echo.css" target="css/echo.css" />
  </platform>
</plugin>`

type harness struct {
	dir    string
	config string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("PLUGSMITH_LOG_LEVEL", "error")
	dir := t.TempDir()
	return &harness{dir: dir, config: filepath.Join(dir, "plugsmith.yaml")}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cli := &CLI{}
	parser, err := kong.New(cli, kong.Vars{"version": "test"}, kong.Exit(func(int) {}))
	require.NoError(t, err)
	kctx, err := parser.Parse(append([]string{"-c", h.config}, args...))
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	err = kctx.Run(&Global{Out: &out}, cli)
	return out.String(), err
}

func (h *harness) writePlugin(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(h.dir, "plugins-src", "echo")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "www"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.xml"), []byte(echoPlugin), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "www", "echo.js"), []byte("module.exports = {};"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "www", "echo.css"), []byte("body{}"), 0o600))
	return dir
}

func TestInitRefusesOverwrite(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "init")
	require.NoError(t, err)
	require.Contains(t, out, "Wrote")
	require.FileExists(t, h.config)

	_, err = h.run(t, "init")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	_, err = h.run(t, "init", "--force")
	require.NoError(t, err)
}

func TestAddListHistoryRemove(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "init")
	require.NoError(t, err)
	src := h.writePlugin(t)

	out, err := h.run(t, "add", src, "--var", "API_KEY=abc")
	require.NoError(t, err)
	require.Equal(t, "Installed org.example.echo@0.3.0 for electron\n", out)

	www := filepath.Join(h.dir, "platforms", "electron", "www")
	require.FileExists(t, filepath.Join(www, "plugins", "org.example.echo", "www", "echo.js"))
	require.FileExists(t, filepath.Join(www, "css", "echo.css"))
	require.FileExists(t, filepath.Join(www, "cordova_plugins.js"))

	out, err = h.run(t, "list")
	require.NoError(t, err)
	require.Contains(t, out, "org.example.echo 0.3.0")
	require.Contains(t, out, "clobbers=echo")

	out, err = h.run(t, "list", "-m", "echo")
	require.NoError(t, err)
	require.Contains(t, out, "org.example.echo")

	out, err = h.run(t, "list", "-m", "zzz")
	require.NoError(t, err)
	require.Contains(t, out, "No plugins match")

	out, err = h.run(t, "list", "--json")
	require.NoError(t, err)
	require.Contains(t, out, `"pluginId": "org.example.echo"`)

	out, err = h.run(t, "history")
	require.NoError(t, err)
	require.Contains(t, out, "committed")
	require.Contains(t, out, "org.example.echo")
	txn := strings.Fields(out)[1]

	out, err = h.run(t, "history", "--txn", txn)
	require.NoError(t, err)
	require.Contains(t, out, "begin")
	require.Contains(t, out, "commit")

	_, err = h.run(t, "history", "--txn", "missing")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	out, err = h.run(t, "remove", src)
	require.NoError(t, err)
	require.Equal(t, "Removed org.example.echo from electron\n", out)
	require.NoFileExists(t, filepath.Join(www, "css", "echo.css"))

	out, err = h.run(t, "list")
	require.NoError(t, err)
	require.Equal(t, "No plugins installed\n", out)
}

func TestAddMissingDirectory(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "add", filepath.Join(h.dir, "nope"))
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
	require.Equal(t, 3, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestManifestCommands(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "init")
	require.NoError(t, err)

	out, err := h.run(t, "manifest")
	require.NoError(t, err)
	require.Contains(t, out, "cordova_plugins.js")

	project := filepath.Join(h.dir, "www")
	require.NoError(t, os.MkdirAll(project, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(project, "index.html"),
		[]byte(`<html><head><meta name="theme-color" content="#123456"></head></html>`), 0o600))

	out, err = h.run(t, "webmanifest")
	require.NoError(t, err)
	require.Contains(t, out, "Wrote")
	data, err := os.ReadFile(filepath.Join(h.dir, "platforms", "electron", "www", "manifest.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"theme_color": "#123456"`)
	require.Contains(t, string(data), `"name": "HelloPlugsmith"`)
}

func TestHistoryRequiresJournal(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.config, []byte("version: \"1\"\njournal:\n  enabled: false\n"), 0o600))
	_, err := h.run(t, "history")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}
