package fetch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/plugsmith/internal/workspace"
)

const descriptor = `<plugin id="org.example.echo" version="0.3.0">
  <js-module src="www/echo.js" name="echo"><clobbers target="echo" /></js-module>
</plugin>`

func seedRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "echo-plugin")
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	_, err = wt.Commit("seed", &git.CommitOptions{Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()}})
	require.NoError(t, err)
	return dir
}

func TestIsRemoteAndParseSource(t *testing.T) {
	require.True(t, IsRemote("https://example.com/org/echo.git"))
	require.True(t, IsRemote("git@example.com:org/echo.git"))
	require.False(t, IsRemote("./plugins/echo"))
	require.False(t, IsRemote("/abs/echo"))

	src, err := ParseSource(" https://example.com/org/echo.git#v1.2.0 ")
	require.NoError(t, err)
	require.Equal(t, Source{URL: "https://example.com/org/echo.git", Ref: "v1.2.0"}, src)
	require.Equal(t, "https://example.com/org/echo.git#v1.2.0", src.String())

	_, err = ParseSource("#main")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestDirName(t *testing.T) {
	a := Source{URL: "https://example.com/org/echo.git"}
	b := Source{URL: "https://example.com/org/echo.git", Ref: "dev"}
	require.Regexp(t, `^echo-[0-9a-f]{8}$`, a.DirName())
	require.NotEqual(t, a.DirName(), b.DirName())
	require.Equal(t, a.DirName(), Source{URL: "https://example.com/org/echo.git"}.DirName())
	require.Regexp(t, `^echo-`, Source{URL: "git@example.com:echo.git"}.DirName())
}

func TestFetchClonesAndParses(t *testing.T) {
	remote := seedRepo(t, map[string]string{"plugin.xml": descriptor, "www/echo.js": "module.exports = {};"})
	f := New(workspace.NewCache(filepath.Join(t.TempDir(), "cache")), 0)

	res, err := f.Fetch(t.Context(), Source{URL: remote})
	require.NoError(t, err)
	require.Equal(t, "org.example.echo", res.Plugin.ID())
	require.Equal(t, "0.3.0", res.Plugin.Version())
	require.Len(t, res.Commit, 40)
	require.FileExists(t, filepath.Join(res.Dir, "www", "echo.js"))

	again, err := f.Fetch(t.Context(), Source{URL: remote})
	require.NoError(t, err)
	require.Equal(t, res.Dir, again.Dir)
}

func TestFetchRejectsNonPlugin(t *testing.T) {
	remote := seedRepo(t, map[string]string{"README.md": "nothing here"})
	f := New(workspace.NewScratch(t.TempDir()), 0)

	_, err := f.Fetch(t.Context(), Source{URL: remote})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestFetchUnknownRef(t *testing.T) {
	remote := seedRepo(t, map[string]string{"plugin.xml": descriptor})
	f := New(workspace.NewScratch(t.TempDir()), 0)

	_, err := f.Fetch(t.Context(), Source{URL: remote, Ref: "no-such-ref"})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryGit))
}

func TestFetchAllKeepsOrderAndDeduplicates(t *testing.T) {
	remote := seedRepo(t, map[string]string{"plugin.xml": descriptor})
	f := New(workspace.NewCache(filepath.Join(t.TempDir(), "cache")), 0)

	srcs := []Source{{URL: remote}, {URL: remote}}
	results, err := f.FetchAll(t.Context(), srcs, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Same(t, results[0], results[1])

	_, err = f.FetchAll(t.Context(), []Source{{URL: remote}, {URL: filepath.Join(t.TempDir(), "missing")}}, 0)
	require.Error(t, err)
}
