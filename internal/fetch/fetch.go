// Package fetch checks plugin sources out of git repositories so they can be
// installed like local plugin directories.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/plugsmith/internal/logfields"
	"git.home.luguber.info/inful/plugsmith/internal/plugin"
	"git.home.luguber.info/inful/plugsmith/internal/pluginxml"
	"git.home.luguber.info/inful/plugsmith/internal/workspace"
)

// DefaultConcurrency bounds parallel clones in FetchAll.
const DefaultConcurrency = 4

// Source is a git URL with an optional branch or tag, written "url#ref".
type Source struct {
	URL string
	Ref string
}

var remotePrefixes = []string{"https://", "http://", "ssh://", "git://", "file://", "git@"}

// IsRemote reports whether s names a git source rather than a local directory.
func IsRemote(s string) bool {
	for _, p := range remotePrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// ParseSource splits "url#ref".
func ParseSource(s string) (Source, error) {
	s = strings.TrimSpace(s)
	u, ref, _ := strings.Cut(s, "#")
	if u == "" {
		return Source{}, ferrors.ValidationError("empty plugin source").
			WithContext("source", s).
			UserAction().
			Build()
	}
	return Source{URL: u, Ref: ref}, nil
}

func (s Source) String() string {
	if s.Ref == "" {
		return s.URL
	}
	return s.URL + "#" + s.Ref
}

// DirName is the checkout directory name: the repository base name plus a
// short digest of the full source so different refs do not collide.
func (s Source) DirName() string {
	base := strings.TrimSuffix(path.Base(strings.TrimRight(strings.ReplaceAll(s.URL, ":", "/"), "/")), ".git")
	if base == "" || base == "." || base == "/" {
		base = "plugin"
	}
	sum := sha256.Sum256([]byte(s.String()))
	return base + "-" + hex.EncodeToString(sum[:4])
}

// Result describes one checked out plugin.
type Result struct {
	Source Source
	Dir    string
	Commit string
	Plugin *plugin.Info
}

// Fetcher clones sources into a workspace.
type Fetcher struct {
	ws    *workspace.Manager
	depth int

	mu sync.Mutex
}

// New returns a fetcher cloning into ws with the given shallow depth
// (0 clones full history).
func New(ws *workspace.Manager, depth int) *Fetcher {
	if depth < 0 {
		depth = 0
	}
	return &Fetcher{ws: ws, depth: depth}
}

// Fetch clones src, replacing any previous checkout of the same source, and
// parses the plugin descriptor at the repository root.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (*Result, error) {
	dir, err := f.prepare(src)
	if err != nil {
		return nil, err
	}

	slog.Info("Fetching plugin", logfields.URL(src.URL), slog.String("ref", src.Ref), logfields.Path(dir))
	repo, err := f.clone(ctx, dir, src)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, classify(src, err)
	}

	res := &Result{Source: src, Dir: dir}
	if head, herr := repo.Head(); herr == nil {
		res.Commit = head.Hash().String()
	}
	info, err := pluginxml.Load(dir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "fetched source is not a plugin").
			WithContext("url", src.URL).
			WithContext("path", dir).
			UserAction().
			Build()
	}
	res.Plugin = info
	slog.Info("Fetched plugin", logfields.PluginID(info.ID()), logfields.Version(info.Version()), slog.String("commit", shortHash(res.Commit)))
	return res, nil
}

// FetchAll fetches sources concurrently. Results keep the input order; the
// first failure cancels the remaining clones.
func (f *Fetcher) FetchAll(ctx context.Context, srcs []Source, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	results := make([]*Result, len(srcs))
	seen := make(map[string]int, len(srcs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, src := range srcs {
		if first, dup := seen[src.DirName()]; dup {
			slog.Debug("Skipping duplicate source", logfields.URL(src.String()), slog.Int("first", first))
			continue
		}
		seen[src.DirName()] = i
		g.Go(func() error {
			res, err := f.Fetch(gctx, src)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, src := range srcs {
		if results[i] == nil {
			results[i] = results[seen[src.DirName()]]
		}
	}
	return results, nil
}

func (f *Fetcher) prepare(src Source) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ws.Create(); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "create fetch workspace").Build()
	}
	dir, err := f.ws.Subdir(src.DirName())
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryInternal, "resolve checkout directory").Build()
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "remove previous checkout").
			WithContext("path", dir).
			Build()
	}
	return dir, nil
}

func (f *Fetcher) clone(ctx context.Context, dir string, src Source) (*git.Repository, error) {
	opts := &git.CloneOptions{URL: src.URL, Depth: f.depth, Tags: git.NoTags}
	if src.Ref == "" {
		return git.PlainCloneContext(ctx, dir, false, opts)
	}

	opts.SingleBranch = true
	opts.ReferenceName = plumbing.NewBranchReferenceName(src.Ref)
	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err == nil || !refMissing(err) {
		return repo, err
	}
	slog.Debug("Branch not found, trying tag", logfields.URL(src.URL), slog.String("ref", src.Ref))
	if rmErr := os.RemoveAll(dir); rmErr != nil {
		return nil, rmErr
	}
	opts.ReferenceName = plumbing.NewTagReferenceName(src.Ref)
	return git.PlainCloneContext(ctx, dir, false, opts)
}

func refMissing(err error) bool {
	var noMatch git.NoMatchingRefSpecError
	return errors.As(err, &noMatch) || errors.Is(err, plumbing.ErrReferenceNotFound)
}

func classify(src Source, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ferrors.WrapError(err, ferrors.CategoryCanceled, "fetch canceled").
			WithContext("url", src.URL).
			Build()
	case errors.Is(err, transport.ErrAuthenticationRequired), errors.Is(err, transport.ErrAuthorizationFailed):
		return ferrors.WrapError(err, ferrors.CategoryGit, "authentication failed").
			WithContext("url", src.URL).
			UserAction().
			Build()
	case errors.Is(err, transport.ErrRepositoryNotFound), errors.Is(err, transport.ErrEmptyRemoteRepository), refMissing(err):
		return ferrors.WrapError(err, ferrors.CategoryGit, "repository or ref not found").
			WithContext("url", src.URL).
			WithContext("ref", src.Ref).
			UserAction().
			Build()
	default:
		return ferrors.WrapError(err, ferrors.CategoryGit, fmt.Sprintf("clone %s", src)).
			WithContext("url", src.URL).
			Retryable().
			Build()
	}
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
