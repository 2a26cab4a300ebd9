// Package platform is the entry point for installing plugins into one
// platform project. AddPlugin and RemovePlugin run a plugin's items as a
// single rollback-capable batch and, once the batch commits, bring the module
// registry, the runtime manifest and the config-change tracker in line with
// what is on disk.
//
// Calls against the same project must be serialized by the caller.
package platform

import (
	"context"
	"path/filepath"

	"git.home.luguber.info/inful/plugsmith/internal/actions"
	"git.home.luguber.info/inful/plugsmith/internal/config"
	"git.home.luguber.info/inful/plugsmith/internal/events"
	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/plugsmith/internal/installer"
	"git.home.luguber.info/inful/plugsmith/internal/metrics"
	"git.home.luguber.info/inful/plugsmith/internal/munge"
	"git.home.luguber.info/inful/plugsmith/internal/pluginlist"
	"git.home.luguber.info/inful/plugsmith/internal/project"
	"git.home.luguber.info/inful/plugsmith/internal/registry"
	"git.home.luguber.info/inful/plugsmith/internal/retry"
	"git.home.luguber.info/inful/plugsmith/internal/storage"
)

// Locations are the well-known paths of a platform project.
type Locations struct {
	Root         string
	Www          string
	PlatformWww  string
	PluginsDir   string
	RegistryFile string
	PackageJSON  string
	MungeFile    string
}

// NewLocations derives the project layout under root for platform.
func NewLocations(root, platform string) Locations {
	return Locations{
		Root:         root,
		Www:          filepath.Join(root, "www"),
		PlatformWww:  filepath.Join(root, "platform_www"),
		PluginsDir:   filepath.Join(root, installer.PluginsDirName),
		RegistryFile: filepath.Join(root, registry.FileName(platform)),
		PackageJSON:  filepath.Join(root, project.FileName),
		MungeFile:    filepath.Join(root, munge.FileName),
	}
}

// WebRoot returns the web root selected by usePlatformWww.
func (l Locations) WebRoot(usePlatformWww bool) string {
	if usePlatformWww {
		return l.PlatformWww
	}
	return l.Www
}

// Info describes the platform.
type Info struct {
	Name      string
	Version   string
	Root      string
	Locations Locations
}

// InstallOptions are the per-call options of AddPlugin and RemovePlugin.
type InstallOptions struct {
	// Variables substitute $NAME references in config changes.
	Variables map[string]string
	// PlatformVersion defaults to the platform's configured version.
	PlatformVersion string
	// UsePlatformWww targets platform_www instead of www for modules,
	// assets and the manifest.
	UsePlatformWww bool
}

// API installs plugins into one platform project.
type API struct {
	name      string
	version   string
	locations Locations

	manifestFile string
	wrapper      pluginlist.Wrapper
	retry        retry.Policy
	defaults     InstallOptions

	backups  *storage.Backups
	journal  actions.Journal
	sink     events.Sink
	recorder metrics.Recorder
}

// Option configures an API.
type Option func(*API)

// WithBackups replaces the filesystem backup store.
func WithBackups(b *storage.Backups) Option {
	return func(a *API) { a.backups = b }
}

// WithJournal records every action-stack transaction.
func WithJournal(j actions.Journal) Option {
	return func(a *API) { a.journal = j }
}

// WithEventSink receives plugin lifecycle events.
func WithEventSink(s events.Sink) Option {
	return func(a *API) { a.sink = s }
}

// WithRecorder receives operation metrics.
func WithRecorder(r metrics.Recorder) Option {
	return func(a *API) { a.recorder = r }
}

// WithWrapper swaps the manifest wrapper.
func WithWrapper(w pluginlist.Wrapper) Option {
	return func(a *API) { a.wrapper = w }
}

// WithRetryPolicy overrides the registry write retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(a *API) { a.retry = p }
}

// New builds the API for the platform project described by cfg.
func New(cfg *config.Config, opts ...Option) (*API, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("configuration is required").Build()
	}
	root := cfg.PlatformRoot()
	if root == "" {
		return nil, ferrors.ConfigError("platform root is not configured").Build()
	}
	policy, err := cfg.RetryPolicy()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid registry retry policy").Build()
	}

	a := &API{
		name:         cfg.Platform.Name,
		version:      cfg.Platform.Version,
		locations:    NewLocations(root, cfg.Platform.Name),
		manifestFile: cfg.Manifest.FileName,
		wrapper:      pluginlist.DefineWrapper{ModuleName: cfg.Manifest.ModuleName},
		retry:        policy,
		defaults: InstallOptions{
			Variables:      cfg.Install.Variables,
			UsePlatformWww: cfg.Install.UsePlatformWww,
		},
		sink:     events.LogSink{},
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.backups == nil {
		store, err := storage.NewFSStore(cfg.Resolve(cfg.Backups.Path))
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "open backup store").
				WithContext("path", cfg.Backups.Path).
				Build()
		}
		a.backups = storage.NewBackups(store)
	}
	return a, nil
}

// Info reports the platform name, version and locations.
func (a *API) Info() Info {
	return Info{Name: a.name, Version: a.version, Root: a.locations.Root, Locations: a.locations}
}

// Locations returns the project layout.
func (a *API) Locations() Locations { return a.locations }

// Modules reads the module registry.
func (a *API) Modules() (registry.State, error) {
	store, err := a.loadRegistry()
	if err != nil {
		return registry.State{}, err
	}
	return store.State, nil
}

// RegenerateManifest rewrites the runtime manifest from the registry and
// returns the written path.
func (a *API) RegenerateManifest(ctx context.Context, usePlatformWww bool) (string, error) {
	store, err := a.loadRegistry()
	if err != nil {
		return "", err
	}
	path, err := a.writeManifest(store.State, usePlatformWww)
	if err != nil {
		a.recorder.IncOperationResult(metrics.OpManifest, metrics.ResultFailed)
		return "", err
	}
	a.recorder.IncOperationResult(metrics.OpManifest, metrics.ResultSuccess)
	a.emit(ctx, events.Event{Type: events.ManifestWritten, Platform: a.name, Path: path, Modules: len(store.State.Modules)})
	return path, nil
}

func (a *API) loadRegistry() (*registry.Store, error) {
	store, err := registry.Load(a.locations.RegistryFile)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRegistry, "failed to load module registry").
			WithContext("path", a.locations.RegistryFile).
			Build()
	}
	return store, nil
}

func (a *API) writeManifest(state registry.State, usePlatformWww bool) (string, error) {
	path, err := pluginlist.Generate(state, a.locations.WebRoot(usePlatformWww), a.manifestFile, a.wrapper)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write module manifest").
			WithContext("dir", a.locations.WebRoot(usePlatformWww)).
			Build()
	}
	return path, nil
}
