package platform

import (
	"bytes"
	"context"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"git.home.luguber.info/inful/plugsmith/internal/actions"
	"git.home.luguber.info/inful/plugsmith/internal/events"
	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/plugsmith/internal/installer"
	"git.home.luguber.info/inful/plugsmith/internal/logfields"
	"git.home.luguber.info/inful/plugsmith/internal/metrics"
	"git.home.luguber.info/inful/plugsmith/internal/munge"
	"git.home.luguber.info/inful/plugsmith/internal/plugin"
	"git.home.luguber.info/inful/plugsmith/internal/project"
	"git.home.luguber.info/inful/plugsmith/internal/registry"
)

// PackageNameVar is the install variable defaulted from the project name.
const PackageNameVar = "PACKAGE_NAME"

// AddPlugin installs every item of desc for this platform. Items are applied
// source files and frameworks first, then assets, then js-modules. A failing
// item rolls back the ones applied before it and nothing else is touched.
// After the batch commits, the project handle is written, the config changes
// are recorded and the registry and manifest gain the plugin's modules.
func (a *API) AddPlugin(ctx context.Context, desc plugin.Descriptor, opts *InstallOptions) error {
	start := time.Now()
	if err := checkDescriptor(desc); err != nil {
		return err
	}
	id := desc.ID()
	o := a.normalize(opts)

	store, tracker, handle, err := a.open()
	if err != nil {
		return a.fail(ctx, metrics.OpAdd, desc, "", metrics.ResultFailed, err, start)
	}

	stack := a.newStack(id)
	a.push(ctx, stack, desc, a.target(o, handle), actions.OpInstall)
	if err := stack.Process(ctx); err != nil {
		return a.fail(ctx, metrics.OpAdd, desc, stack.TxnID(), processResult(err), err, start)
	}

	if err := handle.Write(); err != nil {
		return a.fail(ctx, metrics.OpAdd, desc, stack.TxnID(), metrics.ResultFailed, projectError(handle, err), start)
	}

	if o.Variables[PackageNameVar] == "" {
		if name := handle.Name(); name != "" {
			o.Variables[PackageNameVar] = name
		}
	}
	if err := tracker.AddPluginChanges(desc, a.name, o.Variables).SaveAll(); err != nil {
		return a.fail(ctx, metrics.OpAdd, desc, stack.TxnID(), metrics.ResultFailed, mungeError(err), start)
	}

	state := registry.AddModules(store.State, id, desc.Version(), registry.EntriesFor(desc, a.name))
	state = registry.SetInstalled(state, id, o.Variables)
	store.State = state
	if err := a.saveRegistry(ctx, store); err != nil {
		return a.fail(ctx, metrics.OpAdd, desc, stack.TxnID(), metrics.ResultFailed, err, start)
	}
	path, err := a.writeManifest(state, o.UsePlatformWww)
	if err != nil {
		return a.fail(ctx, metrics.OpAdd, desc, stack.TxnID(), metrics.ResultFailed, err, start)
	}

	a.succeed(ctx, metrics.OpAdd, events.Event{
		Type:     events.PluginAdded,
		PluginID: id,
		Version:  desc.Version(),
		TxnID:    stack.TxnID(),
		Path:     path,
		Modules:  len(registry.FilesFor(desc, a.name)),
	}, len(state.Metadata), start)
	return nil
}

// RemovePlugin is the inverse of AddPlugin: every item is uninstalled with its
// install as the rollback step, so a failed removal leaves the plugin fully
// installed. On success the plugin's config changes, registry entries and
// <root>/Plugins/<id> directory are removed. When the registry does not
// change, neither it nor the manifest is rewritten.
func (a *API) RemovePlugin(ctx context.Context, desc plugin.Descriptor, opts *InstallOptions) error {
	start := time.Now()
	if err := checkDescriptor(desc); err != nil {
		return err
	}
	id := desc.ID()
	o := a.normalize(opts)

	store, tracker, handle, err := a.open()
	if err != nil {
		return a.fail(ctx, metrics.OpRemove, desc, "", metrics.ResultFailed, err, start)
	}
	// Config fragments were substituted with the install-time variables.
	if vars, ok := store.State.Installed[id]; ok {
		o.Variables = maps.Clone(vars)
	}

	stack := a.newStack(id)
	a.push(ctx, stack, desc, a.target(o, handle), actions.OpUninstall)
	if err := stack.Process(ctx); err != nil {
		return a.fail(ctx, metrics.OpRemove, desc, stack.TxnID(), processResult(err), err, start)
	}

	if err := handle.Write(); err != nil {
		return a.fail(ctx, metrics.OpRemove, desc, stack.TxnID(), metrics.ResultFailed, projectError(handle, err), start)
	}
	if err := tracker.RemovePluginChanges(desc, a.name, o.Variables).SaveAll(); err != nil {
		return a.fail(ctx, metrics.OpRemove, desc, stack.TxnID(), metrics.ResultFailed, mungeError(err), start)
	}

	before, err := registry.Encode(store.State)
	if err != nil {
		return a.fail(ctx, metrics.OpRemove, desc, stack.TxnID(), metrics.ResultFailed, ferrors.WrapError(err, ferrors.CategoryInternal, "encode registry").Build(), start)
	}
	state := registry.RemoveModules(store.State, id, registry.FilesFor(desc, a.name))
	state = registry.ClearInstalled(state, id)
	// Entries are matched by the paths the descriptor declares now; anything
	// it no longer declares stays behind.
	if left := state.ByPlugin()[id]; len(left) > 0 {
		slog.Warn("Registry entries left behind for removed plugin",
			logfields.PluginID(id),
			logfields.Count(len(left)),
			slog.String("first_file", left[0].File))
	}
	after, err := registry.Encode(state)
	if err != nil {
		return a.fail(ctx, metrics.OpRemove, desc, stack.TxnID(), metrics.ResultFailed, ferrors.WrapError(err, ferrors.CategoryInternal, "encode registry").Build(), start)
	}

	var path string
	if !bytes.Equal(before, after) {
		store.State = state
		if err := a.saveRegistry(ctx, store); err != nil {
			return a.fail(ctx, metrics.OpRemove, desc, stack.TxnID(), metrics.ResultFailed, err, start)
		}
		if path, err = a.writeManifest(state, o.UsePlatformWww); err != nil {
			return a.fail(ctx, metrics.OpRemove, desc, stack.TxnID(), metrics.ResultFailed, err, start)
		}
	} else {
		slog.Debug("Registry unchanged, manifest left as is", logfields.PluginID(id))
	}

	leftover := filepath.Join(a.locations.PluginsDir, id)
	if err := os.RemoveAll(leftover); err != nil {
		err = ferrors.WrapError(err, ferrors.CategoryFileSystem, "remove plugin directory").
			WithContext("path", leftover).
			Build()
		return a.fail(ctx, metrics.OpRemove, desc, stack.TxnID(), metrics.ResultFailed, err, start)
	}

	a.succeed(ctx, metrics.OpRemove, events.Event{
		Type:     events.PluginRemoved,
		PluginID: id,
		Version:  desc.Version(),
		TxnID:    stack.TxnID(),
		Path:     path,
		Modules:  len(state.Modules),
	}, len(state.Metadata), start)
	return nil
}

func checkDescriptor(desc plugin.Descriptor) error {
	if desc == nil {
		return ferrors.WrapError(plugin.ErrNoDescriptor, ferrors.CategoryValidation, "plugin descriptor is required").Build()
	}
	if info, ok := desc.(*plugin.Info); ok {
		if info == nil {
			return ferrors.WrapError(plugin.ErrNoDescriptor, ferrors.CategoryValidation, "plugin descriptor is required").Build()
		}
		if err := info.Validate(); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryValidation, "invalid plugin descriptor").
				WithContext("plugin_id", info.PluginID).
				Build()
		}
	}
	return nil
}

// normalize merges opts over the configured defaults without mutating opts.
func (a *API) normalize(opts *InstallOptions) InstallOptions {
	o := InstallOptions{UsePlatformWww: a.defaults.UsePlatformWww}
	if opts != nil {
		o = *opts
	}
	vars := maps.Clone(a.defaults.Variables)
	if vars == nil {
		vars = map[string]string{}
	}
	if opts != nil {
		maps.Copy(vars, opts.Variables)
	}
	o.Variables = vars
	if o.PlatformVersion == "" {
		o.PlatformVersion = a.version
	}
	return o
}

// open reads the persistent state an operation mutates. It runs before any
// action so a corrupt registry or project file fails the call untouched.
func (a *API) open() (*registry.Store, *munge.Tracker, *project.Handle, error) {
	store, err := a.loadRegistry()
	if err != nil {
		return nil, nil, nil, err
	}
	tracker, err := munge.Load(a.locations.MungeFile)
	if err != nil {
		return nil, nil, nil, mungeError(err)
	}
	handle, err := project.Open(a.locations.PackageJSON)
	if err != nil {
		return nil, nil, nil, ferrors.WrapError(err, ferrors.CategoryProject, "open project").
			WithContext("path", a.locations.PackageJSON).
			Build()
	}
	return store, tracker, handle, nil
}

func (a *API) target(o InstallOptions, handle *project.Handle) installer.Target {
	return installer.Target{
		Root:            a.locations.Root,
		Web:             a.locations.WebRoot(o.UsePlatformWww),
		Variables:       o.Variables,
		PlatformVersion: o.PlatformVersion,
		Project:         handle,
		Backups:         a.backups,
	}
}

func (a *API) newStack(pluginID string) *actions.Stack {
	opts := []actions.Option{actions.WithPluginID(pluginID)}
	if a.journal != nil {
		opts = append(opts, actions.WithJournal(a.journal))
	}
	return actions.NewStack(opts...)
}

// push queues one action per item. Items without a handler are reported and
// skipped.
func (a *API) push(ctx context.Context, stack *actions.Stack, desc plugin.Descriptor, t installer.Target, op actions.Op) {
	id, dir := desc.ID(), desc.Dir()
	for _, item := range items(desc, a.name) {
		h, ok := installer.Lookup(item.Kind())
		if !ok {
			slog.Warn("Unrecognized item type, skipping",
				logfields.PluginID(id),
				logfields.ItemType(string(item.Kind())),
				logfields.Item(item.Describe()))
			a.recorder.IncItemSkipped(string(item.Kind()))
			a.emit(ctx, events.Event{Type: events.ItemSkipped, PluginID: id, Platform: a.name, Item: item.Describe()})
			continue
		}
		install := func(ctx context.Context) error { return h.Install(ctx, t, item, dir, id) }
		uninstall := func(ctx context.Context) error { return h.Uninstall(ctx, t, item, id) }
		if op == actions.OpInstall {
			stack.Push(actions.New(id, item, op, install, uninstall))
		} else {
			stack.Push(actions.New(id, item, op, uninstall, install))
		}
	}
}

func items(desc plugin.Descriptor, platform string) []plugin.Item {
	out := slices.Clone(desc.FilesAndFrameworks(platform))
	for _, as := range desc.Assets(platform) {
		out = append(out, as)
	}
	for _, m := range desc.JSModules(platform) {
		out = append(out, m)
	}
	return out
}

// saveRegistry persists the registry, retrying per the policy. The batch has
// already committed, so exhaustion is reported but not rolled back.
func (a *API) saveRegistry(ctx context.Context, store *registry.Store) error {
	err := a.retry.Do(context.WithoutCancel(ctx), store.Save, func(n int, err error) {
		a.recorder.IncRegistryRetry()
		slog.Warn("Registry write failed, retrying",
			logfields.Path(store.Path()),
			logfields.Step(n),
			logfields.Error(err))
	})
	if err == nil {
		return nil
	}
	a.recorder.IncRegistryRetryExhausted()
	return ferrors.WrapError(err, ferrors.CategoryRegistry, "failed to persist module registry").
		Fatal().
		Immediate().
		WithContext("path", store.Path()).
		WithContext("retries", a.retry.MaxRetries).
		Build()
}

func (a *API) succeed(ctx context.Context, op metrics.Operation, e events.Event, installed int, start time.Time) {
	a.recorder.ObserveOperationDuration(op, time.Since(start))
	a.recorder.IncOperationResult(op, metrics.ResultSuccess)
	a.recorder.SetInstalledPlugins(installed)
	e.Platform = a.name
	a.emit(ctx, e)
	slog.Info("Plugin "+string(op)+" complete",
		logfields.PluginID(e.PluginID),
		logfields.Version(e.Version),
		logfields.TxnID(e.TxnID),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
}

func processResult(err error) metrics.ResultLabel {
	if ferrors.HasCategory(err, ferrors.CategoryCanceled) {
		return metrics.ResultCanceled
	}
	return metrics.ResultRolledBack
}

func (a *API) fail(ctx context.Context, op metrics.Operation, desc plugin.Descriptor, txnID string, result metrics.ResultLabel, err error, start time.Time) error {
	a.recorder.ObserveOperationDuration(op, time.Since(start))
	a.recorder.IncOperationResult(op, result)
	a.emit(ctx, events.Event{
		Type:     events.PluginFailed,
		PluginID: desc.ID(),
		Version:  desc.Version(),
		Platform: a.name,
		TxnID:    txnID,
		Error:    err.Error(),
	})
	return err
}

// emit delivers an event; sink failures never fail the operation.
func (a *API) emit(ctx context.Context, e events.Event) {
	if a.sink == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if err := a.sink.Emit(context.WithoutCancel(ctx), e); err != nil {
		slog.Warn("Failed to emit event", slog.String("event", string(e.Type)), logfields.Error(err))
	}
}

func projectError(h *project.Handle, err error) error {
	return ferrors.WrapError(err, ferrors.CategoryProject, "failed to write project file").
		WithContext("path", h.Path()).
		Build()
}

func mungeError(err error) error {
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to update config changes").Build()
}
