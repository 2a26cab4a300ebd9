// Package project is the handle installers use to mutate the generated
// application's package.json. Edits are made in memory and persisted once by
// Write after a batch succeeds.
package project

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// FileName is the project manifest the handle edits.
const FileName = "package.json"

// Handle is an open package.json. It is not safe for concurrent use.
type Handle struct {
	path  string
	doc   []byte
	dirty bool
	// created tracks top-level objects this handle introduced.
	created map[string]bool
}

// Open reads path. A missing file yields an empty document that Write will
// create.
func Open(path string) (*Handle, error) {
	// #nosec G304 - path is derived from the configured project root
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Handle{path: path, doc: []byte("{}"), created: map[string]bool{}}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s is not valid JSON", path)
	}
	return &Handle{path: path, doc: data, created: map[string]bool{}}, nil
}

// Path returns the file location.
func (h *Handle) Path() string { return h.path }

// Dir returns the project root containing the file.
func (h *Handle) Dir() string { return filepath.Dir(h.path) }

// Dirty reports whether there are unwritten edits.
func (h *Handle) Dirty() bool { return h.dirty }

// Name returns the package name, or "" when unset.
func (h *Handle) Name() string {
	return gjson.GetBytes(h.doc, "name").String()
}

// Version returns the package version, or "" when unset.
func (h *Handle) Version() string {
	return gjson.GetBytes(h.doc, "version").String()
}

// Dependency returns the version spec registered for name.
func (h *Handle) Dependency(name string) (string, bool) {
	r := gjson.GetBytes(h.doc, "dependencies."+escape(name))
	return r.String(), r.Exists()
}

// Dependencies returns all registered dependencies.
func (h *Handle) Dependencies() map[string]string {
	out := map[string]string{}
	gjson.GetBytes(h.doc, "dependencies").ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = v.String()
		return true
	})
	return out
}

// SetDependency registers name at spec.
func (h *Handle) SetDependency(name, spec string) error {
	return h.set("dependencies."+escape(name), spec)
}

// RemoveDependency unregisters name. Removing an absent dependency is a no-op.
func (h *Handle) RemoveDependency(name string) error {
	return h.delete("dependencies." + escape(name))
}

// Script returns the command registered under name.
func (h *Handle) Script(name string) (string, bool) {
	r := gjson.GetBytes(h.doc, "scripts."+escape(name))
	return r.String(), r.Exists()
}

// SetScript registers a package script.
func (h *Handle) SetScript(name, command string) error {
	return h.set("scripts."+escape(name), command)
}

// RemoveScript unregisters a package script.
func (h *Handle) RemoveScript(name string) error {
	return h.delete("scripts." + escape(name))
}

// Has reports whether the top-level key exists.
func (h *Handle) Has(key string) bool {
	return gjson.GetBytes(h.doc, escape(key)).Exists()
}

// Empty reports whether key is absent or an object without members.
func (h *Handle) Empty(key string) bool {
	r := gjson.GetBytes(h.doc, escape(key))
	return !r.Exists() || (r.IsObject() && len(r.Map()) == 0)
}

// DropEmpty deletes the top-level key when it holds an empty object.
func (h *Handle) DropEmpty(key string) error {
	r := gjson.GetBytes(h.doc, escape(key))
	if !r.IsObject() || len(r.Map()) > 0 {
		return nil
	}
	out, err := sjson.DeleteBytes(h.doc, escape(key))
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	h.doc = out
	h.dirty = true
	delete(h.created, key)
	return nil
}

// Bytes returns the current document as Write would persist it.
func (h *Handle) Bytes() []byte {
	return pretty.PrettyOptions(h.doc, &pretty.Options{Width: 80, Indent: "  "})
}

// Write persists pending edits atomically. Without edits it does nothing.
func (h *Handle) Write() error {
	if !h.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}

	tempPath := h.path + ".tmp"
	if err := os.WriteFile(tempPath, h.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write temporary %s: %w", FileName, err)
	}
	if err := os.Rename(tempPath, h.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("replace %s: %w", FileName, err)
	}
	h.dirty = false
	return nil
}

func (h *Handle) set(path, value string) error {
	if r := gjson.GetBytes(h.doc, path); r.Exists() && r.String() == value {
		return nil
	}
	top := topKey(path)
	if !gjson.GetBytes(h.doc, top).Exists() {
		h.created[top] = true
	}
	out, err := sjson.SetBytes(h.doc, path, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	h.doc = out
	h.dirty = true
	return nil
}

func (h *Handle) delete(path string) error {
	if !gjson.GetBytes(h.doc, path).Exists() {
		return nil
	}
	out, err := sjson.DeleteBytes(h.doc, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	h.doc = out
	h.dirty = true
	h.dropEmpty(topKey(path))
	return nil
}

// dropEmpty removes a top-level object this handle created once it is empty
// again, so an add followed by a remove leaves the document unchanged.
func (h *Handle) dropEmpty(key string) {
	if !h.created[key] {
		return
	}
	r := gjson.GetBytes(h.doc, key)
	if !r.IsObject() || len(r.Map()) > 0 {
		return
	}
	if out, err := sjson.DeleteBytes(h.doc, key); err == nil {
		h.doc = out
		delete(h.created, key)
	}
}

func topKey(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

// escape quotes characters that gjson and sjson treat as path syntax, so
// names like "@scope/pkg.js" address a single key.
func escape(key string) string {
	var b bytes.Buffer
	for _, r := range key {
		switch r {
		case '\\', '.', '*', '?', '|', '#', '@', '!', ':', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
