// Package pluginlist renders the runtime module manifest the packaged
// application loads at startup.
//
// Rendering is split in two: the entry list and metadata are serialized to
// JSON, then a Wrapper turns that JSON into program source.
package pluginlist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/plugsmith/internal/registry"
)

const (
	// DefaultFileName is the manifest file written into the web root.
	DefaultFileName = "cordova_plugins.js"

	// DefaultModuleName is the module id the manifest defines.
	DefaultModuleName = "cordova/plugin_list"
)

// Wrapper turns serialized entries and metadata into the manifest artifact.
type Wrapper interface {
	Wrap(entries, metadata []byte) []byte
}

// DefineWrapper emits a cordova.define module whose export is the entry
// list with a metadata property attached.
type DefineWrapper struct {
	ModuleName string
}

// Wrap implements Wrapper.
func (w DefineWrapper) Wrap(entries, metadata []byte) []byte {
	name := w.ModuleName
	if name == "" {
		name = DefaultModuleName
	}
	quoted, _ := json.Marshal(name) // marshalling a string cannot fail
	var b bytes.Buffer
	fmt.Fprintf(&b, "cordova.define(%s, function (require, exports, module) {\n", quoted)
	b.WriteString("  module.exports = ")
	b.Write(entries)
	b.WriteString(";\n\n")
	b.WriteString("  module.exports.metadata =\n")
	b.WriteString("  // TOP OF METADATA\n")
	b.Write(metadata)
	b.WriteString(";\n")
	b.WriteString("  // BOTTOM OF METADATA\n")
	b.WriteString("});\n")
	return b.Bytes()
}

// Render serializes entries and metadata and wraps them. The output depends
// only on its inputs; encoding/json sorts metadata keys.
func Render(entries []registry.Entry, metadata map[string]string, w Wrapper) ([]byte, error) {
	if entries == nil {
		entries = []registry.Entry{}
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	if w == nil {
		w = DefineWrapper{}
	}

	entryJSON, err := json.MarshalIndent(entries, "  ", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal module entries: %w", err)
	}
	metaJSON, err := json.MarshalIndent(metadata, "  ", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plugin metadata: %w", err)
	}
	return w.Wrap(entryJSON, append([]byte("  "), metaJSON...)), nil
}

// Write stores content as dir/fileName, creating dir when needed. The file is
// replaced in full.
func Write(dir, fileName string, content []byte) (string, error) {
	if fileName == "" {
		fileName = DefaultFileName
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create manifest directory: %w", err)
	}

	target := filepath.Join(dir, fileName)
	tempPath := target + ".tmp"
	if err := os.WriteFile(tempPath, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write temporary manifest: %w", err)
	}
	if err := os.Rename(tempPath, target); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to replace manifest: %w", err)
	}
	return target, nil
}

// Generate renders the registry state and writes it to dir.
func Generate(state registry.State, dir, fileName string, w Wrapper) (string, error) {
	content, err := Render(state.Modules, state.Metadata, w)
	if err != nil {
		return "", err
	}
	return Write(dir, fileName, content)
}
