package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	keyModules   = "modules"
	keyMetadata  = "plugin_metadata"
	keyInstalled = "installed_plugins"
)

// MarshalJSON writes the managed fields together with any preserved ones.
func (s State) MarshalJSON() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(s.extra)+3)
	for k, v := range s.extra {
		doc[k] = v
	}

	modules := s.Modules
	if modules == nil {
		modules = []Entry{}
	}
	metadata := s.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	installed := s.Installed
	if installed == nil {
		installed = map[string]map[string]string{}
	}

	for key, v := range map[string]any{keyModules: modules, keyMetadata: metadata, keyInstalled: installed} {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", key, err)
		}
		doc[key] = raw
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads the managed fields and keeps the rest verbatim.
func (s *State) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	next := State{
		Metadata:  map[string]string{},
		Installed: map[string]map[string]string{},
		extra:     map[string][]byte{},
	}
	for k, raw := range doc {
		var err error
		switch k {
		case keyModules:
			err = json.Unmarshal(raw, &next.Modules)
		case keyMetadata:
			err = json.Unmarshal(raw, &next.Metadata)
		case keyInstalled:
			err = json.Unmarshal(raw, &next.Installed)
		default:
			next.extra[k] = append([]byte(nil), raw...)
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
	}
	if next.Metadata == nil {
		next.Metadata = map[string]string{}
	}
	if next.Installed == nil {
		next.Installed = map[string]map[string]string{}
	}
	*s = next
	return nil
}

// Store is the on-disk registry file for one platform.
type Store struct {
	path  string
	State State
}

// FileName returns the registry file name for a platform.
func FileName(platform string) string {
	return platform + ".json"
}

// Load reads the registry at path. A missing file yields an empty registry.
func Load(path string) (*Store, error) {
	st := &Store{path: path, State: State{}.Clone()}

	// #nosec G304 - path is derived from the configured project root
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	if err := json.Unmarshal(data, &st.State); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}
	return st, nil
}

// Path returns the registry file location.
func (s *Store) Path() string { return s.path }

// Save rewrites the whole registry file atomically.
func (s *Store) Save() error {
	data, err := Encode(s.State)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary registry file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to replace registry file: %w", err)
	}
	return nil
}

// Encode renders the state as the indented document Save writes.
func Encode(s State) ([]byte, error) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal registry: %w", err)
	}
	return append(out, '\n'), nil
}
