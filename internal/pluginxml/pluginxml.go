// Package pluginxml reads a plugin's plugin.xml into a plugin.Info.
package pluginxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/plugsmith/internal/plugin"
)

// FileName is the descriptor file inside a plugin directory.
const FileName = "plugin.xml"

// element is a generic XML node; the plugin.xml schema is open-ended and
// item order inside a platform section matters.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Inner    string     `xml:",innerxml"`
	Children []element  `xml:",any"`
}

func (e element) attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func (e element) flag(name string) bool {
	b, err := strconv.ParseBool(e.attr(name))
	return err == nil && b
}

func (e element) text() string {
	return strings.TrimSpace(e.Inner)
}

// Elements inside <platform> that carry no installable item.
var ignored = map[string]bool{
	"config-file": true, // collected as config changes
	"edit-config": true,
	"preference":  true,
	"hook":        true,
	"dependency":  true,
	"info":        true,
	"engines":     true,
}

// Load reads <dir>/plugin.xml. A missing file is reported as
// plugin.ErrNoDescriptor and a structurally invalid one as
// plugin.ErrInvalidDescriptor.
func Load(dir string) (*plugin.Info, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve plugin directory: %w", err)
	}
	path := filepath.Join(abs, FileName)
	// #nosec G304 - path is the descriptor inside the requested plugin directory
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", plugin.ErrNoDescriptor, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := Parse(f, abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

// Parse decodes a plugin.xml document for a plugin located at dir.
func Parse(r io.Reader, dir string) (*plugin.Info, error) {
	var root element
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %w", plugin.ErrInvalidDescriptor, err)
	}
	if root.XMLName.Local != "plugin" {
		return nil, fmt.Errorf("%w: root element is <%s>, want <plugin>", plugin.ErrInvalidDescriptor, root.XMLName.Local)
	}

	info := &plugin.Info{
		PluginID:      root.attr("id"),
		PluginVersion: root.attr("version"),
		Directory:     dir,
		Platforms:     map[string]plugin.Section{},
	}
	for _, child := range root.Children {
		switch child.XMLName.Local {
		case "name":
			info.Name = child.text()
		case "platform":
			name := child.attr("name")
			if name == "" {
				return nil, fmt.Errorf("%w: <platform> without name", plugin.ErrInvalidDescriptor)
			}
			sec := info.Platforms[name]
			readSection(&sec, child.Children, true)
			info.Platforms[name] = sec
		default:
			readSection(&info.Common, []element{child}, false)
		}
	}

	if err := info.Validate(); err != nil {
		return nil, err
	}
	return info, nil
}

// readSection appends the items among elems to sec. Unrecognised elements
// become plugin.UnknownItem only inside a platform section.
func readSection(sec *plugin.Section, elems []element, inPlatform bool) {
	for _, e := range elems {
		tag := e.XMLName.Local
		switch tag {
		case "js-module":
			sec.JSModules = append(sec.JSModules, jsModule(e))
		case "asset":
			sec.Assets = append(sec.Assets, plugin.Asset{Src: e.attr("src"), Target: e.attr("target")})
		case "source-file":
			sec.Files = append(sec.Files, sourceFile(e))
		case "framework":
			sec.Files = append(sec.Files, plugin.Framework{Src: e.attr("src"), Custom: e.flag("custom"), Spec: e.attr("spec")})
		case "config-file":
			sec.ConfigChanges = append(sec.ConfigChanges, plugin.ConfigChange{
				Target: e.attr("target"),
				Parent: e.attr("parent"),
				XML:    e.text(),
			})
		default:
			if inPlatform && !ignored[tag] {
				sec.Files = append(sec.Files, plugin.UnknownItem{Tag: tag, Src: e.attr("src")})
			}
		}
	}
}

func jsModule(e element) plugin.JSModule {
	m := plugin.JSModule{Src: e.attr("src"), Name: e.attr("name")}
	for _, c := range e.Children {
		switch c.XMLName.Local {
		case "clobbers":
			m.Clobbers = append(m.Clobbers, c.attr("target"))
		case "merges":
			m.Merges = append(m.Merges, c.attr("target"))
		case "runs":
			m.Runs = true
		}
	}
	return m
}

// sourceFile reads a <source-file>; nested <hook type="..." command="..."/>
// elements declare native build hooks.
func sourceFile(e element) plugin.SourceFile {
	s := plugin.SourceFile{Src: e.attr("src"), TargetDir: e.attr("target-dir")}
	for _, c := range e.Children {
		if c.XMLName.Local != "hook" {
			continue
		}
		if s.Hooks == nil {
			s.Hooks = map[string]string{}
		}
		s.Hooks[c.attr("type")] = c.attr("command")
	}
	return s
}
