// Package webmanifest produces the web app manifest.json shipped in the
// platform's www directory.
package webmanifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/plugsmith/internal/config"
	"git.home.luguber.info/inful/plugsmith/internal/logfields"
)

// FileName is the manifest file name in both the project and platform www.
const FileName = "manifest.json"

const (
	DefaultBackgroundColor = "#FFF"
	DefaultDisplay         = "standalone"
	DefaultOrientation     = "any"
	DefaultStartURL        = "index.html"
)

// Manifest is the generated web app manifest.
type Manifest struct {
	BackgroundColor string `json:"background_color"`
	Display         string `json:"display"`
	Orientation     string `json:"orientation"`
	StartURL        string `json:"start_url"`
	Name            string `json:"name,omitempty"`
	ShortName       string `json:"short_name,omitempty"`
	Description     string `json:"description,omitempty"`
	Author          string `json:"author,omitempty"`
	ThemeColor      string `json:"theme_color,omitempty"`
}

// Build assembles a manifest from app settings. The theme color comes from
// the start page's <meta name="theme-color"> under projectWww, falling back
// to the configured status bar color.
func Build(app config.AppConfig, projectWww string) Manifest {
	m := Manifest{
		BackgroundColor: DefaultBackgroundColor,
		Display:         DefaultDisplay,
		Orientation:     DefaultOrientation,
		StartURL:        DefaultStartURL,
		Name:            app.Name,
		ShortName:       app.ShortName,
		Description:     app.Description,
		Author:          app.Author,
	}
	if app.BackgroundColor != "" {
		m.BackgroundColor = app.BackgroundColor
	}
	if o := strings.ToLower(app.Orientation); o == "landscape" || o == "portrait" {
		m.Orientation = o
	}
	if app.StartURL != "" {
		m.StartURL = app.StartURL
	}

	start := filepath.Join(projectWww, filepath.FromSlash(m.StartURL))
	// #nosec G304 - start page inside the project www
	if f, err := os.Open(start); err == nil {
		color, err := ThemeColor(f)
		_ = f.Close()
		if err != nil {
			slog.Warn("Failed to read theme color", logfields.Path(start), logfields.Error(err))
		}
		m.ThemeColor = color
	}
	if m.ThemeColor == "" {
		m.ThemeColor = app.StatusBarColor
	}
	return m
}

// ThemeColor returns the content of the first <meta name="theme-color">.
func ThemeColor(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse start page: %w", err)
	}

	var color string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "meta" && strings.EqualFold(getAttr(n, "name"), "theme-color") {
			color = strings.TrimSpace(getAttr(n, "content"))
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return color, nil
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// Generate writes <platformWww>/manifest.json. A manifest.json already present
// in projectWww is copied verbatim; otherwise one is built from app. The
// second result reports whether the file was copied.
func Generate(app config.AppConfig, projectWww, platformWww string) (string, bool, error) {
	target := filepath.Join(platformWww, FileName)
	src := filepath.Join(projectWww, FileName)

	// #nosec G304 - manifest inside the project www
	data, err := os.ReadFile(src)
	switch {
	case err == nil:
		slog.Debug("Copying project manifest", logfields.Path(src))
		return target, true, writeFile(target, data)
	case !errors.Is(err, fs.ErrNotExist):
		return "", false, fmt.Errorf("read %s: %w", src, err)
	}

	data, err = json.MarshalIndent(Build(app, projectWww), "", "  ")
	if err != nil {
		return "", false, fmt.Errorf("marshal manifest: %w", err)
	}
	return target, false, writeFile(target, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write temporary manifest: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
