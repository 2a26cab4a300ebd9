package webmanifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/plugsmith/internal/config"
)

func TestThemeColor(t *testing.T) {
	color, err := ThemeColor(strings.NewReader(`<!doctype html><html><head>
<meta charset="utf-8"><META NAME="Theme-Color" content=" #FF0044 "><meta name="theme-color" content="#000">
</head><body></body></html>`))
	require.NoError(t, err)
	require.Equal(t, "#FF0044", color)

	color, err = ThemeColor(strings.NewReader(`<p>no head</p>`))
	require.NoError(t, err)
	require.Empty(t, color)
}

func TestBuildDefaults(t *testing.T) {
	m := Build(config.AppConfig{Orientation: "sideways", StatusBarColor: "#111"}, t.TempDir())
	require.Equal(t, Manifest{
		BackgroundColor: "#FFF",
		Display:         "standalone",
		Orientation:     "any",
		StartURL:        "index.html",
		ThemeColor:      "#111",
	}, m)
}

func TestGenerateBuildsFromStartPage(t *testing.T) {
	project := t.TempDir()
	platform := filepath.Join(t.TempDir(), "www")
	require.NoError(t, os.WriteFile(filepath.Join(project, "main.html"),
		[]byte(`<html><head><meta name="theme-color" content="#0a0"></head></html>`), 0o600))

	app := config.AppConfig{Name: "Hello", ShortName: "Hi", Author: "Ada", StartURL: "main.html", Orientation: "landscape", StatusBarColor: "#111"}
	path, copied, err := Generate(app, project, platform)
	require.NoError(t, err)
	require.False(t, copied)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, map[string]string{
		"background_color": "#FFF",
		"display":          "standalone",
		"orientation":      "landscape",
		"start_url":        "main.html",
		"name":             "Hello",
		"short_name":       "Hi",
		"author":           "Ada",
		"theme_color":      "#0a0",
	}, got)
}

func TestGenerateCopiesProjectManifest(t *testing.T) {
	project := t.TempDir()
	platform := t.TempDir()
	custom := `{"name": "custom",  "display": "fullscreen"}`
	require.NoError(t, os.WriteFile(filepath.Join(project, FileName), []byte(custom), 0o600))

	path, copied, err := Generate(config.AppConfig{Name: "ignored"}, project, platform)
	require.NoError(t, err)
	require.True(t, copied)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, custom, string(data))
}
