package installer

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/plugsmith/internal/plugin"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type jsModuleHandler struct{}

// Install wraps the module source in a define call and writes it to
// <web>/plugins/<pluginID>/<src>.
func (jsModuleHandler) Install(ctx context.Context, t Target, item plugin.Item, pluginDir, pluginID string) error {
	m, err := itemAs[plugin.JSModule](item)
	if err != nil {
		return err
	}
	src := filepath.Join(pluginDir, filepath.FromSlash(m.Src))
	// #nosec G304 - src is inside the plugin directory
	data, err := os.ReadFile(src)
	if err != nil {
		return fsError("read", src, err)
	}
	return place(ctx, t, pluginID, moduleTarget(t, m, pluginID), WrapModule(m.ModuleName(pluginID), m.Src, data))
}

// Uninstall removes the wrapped module and prunes empty directories up to the
// web root.
func (jsModuleHandler) Uninstall(ctx context.Context, t Target, item plugin.Item, pluginID string) error {
	m, err := itemAs[plugin.JSModule](item)
	if err != nil {
		return err
	}
	return unplace(ctx, t, pluginID, moduleTarget(t, m, pluginID), t.Web)
}

func moduleTarget(t Target, m plugin.JSModule, pluginID string) string {
	return filepath.Join(t.Web, filepath.FromSlash(m.RegistryFile(pluginID)))
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	out, _ := json.Marshal(s) // marshalling a string cannot fail
	return string(out)
}

// WrapModule returns the runtime form of a module source. A leading BOM is
// dropped and JSON sources become the module's export.
func WrapModule(moduleName, src string, data []byte) []byte {
	body := string(bytes.TrimPrefix(data, utf8BOM))
	if strings.EqualFold(path.Ext(src), ".json") {
		body = "module.exports = " + body
	}

	var b strings.Builder
	b.WriteString("cordova.define(")
	b.WriteString(jsString(moduleName))
	b.WriteString(", function(require, exports, module) {\n")
	b.WriteString(body)
	b.WriteString("\n});\n")
	return []byte(b.String())
}
