// Package plugin defines the installable item model shared by the descriptor
// reader, the installer dispatch table and the module registry.
//
// A plugin contributes four kinds of items: native source files, native
// frameworks, static assets and JavaScript modules. Descriptor is the view the
// orchestrator consumes; Info is the concrete value produced from plugin.xml.
package plugin
