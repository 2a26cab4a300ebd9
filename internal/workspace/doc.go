// Package workspace manages the directories remote plugin sources are
// checked out into.
//
// A cache workspace lives at a fixed path (fetch.cache_dir) and survives
// between runs so repeated fetches reuse it. A scratch workspace is a unique
// temporary directory used when a plugin is installed straight from a URL; it
// is removed once the install finishes.
package workspace
