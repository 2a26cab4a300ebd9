// Package errors provides the classified error type used across plugsmith.
//
// Errors carry a category (validation, plugin, filesystem, registry, ...),
// a severity and a retry strategy so the CLI can pick an exit code and the
// orchestrator can tell a failed batch apart from a failed registry write.
//
// Example usage:
//
//	err := errors.WrapError(ioErr, errors.CategoryFileSystem, "copy asset failed").
//		WithContext("path", dest).
//		Build()
package errors
