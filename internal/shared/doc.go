// Package shared holds cross-cutting helpers that belong to no specific
// layer of the loader.
//
// The testutil subpackage provides an in-memory slog handler for
// asserting on structured log output in tests. Nothing here may import
// other internal packages.
package shared
