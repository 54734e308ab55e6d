//go:build !sqlite_vec

package storage

// Default build: pure Go SQLite, no C toolchain needed. FTS5 is included;
// vector distances are computed in Go.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable reports whether vec_distance_cosine exists
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
