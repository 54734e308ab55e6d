//go:build sqlite_vec

package storage

// Compiled with CGO and the sqlite_vec tag. Vector distances are computed
// inside SQLite by the sqlite-vec extension.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_vec" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable reports whether vec_distance_cosine exists
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo+sqlite-vec"
)

func init() {
	// Registers sqlite-vec as an auto extension for every new connection.
	sqlite_vec.Auto()
}
