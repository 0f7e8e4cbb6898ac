//go:build sqlite_vec
// +build sqlite_vec

package storage

// This file is compiled when building with CGO and the sqlite_vec tag.
// The sqlite-vec extension moves cosine distance into the database layer,
// which matters once the corpus carries many thousands of embeddings.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if the sqlite-vec extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
