package studio

import (
	"context"
	"strings"
)

// Source selects where a collection's files live.
type Source string

const (
	SourceFS     Source = "fs"
	SourceRemote Source = "remote"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceFS || s == SourceRemote
}

// Adapter is the storage contract shared by every backend. A collection reads
// and writes through it without knowing whether files are on disk or in a
// remote repository.
type Adapter interface {
	// Connect prepares the backend for use
	Connect(ctx context.Context) error

	// Disconnect releases whatever Connect acquired
	Disconnect(ctx context.Context) error

	// Read returns the text of the file at path
	Read(ctx context.Context, path string) (string, error)

	// Write creates or replaces the file at path
	Write(ctx context.Context, path, content string) error

	// Remove deletes the file at path
	Remove(ctx context.Context, path string) error

	// HasPendingChanges reports uncommitted local state
	HasPendingChanges(ctx context.Context) (bool, error)
}

// Committer is implemented by adapters that group writes into revisions.
type Committer interface {
	Commit(ctx context.Context, message string) error
}

// Lister is implemented by adapters that can enumerate a directory. ReadDir
// returns the names of the files directly under dir, sorted.
type Lister interface {
	ReadDir(ctx context.Context, dir string) ([]string, error)
}

// NormalizePath strips a leading "./" before a path is handed to a backend.
func NormalizePath(path string) string {
	return strings.TrimPrefix(path, "./")
}
