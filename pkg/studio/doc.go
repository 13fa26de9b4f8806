// Package studio defines the contracts shared by the content studio: the
// storage Adapter implemented by every backend, the metadata Validator used
// to type front matter, and the error kinds returned across packages.
//
// Collections and entries live in the collection subpackage; storage backends
// (local filesystem, GitHub, S3, Postgres, memory) live under adapter/.
//
// Errors
//
// Every failure surfaced by the studio is one of the struct types in
// errors.go. Each unwraps to a kind constant, so callers can either match the
// kind with errors.Is or pull out the offending collection, slug or path with
// errors.As.
package studio
