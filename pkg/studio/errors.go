package studio

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

// Error kinds. The adapter-level kinds reuse the juju/errors constants so that
// callers already matching on errors.NotFound keep working.
const (
	ErrConfiguration        = errors.ConstError("configuration error")
	ErrDuplicateSlug        = errors.ConstError("duplicate slug")
	ErrDuplicateCollection  = errors.ConstError("duplicate collection")
	ErrEntryNotFound        = errors.ConstError("entry not found")
	ErrCollectionNotFound   = errors.ConstError("collection not found")
	ErrNotFound             = errors.NotFound
	ErrValidation           = errors.NotValid
	ErrMethodNotImplemented = errors.NotImplemented
)

// ConfigurationError reports a missing credential, a malformed identifier or
// any other mistake in how the studio was put together.
type ConfigurationError struct {
	Subject string
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration error: %s: %s", e.Subject, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() []error {
	return causes(ErrConfiguration, e.Err)
}

// DuplicateSlugError is raised when two files of one collection normalize to
// the same slug.
type DuplicateSlugError struct {
	Collection string
	Slug       string
	Paths      [2]string
}

func (e *DuplicateSlugError) Error() string {
	return fmt.Sprintf("duplicate slug %q in collection %q (%s, %s): entries must have unique slugs",
		e.Slug, e.Collection, e.Paths[0], e.Paths[1])
}

func (e *DuplicateSlugError) Unwrap() error {
	return ErrDuplicateSlug
}

// DuplicateCollectionError is raised when a registry declares two collections
// with one name.
type DuplicateCollectionError struct {
	Name string
}

func (e *DuplicateCollectionError) Error() string {
	return fmt.Sprintf("duplicate collection name %q: skip unused collections or remove them", e.Name)
}

func (e *DuplicateCollectionError) Unwrap() error {
	return ErrDuplicateCollection
}

// EntryNotFoundError is returned for a slug lookup miss.
type EntryNotFoundError struct {
	Collection string
	Slug       string
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("entry with slug %q not found in collection %q", e.Slug, e.Collection)
}

func (e *EntryNotFoundError) Unwrap() error {
	return ErrEntryNotFound
}

// NotFoundError is returned by adapters when a path does not resolve to a file.
type NotFoundError struct {
	Backend string
	Path    string
	Err     error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: file not found: %s", e.Backend, e.Path)
}

func (e *NotFoundError) Unwrap() []error {
	return causes(ErrNotFound, e.Err)
}

// ValidationError carries the issues reported by a metadata validator.
type ValidationError struct {
	Path   string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, issue.String())
	}
	return fmt.Sprintf("front matter validation failed in %s: %s", e.Path, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// MethodNotImplementedError is returned when a backend does not support an
// adapter capability.
type MethodNotImplementedError struct {
	Backend string
	Method  string
}

func (e *MethodNotImplementedError) Error() string {
	return fmt.Sprintf("%s: method %s not implemented", e.Backend, e.Method)
}

func (e *MethodNotImplementedError) Unwrap() error {
	return ErrMethodNotImplemented
}

func causes(kind error, err error) []error {
	if err == nil {
		return []error{kind}
	}
	return []error{kind, err}
}
