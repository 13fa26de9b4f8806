package studio

import (
	"context"
	"strings"
)

// Issue is a single problem reported by a Validator.
type Issue struct {
	Message string   `json:"message"`
	Path    []string `json:"path,omitempty"`
}

func (i Issue) String() string {
	if len(i.Path) == 0 {
		return i.Message
	}
	return strings.Join(i.Path, ".") + ": " + i.Message
}

// Result is the outcome of a validation. A non-empty Issues list means the
// input was rejected and Value must not be used.
type Result[T any] struct {
	Value  T
	Issues []Issue
}

// OK reports whether validation succeeded.
func (r Result[T]) OK() bool {
	return len(r.Issues) == 0
}

// Validator checks front-matter metadata and coerces it into T. Validate may
// block (remote schema registries, slow checks) and should honor ctx.
type Validator[T any] interface {
	Validate(ctx context.Context, input map[string]any) Result[T]
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc[T any] func(ctx context.Context, input map[string]any) Result[T]

func (f ValidatorFunc[T]) Validate(ctx context.Context, input map[string]any) Result[T] {
	return f(ctx, input)
}
