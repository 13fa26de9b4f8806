// Package secret provides Box, an opaque holder for credentials.
//
// A Box never carries its value in a field. The value sits in a package-level
// table keyed by a weak pointer to the box's private handle, so printing,
// logging, encoding or copying a Box cannot leak it. Reveal is the only way
// back to the value.
package secret

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"weak"

	"github.com/tendant/simple-studio/pkg/studio"
)

// Redacted is what every default conversion of a Box produces.
const Redacted = "<redacted>"

// ErrInvalidSecret is returned when a box no longer has a value attached,
// typically because it was disposed.
var ErrInvalidSecret = errors.New("invalid secret")

type handle struct {
	cleanup runtime.Cleanup
}

var table = struct {
	sync.Mutex
	values map[weak.Pointer[handle]]any
}{values: make(map[weak.Pointer[handle]]any)}

// Box wraps a value of type V.
type Box[V any] struct {
	h *handle
}

// From wraps value.
func From[V any](value V) *Box[V] {
	h := &handle{}
	key := weak.Make(h)

	table.Lock()
	table.values[key] = value
	table.Unlock()

	h.cleanup = runtime.AddCleanup(h, forget, key)
	return &Box[V]{h: h}
}

// FromEnv wraps the value of the environment variable name. An unset variable
// is a configuration error; a variable set to the empty string is not.
func FromEnv(name string) (*Box[string], error) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return nil, &studio.ConfigurationError{
			Subject: name,
			Reason:  "environment variable is not defined",
		}
	}
	return From(value), nil
}

func forget(key weak.Pointer[handle]) {
	table.Lock()
	delete(table.values, key)
	table.Unlock()
}

// Reveal returns the wrapped value.
func Reveal[V any](b *Box[V]) (V, error) {
	var zero V
	if b == nil || b.h == nil {
		return zero, ErrInvalidSecret
	}

	table.Lock()
	value, ok := table.values[weak.Make(b.h)]
	table.Unlock()
	runtime.KeepAlive(b.h)

	if !ok {
		return zero, ErrInvalidSecret
	}
	v, ok := value.(V)
	if !ok {
		return zero, ErrInvalidSecret
	}
	return v, nil
}

// RevealValue accepts either a box or a plain value. Plain values are returned
// unchanged so callers can pass credentials in whichever form they hold them.
func RevealValue[V any](v any) (V, error) {
	switch x := v.(type) {
	case *Box[V]:
		return Reveal(x)
	case Box[V]:
		return Reveal(&x)
	case V:
		return x, nil
	default:
		var zero V
		return zero, fmt.Errorf("%w: unexpected %T", ErrInvalidSecret, v)
	}
}

// Reveal returns the wrapped value.
func (b *Box[V]) Reveal() (V, error) {
	return Reveal(b)
}

// Dispose detaches the value. Reveal fails afterwards, for this box and for
// every copy of it.
func (b *Box[V]) Dispose() {
	if b == nil || b.h == nil {
		return
	}
	b.h.cleanup.Stop()
	forget(weak.Make(b.h))
}

func (b Box[V]) String() string {
	return Redacted
}

func (b Box[V]) GoString() string {
	return Redacted
}

// Format keeps every fmt verb, including %#v and %+v, away from the handle.
func (b Box[V]) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, Redacted)
}

func (b Box[V]) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Redacted + `"`), nil
}

func (b Box[V]) MarshalText() ([]byte, error) {
	return []byte(Redacted), nil
}

func (b Box[V]) MarshalYAML() (any, error) {
	return Redacted, nil
}

func (b Box[V]) LogValue() slog.Value {
	return slog.StringValue(Redacted)
}
