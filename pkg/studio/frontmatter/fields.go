package frontmatter

import "iter"

// Fields is an insertion-ordered set of front-matter keys and values.
// The zero value is empty and ready to use.
type Fields struct {
	keys   []string
	values map[string]any
}

// NewFields builds Fields from alternating key/value pairs.
func NewFields(kv ...any) *Fields {
	f := &Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		f.Set(key, kv[i+1])
	}
	return f
}

// FromMap builds Fields from a map using the given key order. Keys of m that
// are not listed in order are appended in map iteration order.
func FromMap(m map[string]any, order ...string) *Fields {
	f := &Fields{}
	for _, k := range order {
		if v, ok := m[k]; ok {
			f.Set(k, v)
		}
	}
	for k, v := range m {
		if !f.Has(k) {
			f.Set(k, v)
		}
	}
	return f
}

// Len returns the number of keys.
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Keys returns the keys in insertion order.
func (f *Fields) Keys() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

func (f *Fields) Has(key string) bool {
	if f == nil {
		return false
	}
	_, ok := f.values[key]
	return ok
}

func (f *Fields) Get(key string) (any, bool) {
	if f == nil {
		return nil, false
	}
	v, ok := f.values[key]
	return v, ok
}

// Set assigns key. A new key goes to the end; an existing key keeps its place.
func (f *Fields) Set(key string, value any) {
	if f.values == nil {
		f.values = make(map[string]any)
	}
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

func (f *Fields) Delete(key string) {
	if f == nil {
		return
	}
	if _, ok := f.values[key]; !ok {
		return
	}
	delete(f.values, key)
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
}

// All iterates over the fields in insertion order.
func (f *Fields) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if f == nil {
			return
		}
		for _, k := range f.keys {
			if !yield(k, f.values[k]) {
				return
			}
		}
	}
}

// Map returns a shallow copy of the fields as a plain map.
func (f *Fields) Map() map[string]any {
	out := make(map[string]any, f.Len())
	for k, v := range f.All() {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy.
func (f *Fields) Clone() *Fields {
	out := &Fields{}
	for k, v := range f.All() {
		out.Set(k, v)
	}
	return out
}
