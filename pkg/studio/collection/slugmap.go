package collection

import (
	"iter"
	"path"
	"slices"
	"strings"
)

// SlugMap maps slugs to file paths in directory listing order. A SlugMap is
// never modified once built; changes produce a new map.
type SlugMap struct {
	slugs []string
	paths map[string]string
}

func newSlugMap() *SlugMap {
	return &SlugMap{paths: make(map[string]string)}
}

func (m *SlugMap) Len() int {
	return len(m.slugs)
}

// Slugs returns the slugs in order.
func (m *SlugMap) Slugs() []string {
	return slices.Clone(m.slugs)
}

// Path returns the file path for slug.
func (m *SlugMap) Path(slug string) (string, bool) {
	p, ok := m.paths[slug]
	return p, ok
}

// All iterates over slug, path pairs in order.
func (m *SlugMap) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, s := range m.slugs {
			if !yield(s, m.paths[s]) {
				return
			}
		}
	}
}

func (m *SlugMap) add(slug, p string) {
	m.slugs = append(m.slugs, slug)
	m.paths[slug] = p
}

// with returns a copy that includes slug, keeping file-name order.
func (m *SlugMap) with(slug, p string) *SlugMap {
	out := newSlugMap()
	for s, existing := range m.All() {
		if s != slug {
			out.add(s, existing)
		}
	}
	out.add(slug, p)
	slices.SortFunc(out.slugs, func(a, b string) int {
		return strings.Compare(path.Base(out.paths[a]), path.Base(out.paths[b]))
	})
	return out
}

// without returns a copy that omits slug.
func (m *SlugMap) without(slug string) *SlugMap {
	out := newSlugMap()
	for s, p := range m.All() {
		if s != slug {
			out.add(s, p)
		}
	}
	return out
}
