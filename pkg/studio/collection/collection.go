package collection

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/adapter/fs"
	"github.com/tendant/simple-studio/pkg/studio/frontmatter"
)

// DefaultAssetsPath is used when Init.AssetsPath is empty.
const DefaultAssetsPath = "./public"

// Init declares a collection.
type Init[M any] struct {
	Name string
	// Path is the directory holding the collection's .md and .mdx files.
	Path       string
	Schema     studio.Validator[M]
	AssetsPath string
	Skip       bool
	Source     studio.Source
	// Adapter overrides the adapter chosen by Source.
	Adapter studio.Adapter
	Lenient bool
	Logger  *slog.Logger
}

// Collection is a named set of entries sharing a directory and a metadata
// type M.
type Collection[M any] struct {
	init   Init[M]
	logger *slog.Logger

	mu      sync.Mutex
	adapter studio.Adapter
	slugs   *SlugMap
	builds  singleflight.Group
}

// Define declares a collection. It performs no I/O.
func Define[M any](init Init[M]) *Collection[M] {
	if init.AssetsPath == "" {
		init.AssetsPath = DefaultAssetsPath
	}
	if init.Source == "" {
		init.Source = studio.SourceFS
	}
	logger := init.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection[M]{
		init:    init,
		logger:  logger.With("collection", init.Name),
		adapter: init.Adapter,
	}
}

func (c *Collection[M]) Name() string          { return c.init.Name }
func (c *Collection[M]) Path() string          { return c.init.Path }
func (c *Collection[M]) AssetsPath() string    { return c.init.AssetsPath }
func (c *Collection[M]) Source() studio.Source { return c.init.Source }
func (c *Collection[M]) Skip() bool            { return c.init.Skip }
func (c *Collection[M]) Lenient() bool         { return c.init.Lenient }

// Adapter returns the adapter the collection reads through.
func (c *Collection[M]) Adapter() (studio.Adapter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.adapter != nil {
		return c.adapter, nil
	}
	switch c.init.Source {
	case studio.SourceFS:
		c.adapter = fs.New(fs.Config{BaseDir: "."})
		return c.adapter, nil
	case studio.SourceRemote:
		return nil, &studio.ConfigurationError{
			Subject: c.init.Name,
			Reason:  "remote collection has no adapter; define it in a studio with a remote",
		}
	default:
		return nil, &studio.ConfigurationError{
			Subject: c.init.Name,
			Reason:  fmt.Sprintf("unknown source %q", c.init.Source),
		}
	}
}

func (c *Collection[M]) bindRemote(remote studio.Adapter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.init.Source != studio.SourceRemote || c.init.Adapter != nil {
		return nil
	}
	if remote == nil {
		return &studio.ConfigurationError{
			Subject: c.init.Name,
			Reason:  "collection source is remote but the studio has no remote adapter",
		}
	}
	c.adapter = remote
	return nil
}

// SlugMap lists the collection's directory once and caches the result.
// Concurrent first calls share a single listing.
func (c *Collection[M]) SlugMap(ctx context.Context) (*SlugMap, error) {
	c.mu.Lock()
	cached := c.slugs
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := c.builds.Do("slugs", func() (any, error) {
		m, err := c.buildSlugMap(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.slugs = m
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SlugMap), nil
}

func (c *Collection[M]) buildSlugMap(ctx context.Context) (*SlugMap, error) {
	adapter, err := c.Adapter()
	if err != nil {
		return nil, err
	}
	lister, ok := adapter.(studio.Lister)
	if !ok {
		return nil, &studio.MethodNotImplementedError{Backend: fmt.Sprintf("%T", adapter), Method: "ReadDir"}
	}

	names, err := lister.ReadDir(ctx, c.init.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %q: %w", c.init.Name, err)
	}

	m := newSlugMap()
	for _, name := range names {
		if !IsContentFile(name) {
			continue
		}
		slug := Slug(name)
		p := path.Join(c.init.Path, name)
		if existing, dup := m.Path(slug); dup {
			return nil, &studio.DuplicateSlugError{Collection: c.init.Name, Slug: slug, Paths: [2]string{existing, p}}
		}
		m.add(slug, p)
	}
	c.logger.Debug("built slug map", "entries", m.Len())
	return m, nil
}

// Reset drops the cached slug map.
func (c *Collection[M]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slugs = nil
}

func (c *Collection[M]) entryInit() EntryInit[M] {
	return EntryInit[M]{Schema: c.init.Schema, Lenient: c.init.Lenient, Logger: c.logger}
}

func (c *Collection[M]) load(ctx context.Context, adapter studio.Adapter, p string) (*Entry[M], error) {
	e, err := NewEntry(ctx, adapter, p, c.entryInit())
	if err != nil {
		return nil, err
	}
	return e.Load(ctx)
}

// Entries loads every entry concurrently. The result follows slug map order.
func (c *Collection[M]) Entries(ctx context.Context) ([]*Entry[M], error) {
	m, err := c.SlugMap(ctx)
	if err != nil {
		return nil, err
	}
	adapter, err := c.Adapter()
	if err != nil {
		return nil, err
	}

	out := make([]*Entry[M], m.Len())
	g, gctx := errgroup.WithContext(ctx)
	i := 0
	for _, p := range m.All() {
		idx := i
		g.Go(func() error {
			e, err := c.load(gctx, adapter, p)
			if err != nil {
				return err
			}
			out[idx] = e
			return nil
		})
		i++
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Entry loads the entry for slug.
func (c *Collection[M]) Entry(ctx context.Context, slug string) (*Entry[M], error) {
	m, err := c.SlugMap(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := m.Path(slug)
	if !ok {
		return nil, &studio.EntryNotFoundError{Collection: c.init.Name, Slug: slug}
	}
	adapter, err := c.Adapter()
	if err != nil {
		return nil, err
	}
	return c.load(ctx, adapter, p)
}

// Put validates and writes the entry for slug, creating slug.md when the
// slug is new.
func (c *Collection[M]) Put(ctx context.Context, slug string, fields *frontmatter.Fields, body string) (*Entry[M], error) {
	if slug == "" || strings.ContainsAny(slug, `/\`) || slug == "." || slug == ".." {
		return nil, &studio.ValidationError{
			Path:   path.Join(c.init.Path, slug),
			Issues: []studio.Issue{{Message: "slug must be a single path segment", Path: []string{"slug"}}},
		}
	}

	m, err := c.SlugMap(ctx)
	if err != nil {
		return nil, err
	}
	adapter, err := c.Adapter()
	if err != nil {
		return nil, err
	}

	p, exists := m.Path(slug)
	if !exists {
		p = path.Join(c.init.Path, slug+".md")
	}

	e := ParseEntry(p, frontmatter.Format(fields, body), c.entryInit())
	if _, err := e.Load(ctx); err != nil {
		return nil, err
	}
	if err := adapter.Write(ctx, p, e.Raw()); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", p, err)
	}

	if !exists {
		c.mu.Lock()
		if c.slugs != nil {
			c.slugs = c.slugs.with(slug, p)
		}
		c.mu.Unlock()
	}
	c.logger.Info("entry written", "slug", slug, "path", p)
	return e, nil
}

// Delete removes the entry for slug.
func (c *Collection[M]) Delete(ctx context.Context, slug string) error {
	m, err := c.SlugMap(ctx)
	if err != nil {
		return err
	}
	p, ok := m.Path(slug)
	if !ok {
		return &studio.EntryNotFoundError{Collection: c.init.Name, Slug: slug}
	}
	adapter, err := c.Adapter()
	if err != nil {
		return err
	}
	if err := adapter.Remove(ctx, p); err != nil {
		return err
	}

	c.mu.Lock()
	if c.slugs != nil {
		c.slugs = c.slugs.without(slug)
	}
	c.mu.Unlock()
	c.logger.Info("entry removed", "slug", slug, "path", p)
	return nil
}
