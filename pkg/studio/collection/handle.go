package collection

import (
	"context"

	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/frontmatter"
)

// Document is the metadata-type-agnostic view of an Entry.
type Document interface {
	Path() string
	Slug() string
	Fields() *frontmatter.Fields
	MetadataValue() any
	Content() string
	ReadTime() string
	Issues() []studio.Issue
	String() string
}

// Handle is the metadata-type-agnostic view of a Collection, used where
// collections of different types are held together.
type Handle interface {
	Name() string
	Path() string
	AssetsPath() string
	Source() studio.Source
	Skip() bool
	Adapter() (studio.Adapter, error)
	SlugMap(ctx context.Context) (*SlugMap, error)
	Documents(ctx context.Context) ([]Document, error)
	Document(ctx context.Context, slug string) (Document, error)
	PutDocument(ctx context.Context, slug string, fields *frontmatter.Fields, body string) (Document, error)
	Delete(ctx context.Context, slug string) error
	Reset()

	bindRemote(remote studio.Adapter) error
}

var _ Handle = (*Collection[map[string]any])(nil)

func (c *Collection[M]) Documents(ctx context.Context) ([]Document, error) {
	entries, err := c.Entries(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(entries))
	for i, e := range entries {
		docs[i] = e
	}
	return docs, nil
}

func (c *Collection[M]) Document(ctx context.Context, slug string) (Document, error) {
	e, err := c.Entry(ctx, slug)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Collection[M]) PutDocument(ctx context.Context, slug string, fields *frontmatter.Fields, body string) (Document, error) {
	e, err := c.Put(ctx, slug, fields, body)
	if err != nil {
		return nil, err
	}
	return e, nil
}
