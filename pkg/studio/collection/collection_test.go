package collection

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/adapter/fs"
	"github.com/tendant/simple-studio/pkg/studio/adapter/memory"
	"github.com/tendant/simple-studio/pkg/studio/frontmatter"
)

// countingAdapter counts directory listings.
type countingAdapter struct {
	*memory.Adapter
	listings atomic.Int32
}

func (c *countingAdapter) ReadDir(ctx context.Context, dir string) ([]string, error) {
	c.listings.Add(1)
	return c.Adapter.ReadDir(ctx, dir)
}

// plainAdapter hides ReadDir.
type plainAdapter struct {
	studio.Adapter
}

func newPosts(t *testing.T, files map[string]string) (*Collection[postMeta], *countingAdapter) {
	t.Helper()
	adapter := &countingAdapter{Adapter: memory.New(memory.WithFiles(files))}
	c := Define(Init[postMeta]{
		Name:    "posts",
		Path:    "content/posts",
		Adapter: adapter,
	})
	return c, adapter
}

func TestDefineDefaults(t *testing.T) {
	c := Define(Init[postMeta]{Name: "posts", Path: "content/posts"})
	assert.Equal(t, "posts", c.Name())
	assert.Equal(t, "content/posts", c.Path())
	assert.Equal(t, "./public", c.AssetsPath())
	assert.Equal(t, studio.SourceFS, c.Source())
	assert.False(t, c.Skip())
	assert.False(t, c.Lenient())

	adapter, err := c.Adapter()
	require.NoError(t, err)
	assert.NotNil(t, adapter)
}

func TestSlugMapIsCached(t *testing.T) {
	c, adapter := newPosts(t, map[string]string{
		"content/posts/b.md":   "b",
		"content/posts/a.mdx":  "a",
		"content/posts/c.txt":  "ignored",
		"content/other/d.md":   "elsewhere",
		"content/posts/x/e.md": "nested",
	})
	ctx := context.Background()

	first, err := c.SlugMap(ctx)
	require.NoError(t, err)
	second, err := c.SlugMap(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), adapter.listings.Load())
	assert.Equal(t, []string{"a", "b"}, first.Slugs())

	p, ok := first.Path("a")
	assert.True(t, ok)
	assert.Equal(t, "content/posts/a.mdx", p)

	c.Reset()
	_, err = c.SlugMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), adapter.listings.Load())
}

func TestSlugMapConcurrentFirstCalls(t *testing.T) {
	c, _ := newPosts(t, map[string]string{"content/posts/a.md": "a"})

	var wg sync.WaitGroup
	results := make([]*SlugMap, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := c.SlugMap(context.Background())
			assert.NoError(t, err)
			results[i] = m
		}()
	}
	wg.Wait()

	for _, m := range results {
		assert.Equal(t, []string{"a"}, m.Slugs())
	}
}

func TestSlugMapDuplicateSlug(t *testing.T) {
	c, _ := newPosts(t, map[string]string{
		"content/posts/x.md":  "one",
		"content/posts/x.mdx": "two",
	})

	_, err := c.SlugMap(context.Background())
	require.Error(t, err)

	var dup *studio.DuplicateSlugError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "posts", dup.Collection)
	assert.Equal(t, "x", dup.Slug)
	assert.Equal(t, [2]string{"content/posts/x.md", "content/posts/x.mdx"}, dup.Paths)
	assert.ErrorIs(t, err, studio.ErrDuplicateSlug)
}

func TestSlugMapRequiresLister(t *testing.T) {
	c := Define(Init[postMeta]{Name: "posts", Path: "p", Adapter: plainAdapter{memory.New()}})
	_, err := c.SlugMap(context.Background())
	assert.ErrorIs(t, err, studio.ErrMethodNotImplemented)
}

func TestSlugMapMissingDirectory(t *testing.T) {
	c := Define(Init[postMeta]{Name: "posts", Path: "/definitely/not/here", Source: studio.SourceFS})
	_, err := c.SlugMap(context.Background())
	assert.ErrorIs(t, err, studio.ErrNotFound)
	assert.Contains(t, err.Error(), "posts")
}

func TestEntries(t *testing.T) {
	c, _ := newPosts(t, map[string]string{
		"content/posts/c.md": "---\ntitle: C\n---\n\nc",
		"content/posts/a.md": "---\ntitle: A\n---\n\na",
		"content/posts/b.md": "---\ntitle: B\n---\n\nb",
	})

	entries, err := c.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	var titles []string
	for _, e := range entries {
		assert.True(t, e.Loaded())
		titles = append(titles, e.Metadata().Title)
	}
	assert.Equal(t, []string{"A", "B", "C"}, titles)
}

func TestEntriesStopsOnValidationFailure(t *testing.T) {
	adapter := memory.New(memory.WithFiles(map[string]string{
		"posts/a.md": "---\ntitle: A\n---\n\na",
		"posts/b.md": "---\ntitle: B\n---\n\nb",
	}))
	c := Define(Init[postMeta]{
		Name:    "posts",
		Path:    "posts",
		Adapter: adapter,
		Schema:  studio.ValidatorFunc[postMeta](rejectAll),
	})

	_, err := c.Entries(context.Background())
	assert.ErrorIs(t, err, studio.ErrValidation)

	c = Define(Init[postMeta]{
		Name:    "posts",
		Path:    "posts",
		Adapter: adapter,
		Schema:  studio.ValidatorFunc[postMeta](rejectAll),
		Lenient: true,
	})
	entries, err := c.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[0].Issues())
}

func TestEntry(t *testing.T) {
	c, _ := newPosts(t, map[string]string{
		"content/posts/hello.md": "---\ntitle: Hello\n---\n\n" + words(250),
	})
	ctx := context.Background()

	e, err := c.Entry(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello", e.Metadata().Title)
	assert.Equal(t, "2 minutes", e.ReadTime())

	_, err = c.Entry(ctx, "missing-slug")
	require.Error(t, err)
	var nf *studio.EntryNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "posts", nf.Collection)
	assert.Equal(t, "missing-slug", nf.Slug)
	assert.ErrorIs(t, err, studio.ErrEntryNotFound)
}

func TestPutAndDelete(t *testing.T) {
	c, adapter := newPosts(t, map[string]string{
		"content/posts/a.md": "---\ntitle: A\n---\n\na",
	})
	ctx := context.Background()

	_, err := c.SlugMap(ctx)
	require.NoError(t, err)

	e, err := c.Put(ctx, "new-post", frontmatter.NewFields("title", "New", "tags", []string{"x"}), "hello")
	require.NoError(t, err)
	assert.Equal(t, "content/posts/new-post.md", e.Path())
	assert.Equal(t, "New", e.Metadata().Title)

	raw, err := adapter.Read(ctx, "content/posts/new-post.md")
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: New\ntags: [x]\n---\n\nhello", raw)

	m, err := c.SlugMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "new-post"}, m.Slugs())
	assert.Equal(t, int32(1), adapter.listings.Load())

	// existing slugs keep their file
	_, err = c.Put(ctx, "a", frontmatter.NewFields("title", "A2"), "a2")
	require.NoError(t, err)
	got, err := c.Entry(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "A2", got.Metadata().Title)

	require.NoError(t, c.Delete(ctx, "new-post"))
	m, err = c.SlugMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, m.Slugs())

	_, err = adapter.Read(ctx, "content/posts/new-post.md")
	assert.ErrorIs(t, err, studio.ErrNotFound)

	err = c.Delete(ctx, "new-post")
	assert.ErrorIs(t, err, studio.ErrEntryNotFound)
}

func TestDeleteLastEntryKeepsCollection(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/site/content/posts/only.md", []byte("---\ntitle: Only\n---\n\nx"), 0644))
	adapter := fs.New(fs.Config{BaseDir: "/site", Fs: fsys})
	define := func() *Collection[postMeta] {
		return Define(Init[postMeta]{Name: "posts", Path: "content/posts", Adapter: adapter})
	}
	ctx := context.Background()

	require.NoError(t, define().Delete(ctx, "only"))

	c := define()
	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = c.Put(ctx, "again", frontmatter.NewFields("title", "Again"), "y")
	require.NoError(t, err)
	entries, err = define().Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "again", entries[0].Slug())
}

func TestPutKeepsSpecialCharacters(t *testing.T) {
	c, _ := newPosts(t, map[string]string{})
	ctx := context.Background()

	for slug, title := range map[string]string{
		"hash":  "Issue #1 fixed",
		"colon": "Go: a tour",
		"empty": "",
	} {
		_, err := c.Put(ctx, slug, frontmatter.NewFields("title", title), "body")
		require.NoError(t, err, slug)
	}

	c.Reset()
	for slug, title := range map[string]string{
		"hash":  "Issue #1 fixed",
		"colon": "Go: a tour",
		"empty": "",
	} {
		e, err := c.Entry(ctx, slug)
		require.NoError(t, err, slug)
		assert.Equal(t, title, e.Metadata().Title, slug)
	}
}

func TestPutRejectsInvalidInput(t *testing.T) {
	adapter := memory.New()
	c := Define(Init[postMeta]{
		Name:    "posts",
		Path:    "posts",
		Adapter: adapter,
		Schema:  studio.ValidatorFunc[postMeta](rejectAll),
	})
	ctx := context.Background()

	_, err := c.Put(ctx, "../escape", frontmatter.NewFields("title", "x"), "")
	assert.ErrorIs(t, err, studio.ErrValidation)

	_, err = c.Put(ctx, "ok", frontmatter.NewFields("title", "x"), "")
	assert.ErrorIs(t, err, studio.ErrValidation)

	pending, err := adapter.HasPendingChanges(ctx)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestRemoteCollectionNeedsAdapter(t *testing.T) {
	c := Define(Init[postMeta]{Name: "posts", Path: "p", Source: studio.SourceRemote})
	_, err := c.Adapter()
	assert.ErrorIs(t, err, studio.ErrConfiguration)

	c = Define(Init[postMeta]{Name: "posts", Path: "p", Source: "ftp"})
	_, err = c.Adapter()
	assert.ErrorIs(t, err, studio.ErrConfiguration)
}

func TestHandleDocuments(t *testing.T) {
	c, _ := newPosts(t, map[string]string{
		"content/posts/a.md": "---\ntitle: A\n---\n\na",
	})
	var h Handle = c
	ctx := context.Background()

	docs, err := h.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].Slug())
	assert.Equal(t, postMeta{Title: "A"}, docs[0].MetadataValue())

	doc, err := h.Document(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Content())

	_, err = h.Document(ctx, "b")
	assert.ErrorIs(t, err, studio.ErrEntryNotFound)

	doc, err = h.PutDocument(ctx, "b", frontmatter.NewFields("title", "B"), "b")
	require.NoError(t, err)
	assert.Equal(t, "content/posts/b.md", doc.Path())
}
