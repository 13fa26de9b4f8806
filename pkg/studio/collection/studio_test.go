package collection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/adapter/memory"
)

type pageMeta struct {
	Heading string `yaml:"heading"`
}

func TestDefineStudioConfig(t *testing.T) {
	posts := Define(Init[postMeta]{Name: "posts", Path: "content/posts"})
	pages := Define(Init[pageMeta]{Name: "pages", Path: "content/pages"})
	oldPosts := Define(Init[postMeta]{Name: "posts", Path: "content/old", Skip: true})

	s, err := DefineStudioConfig(StudioConfig{Collections: []Handle{posts, pages, oldPosts}})
	require.NoError(t, err)

	assert.Equal(t, []string{"posts", "pages"}, s.Names())
	assert.Len(t, s.Collections(), 2)
	_, ok := s.Collections()["posts"]
	assert.True(t, ok)

	declared := s.Declared()
	require.Len(t, declared, 3)
	assert.Same(t, oldPosts, declared[2])
	assert.True(t, declared[2].Skip())

	h, ok := s.Collection("posts")
	require.True(t, ok)
	assert.Equal(t, "content/posts", h.Path())

	got, err := Get[postMeta](s, "posts")
	require.NoError(t, err)
	assert.Same(t, posts, got)

	gotPages, err := Get[pageMeta](s, "pages")
	require.NoError(t, err)
	assert.Same(t, pages, gotPages)
}

func TestDefineStudioConfigDuplicate(t *testing.T) {
	_, err := DefineStudioConfig(StudioConfig{Collections: []Handle{
		Define(Init[postMeta]{Name: "posts", Path: "a"}),
		Define(Init[pageMeta]{Name: "posts", Path: "b"}),
	}})
	require.Error(t, err)

	var dup *studio.DuplicateCollectionError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "posts", dup.Name)
	assert.ErrorIs(t, err, studio.ErrDuplicateCollection)
}

func TestGetErrors(t *testing.T) {
	s, err := DefineStudioConfig(StudioConfig{Collections: []Handle{
		Define(Init[postMeta]{Name: "posts", Path: "a"}),
		Define(Init[postMeta]{Name: "hidden", Path: "b", Skip: true}),
	}})
	require.NoError(t, err)

	_, err = Get[postMeta](s, "nope")
	assert.ErrorIs(t, err, studio.ErrCollectionNotFound)
	assert.Contains(t, err.Error(), "nope")

	_, err = Get[postMeta](s, "hidden")
	assert.ErrorIs(t, err, studio.ErrCollectionNotFound)

	_, err = Get[pageMeta](s, "posts")
	assert.ErrorIs(t, err, studio.ErrConfiguration)
}

func TestStudioRemote(t *testing.T) {
	remote := memory.New(memory.WithFiles(map[string]string{
		"content/notes/hello.md": "---\ntitle: Hello\n---\n\nhi",
	}))
	notes := Define(Init[postMeta]{Name: "notes", Path: "content/notes", Source: studio.SourceRemote})

	s, err := DefineStudioConfig(StudioConfig{Remote: remote, Collections: []Handle{notes}})
	require.NoError(t, err)
	assert.Same(t, remote, s.Remote())

	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))

	e, err := notes.Entry(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello", e.Metadata().Title)

	require.NoError(t, notes.Delete(ctx, "hello"))
	pending, err := remote.HasPendingChanges(ctx)
	require.NoError(t, err)
	assert.True(t, pending)

	require.NoError(t, s.Commit(ctx, "remove hello"))
	require.Len(t, remote.Commits(), 1)

	require.NoError(t, s.Disconnect(ctx))
}

func TestStudioRemoteMissing(t *testing.T) {
	notes := Define(Init[postMeta]{Name: "notes", Path: "n", Source: studio.SourceRemote})
	_, err := DefineStudioConfig(StudioConfig{Collections: []Handle{notes}})
	assert.ErrorIs(t, err, studio.ErrConfiguration)

	// an explicit adapter satisfies a remote collection on its own
	explicit := Define(Init[postMeta]{Name: "notes", Path: "n", Source: studio.SourceRemote, Adapter: memory.New()})
	_, err = DefineStudioConfig(StudioConfig{Collections: []Handle{explicit}})
	assert.NoError(t, err)

	// skipped collections are not bound
	skipped := Define(Init[postMeta]{Name: "notes", Path: "n", Source: studio.SourceRemote, Skip: true})
	_, err = DefineStudioConfig(StudioConfig{Collections: []Handle{skipped}})
	assert.NoError(t, err)
}

func TestStudioCommit(t *testing.T) {
	s, err := DefineStudioConfig(StudioConfig{})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Commit(context.Background(), "x"), studio.ErrConfiguration)

	s, err = DefineStudioConfig(StudioConfig{Remote: plainAdapter{memory.New()}})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Commit(context.Background(), "x"), studio.ErrMethodNotImplemented)
}
