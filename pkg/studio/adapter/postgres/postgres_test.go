package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/secret"
)

func TestNewTableName(t *testing.T) {
	a, err := New(nil, Config{})
	require.NoError(t, err)
	assert.Equal(t, `"studio_files"`, a.table)

	a, err = New(nil, Config{Table: "content.files"})
	require.NoError(t, err)
	assert.Equal(t, `"content"."files"`, a.table)

	a, err = New(nil, Config{Table: `evil"; drop table x; --`})
	require.NoError(t, err)
	assert.Equal(t, `"evil""; drop table x; --"`, a.table)

	for _, name := range []string{"a.b.c", ".files", "content."} {
		_, err := New(nil, Config{Table: name})
		assert.ErrorIs(t, err, studio.ErrConfiguration, name)
	}
}

func TestLikePrefix(t *testing.T) {
	assert.Equal(t, "%", likePrefix("."))
	assert.Equal(t, "content/posts/%", likePrefix("content/posts"))
	assert.Equal(t, `my\_posts/100\%/%`, likePrefix("my_posts/100%"))
}

func TestChildFiles(t *testing.T) {
	paths := []string{
		"content/posts/b.mdx",
		"content/posts/a.md",
		"content/posts/img/c.png",
	}
	assert.Equal(t, []string{"a.md", "b.mdx"}, childFiles("content/posts", paths))
	assert.Equal(t, []string{"top.md"}, childFiles(".", []string{"top.md", "content/x.md"}))
	assert.Empty(t, childFiles("content/posts", []string{"content/posts/img/c.png"}))
}

func TestOpenDisposedURL(t *testing.T) {
	url := secret.From("postgres://localhost/db")
	url.Dispose()
	_, err := Open(context.Background(), url, Config{})
	assert.ErrorIs(t, err, studio.ErrConfiguration)
}

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping postgres test: TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, pool.Ping(ctx), "Failed to ping test database")
	t.Cleanup(pool.Close)
	return pool
}

func TestAdapter_Postgres(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	table := fmt.Sprintf("studio_files_test_%d", time.Now().UnixNano())
	a, err := New(pool, Config{Table: table})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+a.table)
	})

	// table is created on connect
	_, err = a.Read(ctx, "x.md")
	assert.ErrorIs(t, err, studio.ErrConfiguration)
	require.NoError(t, a.Connect(ctx))

	_, err = a.Read(ctx, "content/posts/hello.md")
	assert.ErrorIs(t, err, studio.ErrNotFound)

	require.NoError(t, a.Write(ctx, "./content/posts/hello.md", "hello"))
	require.NoError(t, a.Write(ctx, "content/posts/hello.md", "hello again"))
	require.NoError(t, a.Write(ctx, "content/posts/img/logo.svg", "<svg/>"))

	content, err := a.Read(ctx, "content/posts/hello.md")
	require.NoError(t, err)
	assert.Equal(t, "hello again", content)

	names, err := a.ReadDir(ctx, "content/posts")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello.md"}, names)

	_, err = a.ReadDir(ctx, "content/pages")
	assert.ErrorIs(t, err, studio.ErrNotFound)

	require.NoError(t, a.Remove(ctx, "content/posts/hello.md"))
	assert.ErrorIs(t, a.Remove(ctx, "content/posts/hello.md"), studio.ErrNotFound)

	pending, err := a.HasPendingChanges(ctx)
	require.NoError(t, err)
	assert.False(t, pending)
	assert.NoError(t, a.Disconnect(ctx))
}
