package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/adapter/memory"
	"github.com/tendant/simple-studio/pkg/studio/collection"
)

func setupSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"content/posts/hello.md":   "---\ntitle: Hello\n---\n\nHello world",
		"content/posts/second.mdx": "---\ntitle: Second\ndraft: true\n---\n\nAgain",
	}
	for p, content := range files {
		full := filepath.Join(root, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}

	cfg := fmt.Sprintf(`
root: %s
remote:
  type: memory
collections:
  - name: posts
    path: content/posts
    schema:
      title: {type: string}
      draft: {type: bool, default: false}
`, root)
	path := filepath.Join(root, "studio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCollectionsCommand(t *testing.T) {
	cfg := setupSite(t)
	out, err := run(t, "--config", cfg, "collections")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "posts")
	assert.Contains(t, out, "content/posts")
}

func TestEntriesCommand(t *testing.T) {
	cfg := setupSite(t)
	out, err := run(t, "--config", cfg, "entries", "posts")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "content/posts/second.mdx")
	assert.Contains(t, out, "1 minute read")

	_, err = run(t, "--config", cfg, "entries", "pages")
	assert.ErrorIs(t, err, studio.ErrCollectionNotFound)
}

func TestShowCommand(t *testing.T) {
	cfg := setupSite(t)

	out, err := run(t, "--config", cfg, "show", "posts", "hello")
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: Hello\n---\n\nHello world\n", out)

	out, err = run(t, "--config", cfg, "show", "posts", "second", "--json")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "second", doc["slug"])
	assert.Equal(t, "Again", doc["content"])

	_, err = run(t, "--config", cfg, "show", "posts", "missing")
	assert.ErrorIs(t, err, studio.ErrEntryNotFound)
}

func TestCommitCommand(t *testing.T) {
	cfg := setupSite(t)

	_, err := run(t, "--config", cfg, "commit")
	assert.Error(t, err)

	out, err := run(t, "--config", cfg, "commit", "-m", "nothing to do")
	require.NoError(t, err)
	assert.Contains(t, out, "Committed.")
}

func TestLogFlags(t *testing.T) {
	cfg := setupSite(t)
	_, err := run(t, "--config", cfg, "--log-level", "loud", "collections")
	assert.ErrorIs(t, err, studio.ErrConfiguration)

	_, err = run(t, "--config", cfg, "--log-format", "json", "--log-level", "debug", "collections")
	assert.NoError(t, err)
}

// unreachableRemote fails to connect and records disconnects.
type unreachableRemote struct {
	*memory.Adapter
	disconnects int
}

func (u *unreachableRemote) Connect(ctx context.Context) error {
	return errors.New("connection refused")
}

func (u *unreachableRemote) Disconnect(ctx context.Context) error {
	u.disconnects++
	return nil
}

func TestConnectFailureReleasesAdapters(t *testing.T) {
	remote := &unreachableRemote{Adapter: memory.New()}
	s, err := collection.DefineStudioConfig(collection.StudioConfig{Remote: remote})
	require.NoError(t, err)

	err = connect(context.Background(), s, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, remote.disconnects)
}
