package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/adapter/memory"
	"github.com/tendant/simple-studio/pkg/studio/collection"
	"github.com/tendant/simple-studio/pkg/studio/schema"
	"github.com/tendant/simple-studio/pkg/studio/secret"
)

// setupHandlerTest creates a router over a studio with one remote collection
// backed by the memory adapter.
func setupHandlerTest(t *testing.T, opts RouterOptions) (http.Handler, *memory.Adapter) {
	t.Helper()
	remote := memory.New(memory.WithFiles(map[string]string{
		"content/posts/hello.md":  "---\ntitle: Hello\ntags: [go, cms]\n---\n\nHello world",
		"content/posts/second.md": "---\ntitle: Second\n---\n\nAgain",
	}))

	validator, err := schema.FromSpec(map[string]schema.FieldSpec{
		"title": {Type: "string"},
		"tags":  {Type: "list", Of: "string", Optional: true},
	})
	require.NoError(t, err)

	posts := collection.Define(collection.Init[map[string]any]{
		Name:   "posts",
		Path:   "content/posts",
		Source: studio.SourceRemote,
		Schema: validator,
	})
	s, err := collection.DefineStudioConfig(collection.StudioConfig{
		Remote:      remote,
		Collections: []collection.Handle{posts},
	})
	require.NoError(t, err)

	router, err := NewRouter(s, opts)
	require.NoError(t, err)
	return router, remote
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthz(t *testing.T) {
	router, _ := setupHandlerTest(t, RouterOptions{})
	w := doRequest(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestListCollections(t *testing.T) {
	router, _ := setupHandlerTest(t, RouterOptions{})
	w := doRequest(t, router, http.MethodGet, "/api/v1/collections", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp []CollectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []CollectionResponse{{
		Name: "posts", Source: studio.SourceRemote, Path: "content/posts", AssetsPath: "./public",
	}}, resp)
}

func TestListEntries(t *testing.T) {
	router, _ := setupHandlerTest(t, RouterOptions{})
	w := doRequest(t, router, http.MethodGet, "/api/v1/collections/posts/entries", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp []EntryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "hello", resp[0].Slug)
	assert.Equal(t, "content/posts/hello.md", resp[0].Path)
	assert.Equal(t, "Hello", resp[0].Fields["title"])
	assert.Equal(t, []string{"title", "tags"}, resp[0].Keys)
	assert.Equal(t, "1 minute read", resp[0].ReadTime)
	assert.Nil(t, resp[0].Content)
	assert.Equal(t, "second", resp[1].Slug)
}

func TestGetEntry(t *testing.T) {
	router, _ := setupHandlerTest(t, RouterOptions{})

	t.Run("JSON", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/collections/posts/entries/hello", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp EntryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Content)
		assert.Equal(t, "Hello world", *resp.Content)
	})

	t.Run("Raw", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/collections/posts/entries/second?format=raw", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/markdown; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, "---\ntitle: Second\n---\n\nAgain", w.Body.String())
	})

	t.Run("MissingEntry", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/collections/posts/entries/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decodeError(t, w).Code)
	})

	t.Run("MissingCollection", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/collections/pages/entries/hello", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPutEntry(t *testing.T) {
	router, remote := setupHandlerTest(t, RouterOptions{})

	t.Run("Create", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPut, "/api/v1/collections/posts/entries/third",
			PutEntryRequest{Fields: map[string]any{"title": "Third", "tags": []string{"new"}}, Content: "Body"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp EntryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "content/posts/third.md", resp.Path)
		assert.Equal(t, []string{"tags", "title"}, resp.Keys)

		pending, err := remote.HasPendingChanges(t.Context())
		require.NoError(t, err)
		assert.True(t, pending)

		w = doRequest(t, router, http.MethodGet, "/api/v1/collections/posts/entries/third", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ReplaceKeepsOrder", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPut, "/api/v1/collections/posts/entries/hello",
			PutEntryRequest{Fields: map[string]any{"tags": []string{"go"}, "title": "Hello again"}, Content: "Updated"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp EntryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, []string{"title", "tags"}, resp.Keys)
	})

	t.Run("Invalid", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPut, "/api/v1/collections/posts/entries/broken",
			PutEntryRequest{Fields: map[string]any{"tags": []string{"x"}}, Content: "No title"})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, "validation_failed", body.Code)
		assert.NotEmpty(t, body.Issues)

		w = doRequest(t, router, http.MethodGet, "/api/v1/collections/posts/entries/broken", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("BadBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/collections/posts/entries/x", bytes.NewReader([]byte("{")))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteAndCommit(t *testing.T) {
	router, remote := setupHandlerTest(t, RouterOptions{})

	w := doRequest(t, router, http.MethodDelete, "/api/v1/collections/posts/entries/second", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, router, http.MethodDelete, "/api/v1/collections/posts/entries/second", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/v1/commit", CommitRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/v1/commit", CommitRequest{Message: "remove second"})
	require.Equal(t, http.StatusNoContent, w.Code)

	commits := remote.Commits()
	require.Len(t, commits, 1)
	assert.Equal(t, "remove second", commits[0].Message)
	assert.Equal(t, []string{"content/posts/second.md"}, commits[0].Paths)
}

func TestCommitWithoutRemote(t *testing.T) {
	s, err := collection.DefineStudioConfig(collection.StudioConfig{})
	require.NoError(t, err)
	router, err := NewRouter(s, RouterOptions{})
	require.NoError(t, err)

	w := doRequest(t, router, http.MethodPost, "/api/v1/commit", CommitRequest{Message: "x"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&studio.NotFoundError{Backend: "fs", Path: "x"}, http.StatusNotFound},
		{&studio.EntryNotFoundError{Collection: "posts", Slug: "x"}, http.StatusNotFound},
		{&studio.ValidationError{Path: "x"}, http.StatusUnprocessableEntity},
		{&studio.MethodNotImplementedError{Backend: "github", Method: "HasPendingChanges"}, http.StatusNotImplemented},
		{&studio.DuplicateSlugError{Collection: "posts", Slug: "x"}, http.StatusConflict},
		{&studio.ConfigurationError{Subject: "x", Reason: "y"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.want, status, tt.err.Error())
	}
}

func TestAuth(t *testing.T) {
	key := secret.From("signing-key")
	router, _ := setupHandlerTest(t, RouterOptions{AuthKey: key})

	w := doRequest(t, router, http.MethodGet, "/api/v1/collections", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// health checks stay open
	w = doRequest(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	_, token, err := jwtauth.New("HS256", []byte("signing-key"), nil).Encode(map[string]interface{}{"sub": "editor"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/collections", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, wrong, err := jwtauth.New("HS256", []byte("other-key"), nil).Encode(map[string]interface{}{"sub": "editor"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/collections", nil)
	req.Header.Set("Authorization", "Bearer "+wrong)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthDisposedKey(t *testing.T) {
	key := secret.From("signing-key")
	key.Dispose()
	_, err := AuthMiddleware(key)
	assert.ErrorIs(t, err, secret.ErrInvalidSecret)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RequestIDMiddleware(RecoveryMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "internal_error", body.Code)
	assert.Equal(t, "req-1", body.RequestID)
}
