// Package api serves a studio's collections over HTTP.
package api

import (
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/collection"
	"github.com/tendant/simple-studio/pkg/studio/frontmatter"
)

// CollectionResponse describes one collection.
type CollectionResponse struct {
	Name       string        `json:"name"`
	Source     studio.Source `json:"source"`
	Path       string        `json:"path"`
	AssetsPath string        `json:"assets_path"`
}

// EntryResponse describes one entry. Content is only set for single entry
// requests.
type EntryResponse struct {
	Slug     string         `json:"slug"`
	Path     string         `json:"path"`
	Fields   map[string]any `json:"fields"`
	Keys     []string       `json:"keys"`
	ReadTime string         `json:"read_time"`
	Issues   []studio.Issue `json:"issues,omitempty"`
	Content  *string        `json:"content,omitempty"`
}

// PutEntryRequest is the request body for creating or replacing an entry
type PutEntryRequest struct {
	Fields  map[string]any `json:"fields"`
	Content string         `json:"content"`
}

// CommitRequest is the request body for committing remote changes
type CommitRequest struct {
	Message string `json:"message"`
}

// Handler handles HTTP requests for a studio's collections
type Handler struct {
	studio *collection.Studio
	logger *slog.Logger
}

// NewHandler creates a new handler over s.
func NewHandler(s *collection.Studio, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{studio: s, logger: logger}
}

// Routes returns the routes for collections, entries and commits
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/collections", h.ListCollections)
	r.Route("/collections/{name}/entries", func(r chi.Router) {
		r.Get("/", h.ListEntries)
		r.Get("/{slug}", h.GetEntry)
		r.Put("/{slug}", h.PutEntry)
		r.Delete("/{slug}", h.DeleteEntry)
	})
	r.Post("/commit", h.Commit)

	return r
}

// ListCollections lists the registered collections in declaration order
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	resp := make([]CollectionResponse, 0)
	for _, name := range h.studio.Names() {
		c, _ := h.studio.Collection(name)
		resp = append(resp, CollectionResponse{
			Name:       c.Name(),
			Source:     c.Source(),
			Path:       c.Path(),
			AssetsPath: c.AssetsPath(),
		})
	}
	render.JSON(w, r, resp)
}

func (h *Handler) collection(r *http.Request) (collection.Handle, error) {
	name := chi.URLParam(r, "name")
	c, ok := h.studio.Collection(name)
	if !ok {
		return nil, &collectionNotFoundError{name: name}
	}
	return c, nil
}

type collectionNotFoundError struct {
	name string
}

func (e *collectionNotFoundError) Error() string {
	return "collection not found: " + e.name
}

func (e *collectionNotFoundError) Unwrap() error {
	return studio.ErrCollectionNotFound
}

// ListEntries lists every entry of a collection in slug map order
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	c, err := h.collection(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	docs, err := c.Documents(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]EntryResponse, 0, len(docs))
	for _, d := range docs {
		resp = append(resp, entryResponse(d, false))
	}
	render.JSON(w, r, resp)
}

// GetEntry returns one entry. With ?format=raw the serialised document is
// returned as markdown.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	c, err := h.collection(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	doc, err := c.Document(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "raw" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(doc.String()))
		return
	}
	render.JSON(w, r, entryResponse(doc, true))
}

// PutEntry creates or replaces an entry. The document is validated before
// it is written.
func (h *Handler) PutEntry(w http.ResponseWriter, r *http.Request) {
	c, err := h.collection(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req PutEntryRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.badRequest(w, r, "invalid request body: "+err.Error())
		return
	}

	slug := chi.URLParam(r, "slug")
	fields := frontmatter.FromMap(req.Fields, h.fieldOrder(r, c, slug, req.Fields)...)
	doc, err := c.PutDocument(r.Context(), slug, fields, req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("entry saved", "collection", c.Name(), "slug", slug)
	render.JSON(w, r, entryResponse(doc, true))
}

// fieldOrder keeps the key order of the entry being replaced, followed by
// new keys sorted by name.
func (h *Handler) fieldOrder(r *http.Request, c collection.Handle, slug string, fields map[string]any) []string {
	var order []string
	existing, err := c.Document(r.Context(), slug)
	if err == nil {
		order = existing.Fields().Keys()
	} else if !errors.Is(err, studio.ErrEntryNotFound) {
		h.logger.Debug("cannot read existing entry", "slug", slug, "error", err)
	}
	return append(order, slices.Sorted(maps.Keys(fields))...)
}

// DeleteEntry removes an entry
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	c, err := h.collection(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	slug := chi.URLParam(r, "slug")
	if err := c.Delete(r.Context(), slug); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("entry deleted", "collection", c.Name(), "slug", slug)
	w.WriteHeader(http.StatusNoContent)
}

// Commit commits pending changes of the remote adapter
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		h.badRequest(w, r, "message is required")
		return
	}
	if err := h.studio.Commit(r.Context(), req.Message); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func entryResponse(d collection.Document, withContent bool) EntryResponse {
	fields := d.Fields()
	resp := EntryResponse{
		Slug:     d.Slug(),
		Path:     d.Path(),
		Fields:   fields.Map(),
		Keys:     fields.Keys(),
		ReadTime: d.ReadTime(),
		Issues:   d.Issues(),
	}
	if withContent {
		content := d.Content()
		resp.Content = &content
	}
	return resp
}
