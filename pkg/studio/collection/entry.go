package collection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/frontmatter"
	"github.com/tendant/simple-studio/pkg/studio/schema"
)

const wordsPerMinute = 200

// EntryInit configures how an entry is validated.
type EntryInit[M any] struct {
	// Schema validates front matter and produces the typed metadata. Without
	// it fields are decoded into M directly.
	Schema studio.Validator[M]
	// Lenient keeps a failed entry loaded with best-effort metadata and
	// records the failure in Issues instead of returning a ValidationError.
	Lenient bool
	Logger  *slog.Logger
}

// Entry is one content document. Its raw text is captured at construction;
// Load parses and validates it.
type Entry[M any] struct {
	path string
	raw  string
	init EntryInit[M]

	mu       sync.RWMutex
	loaded   bool
	fields   *frontmatter.Fields
	metadata M
	content  string
	issues   []studio.Issue
}

// NewEntry reads path through adapter.
func NewEntry[M any](ctx context.Context, adapter studio.Adapter, path string, init EntryInit[M]) (*Entry[M], error) {
	raw, err := adapter.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return ParseEntry(path, raw, init), nil
}

// ParseEntry wraps text that has already been read.
func ParseEntry[M any](path, raw string, init EntryInit[M]) *Entry[M] {
	if init.Logger == nil {
		init.Logger = slog.Default()
	}
	return &Entry[M]{path: path, raw: raw, init: init}
}

// Load splits the raw text into front matter and body and validates the
// front matter. Calls after the first successful one return immediately.
func (e *Entry[M]) Load(ctx context.Context) (*Entry[M], error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded {
		return e, nil
	}

	doc, err := frontmatter.Parse(e.raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", e.path, err)
	}

	metadata, issues, err := e.resolveMetadata(ctx, doc.Fields.Map())
	if err != nil {
		return nil, err
	}

	e.fields = doc.Fields
	e.metadata = metadata
	e.content = doc.Body
	e.issues = issues
	e.loaded = true
	return e, nil
}

func (e *Entry[M]) resolveMetadata(ctx context.Context, input map[string]any) (M, []studio.Issue, error) {
	var issues []studio.Issue
	if e.init.Schema != nil {
		res := e.init.Schema.Validate(ctx, input)
		if res.OK() {
			return res.Value, nil, nil
		}
		issues = res.Issues
	} else {
		metadata, err := schema.Decode[M](input, true)
		if err == nil {
			return metadata, nil, nil
		}
		issues = schema.Issues(err)
	}

	if !e.init.Lenient {
		var zero M
		return zero, nil, &studio.ValidationError{Path: e.path, Issues: issues}
	}

	// best effort: whatever decodes is kept
	metadata, _ := schema.Decode[M](input, true)
	e.init.Logger.Warn("front matter validation failed, keeping unvalidated metadata",
		"path", e.path,
		"issues", len(issues),
		"error", (&studio.ValidationError{Path: e.path, Issues: issues}).Error())
	return metadata, issues, nil
}

// Path returns the location the entry was read from.
func (e *Entry[M]) Path() string {
	return e.path
}

// Raw returns the text as read.
func (e *Entry[M]) Raw() string {
	return e.raw
}

// Slug returns the extension-stripped file name.
func (e *Entry[M]) Slug() string {
	return Slug(e.path)
}

func (e *Entry[M]) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded
}

// Fields returns a copy of the raw front matter in source order.
func (e *Entry[M]) Fields() *frontmatter.Fields {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fields.Clone()
}

// Metadata returns the validated metadata, or the zero value before Load.
func (e *Entry[M]) Metadata() M {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.metadata
}

// MetadataValue is Metadata without the type parameter.
func (e *Entry[M]) MetadataValue() any {
	return e.Metadata()
}

// Content returns the body without front matter, or "" before Load.
func (e *Entry[M]) Content() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.content
}

// Issues returns the validation issues kept by a lenient load.
func (e *Entry[M]) Issues() []studio.Issue {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.issues
}

// ReadTime estimates reading time at 200 words per minute, rounding up.
// It is empty until the entry is loaded with a non-empty body.
func (e *Entry[M]) ReadTime() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.loaded || e.content == "" {
		return ""
	}
	words := len(strings.Fields(e.content))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes <= 1 {
		return "1 minute read"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// Set changes a front-matter field of a loaded entry. Metadata is not
// revalidated; String reflects the change.
func (e *Entry[M]) Set(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fields == nil {
		e.fields = &frontmatter.Fields{}
	}
	e.fields.Set(key, value)
}

// Unset removes a front-matter field of a loaded entry.
func (e *Entry[M]) Unset(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fields.Delete(key)
}

// SetContent replaces the body of a loaded entry.
func (e *Entry[M]) SetContent(body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.content = body
}

// String serializes the entry. Before Load it returns the raw text unchanged.
func (e *Entry[M]) String() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.loaded {
		return e.raw
	}
	return frontmatter.Format(e.fields, e.content)
}

// Slug returns the last segment of path without a trailing .md or .mdx.
func Slug(path string) string {
	name := path[strings.LastIndex(path, "/")+1:]
	if s, ok := strings.CutSuffix(name, ".mdx"); ok {
		return s
	}
	return strings.TrimSuffix(name, ".md")
}

// IsContentFile reports whether name has a .md or .mdx extension.
func IsContentFile(name string) bool {
	return strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".mdx")
}
