package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-studio/pkg/studio"
)

const backend = "memory"

// Commit records one call to Adapter.Commit.
type Commit struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	Paths   []string  `json:"paths"`
	At      time.Time `json:"at"`
}

// Adapter is an in-memory implementation of studio.Adapter. Writes and
// removals are staged until Commit. With an upstream adapter configured,
// reads fall through to it and Commit pushes staged changes to it.
type Adapter struct {
	mu       sync.RWMutex
	files    map[string]string
	pending  map[string]*string // nil marks a staged removal
	commits  []Commit
	upstream studio.Adapter
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithFiles seeds committed files.
func WithFiles(files map[string]string) Option {
	return func(a *Adapter) {
		for p, content := range files {
			a.files[studio.NormalizePath(p)] = content
		}
	}
}

// WithUpstream makes the adapter a staging layer in front of another backend.
func WithUpstream(upstream studio.Adapter) Option {
	return func(a *Adapter) {
		a.upstream = upstream
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New creates a new in-memory adapter
func New(opts ...Option) *Adapter {
	a := &Adapter{
		files:   make(map[string]string),
		pending: make(map[string]*string),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Connect(ctx context.Context) error {
	if a.upstream != nil {
		return a.upstream.Connect(ctx)
	}
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.upstream != nil {
		return a.upstream.Disconnect(ctx)
	}
	return nil
}

func (a *Adapter) Read(ctx context.Context, p string) (string, error) {
	p = studio.NormalizePath(p)

	a.mu.RLock()
	staged, isStaged := a.pending[p]
	content, committed := a.files[p]
	a.mu.RUnlock()

	switch {
	case isStaged && staged == nil:
		return "", &studio.NotFoundError{Backend: backend, Path: p}
	case isStaged:
		return *staged, nil
	case committed:
		return content, nil
	case a.upstream != nil:
		return a.upstream.Read(ctx, p)
	default:
		return "", &studio.NotFoundError{Backend: backend, Path: p}
	}
}

func (a *Adapter) Write(ctx context.Context, p, content string) error {
	p = studio.NormalizePath(p)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending[p] = &content
	return nil
}

func (a *Adapter) Remove(ctx context.Context, p string) error {
	p = studio.NormalizePath(p)

	if _, err := a.Read(ctx, p); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending[p] = nil
	return nil
}

func (a *Adapter) HasPendingChanges(ctx context.Context) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.pending) > 0, nil
}

// ReadDir lists the files directly under dir, merging staged changes and,
// when the upstream can list, the upstream's files.
func (a *Adapter) ReadDir(ctx context.Context, dir string) ([]string, error) {
	dir = cleanDir(dir)

	names := make(map[string]bool)
	if lister, ok := a.upstream.(studio.Lister); ok {
		upstreamNames, err := lister.ReadDir(ctx, dir)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		for _, n := range upstreamNames {
			names[n] = true
		}
	}

	a.mu.RLock()
	for p := range a.files {
		if path.Dir(p) == dir {
			names[path.Base(p)] = true
		}
	}
	for p, staged := range a.pending {
		if path.Dir(p) == dir {
			names[path.Base(p)] = staged != nil
		}
	}
	a.mu.RUnlock()

	out := make([]string, 0, len(names))
	for n, present := range names {
		if present {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Commit applies staged changes. Upstream writes happen first, so a failed
// push leaves everything staged.
func (a *Adapter) Commit(ctx context.Context, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.pending) == 0 {
		a.logger.Debug("nothing to commit", "backend", backend)
		return nil
	}

	paths := make([]string, 0, len(a.pending))
	for p := range a.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if a.upstream != nil {
		if err := a.push(ctx, paths, message); err != nil {
			return err
		}
	}

	for _, p := range paths {
		if staged := a.pending[p]; staged != nil {
			a.files[p] = *staged
		} else {
			delete(a.files, p)
		}
	}
	clear(a.pending)

	c := Commit{ID: uuid.NewString(), Message: message, Paths: paths, At: a.now()}
	a.commits = append(a.commits, c)
	a.logger.Info("committed changes", "backend", backend, "commit", c.ID, "files", len(paths))
	return nil
}

func (a *Adapter) push(ctx context.Context, paths []string, message string) error {
	for _, p := range paths {
		var err error
		if staged := a.pending[p]; staged != nil {
			err = a.upstream.Write(ctx, p, *staged)
		} else {
			err = a.upstream.Remove(ctx, p)
			if isNotFound(err) {
				err = nil
			}
		}
		if err != nil {
			return fmt.Errorf("failed to push %s: %w", p, err)
		}
	}
	if c, ok := a.upstream.(studio.Committer); ok {
		return c.Commit(ctx, message)
	}
	return nil
}

// Discard drops all staged changes.
func (a *Adapter) Discard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.pending)
}

// Commits returns the commit log, oldest first.
func (a *Adapter) Commits() []Commit {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.commits)
}

func cleanDir(dir string) string {
	dir = studio.NormalizePath(dir)
	if dir == "" {
		return "."
	}
	return path.Clean(dir)
}

func isNotFound(err error) bool {
	return errors.Is(err, studio.ErrNotFound)
}
