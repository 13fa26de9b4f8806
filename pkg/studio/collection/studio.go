package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/tendant/simple-studio/pkg/studio"
)

// StudioConfig declares the collections of a studio.
type StudioConfig struct {
	// Remote serves every collection whose source is remote.
	Remote      studio.Adapter
	Collections []Handle
	Logger      *slog.Logger
}

// Studio is a registry of collections by name.
type Studio struct {
	remote      studio.Adapter
	collections map[string]Handle
	names       []string
	declared    []Handle
	logger      *slog.Logger
}

// DefineStudioConfig builds the registry. Skipped collections are left out;
// two remaining collections with one name are an error.
func DefineStudioConfig(cfg StudioConfig) (*Studio, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Studio{
		remote:      cfg.Remote,
		collections: make(map[string]Handle, len(cfg.Collections)),
		declared:    slices.Clone(cfg.Collections),
		logger:      logger,
	}
	for _, c := range cfg.Collections {
		if c.Skip() {
			logger.Debug("skipping collection", "collection", c.Name())
			continue
		}
		if _, dup := s.collections[c.Name()]; dup {
			return nil, &studio.DuplicateCollectionError{Name: c.Name()}
		}
		if err := c.bindRemote(cfg.Remote); err != nil {
			return nil, err
		}
		s.collections[c.Name()] = c
		s.names = append(s.names, c.Name())
	}
	return s, nil
}

// Get returns the collection called name with metadata type M.
func Get[M any](s *Studio, name string) (*Collection[M], error) {
	h, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", studio.ErrCollectionNotFound, name)
	}
	c, ok := h.(*Collection[M])
	if !ok {
		var zero M
		return nil, &studio.ConfigurationError{
			Subject: name,
			Reason:  fmt.Sprintf("collection is %T, not a collection of %T", h, zero),
		}
	}
	return c, nil
}

// Collection returns the collection called name.
func (s *Studio) Collection(name string) (Handle, bool) {
	h, ok := s.collections[name]
	return h, ok
}

// Collections returns the name-indexed view of the registry. Skipped
// collections are not in it; see Declared.
func (s *Studio) Collections() map[string]Handle {
	return maps.Clone(s.collections)
}

// Names returns collection names in declaration order.
func (s *Studio) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Declared returns every collection given to DefineStudioConfig, skipped
// ones included, in declaration order.
func (s *Studio) Declared() []Handle {
	return slices.Clone(s.declared)
}

func (s *Studio) Remote() studio.Adapter {
	return s.remote
}

// adapters returns every distinct adapter in use, remote first.
func (s *Studio) adapters() ([]studio.Adapter, error) {
	var out []studio.Adapter
	seen := make(map[studio.Adapter]bool)
	add := func(a studio.Adapter) {
		if a != nil && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	add(s.remote)
	for _, name := range s.names {
		a, err := s.collections[name].Adapter()
		if err != nil {
			return nil, err
		}
		add(a)
	}
	return out, nil
}

// Connect connects every adapter the studio uses.
func (s *Studio) Connect(ctx context.Context) error {
	adapters, err := s.adapters()
	if err != nil {
		return err
	}
	for _, a := range adapters {
		if err := a.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect %T: %w", a, err)
		}
	}
	s.logger.Info("studio connected", "collections", len(s.names), "adapters", len(adapters))
	return nil
}

// Disconnect disconnects every adapter, in reverse order, and reports all
// failures.
func (s *Studio) Disconnect(ctx context.Context) error {
	adapters, err := s.adapters()
	if err != nil {
		return err
	}
	var errs []error
	for i := len(adapters) - 1; i >= 0; i-- {
		if err := adapters[i].Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect %T: %w", adapters[i], err))
		}
	}
	return errors.Join(errs...)
}

// Commit commits pending changes on the remote adapter.
func (s *Studio) Commit(ctx context.Context, message string) error {
	if s.remote == nil {
		return &studio.ConfigurationError{Subject: "remote", Reason: "studio has no remote adapter"}
	}
	c, ok := s.remote.(studio.Committer)
	if !ok {
		return &studio.MethodNotImplementedError{Backend: fmt.Sprintf("%T", s.remote), Method: "Commit"}
	}
	return c.Commit(ctx, message)
}
