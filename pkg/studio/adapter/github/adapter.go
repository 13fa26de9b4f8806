// Package github stores collection files in a GitHub repository branch.
//
// Every Write and Remove is its own commit on the configured branch, so
// Commit has nothing left to do and there is never local pending state.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/secret"
)

const (
	backend       = "github"
	defaultBranch = "main"
	// TokenEnv is consulted when no token is configured.
	TokenEnv = "GITHUB_TOKEN"
)

// RepoContext identifies where the adapter reads and writes.
type RepoContext struct {
	Owner  string
	Name   string
	Branch string
	Token  *secret.Box[string]
}

// Repo returns "owner/name".
func (r RepoContext) Repo() string {
	return r.Owner + "/" + r.Name
}

// Config options for the GitHub adapter
type Config struct {
	// Repo is "owner/name"
	Repo string
	// Branch defaults to "main" and is created from the default branch on
	// Connect when missing
	Branch string
	// Token defaults to the GITHUB_TOKEN environment variable
	Token *secret.Box[string]
	// BaseURL points at a GitHub Enterprise server
	BaseURL string
	Logger  *slog.Logger
}

// Adapter implements studio.Adapter on the GitHub contents API.
type Adapter struct {
	repo       RepoContext
	api        API
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithAPI replaces the REST client, typically with a fake in tests.
func WithAPI(api API) Option {
	return func(a *Adapter) {
		a.api = api
	}
}

// WithHTTPClient sets the HTTP client used by the REST client.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) {
		a.httpClient = client
	}
}

// New creates a GitHub adapter. It performs no network calls.
func New(cfg Config, opts ...Option) (*Adapter, error) {
	owner, name, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, &studio.ConfigurationError{
			Subject: "repo",
			Reason:  fmt.Sprintf("invalid repository %q, expected owner/repo", cfg.Repo),
		}
	}
	if cfg.Branch == "" {
		cfg.Branch = defaultBranch
	}

	a := &Adapter{
		repo:   RepoContext{Owner: owner, Name: name, Branch: cfg.Branch, Token: cfg.Token},
		logger: cfg.Logger,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("backend", backend, "repo", a.repo.Repo(), "branch", a.repo.Branch)

	for _, opt := range opts {
		opt(a)
	}

	if a.api == nil {
		if a.repo.Token == nil {
			token, err := secret.FromEnv(TokenEnv)
			if err != nil {
				return nil, err
			}
			a.repo.Token = token
		}
		api, err := NewREST(RESTConfig{Token: a.repo.Token, BaseURL: cfg.BaseURL, HTTPClient: a.httpClient})
		if err != nil {
			return nil, err
		}
		a.api = api
	}
	return a, nil
}

// Context returns the repository the adapter is bound to.
func (a *Adapter) Context() RepoContext {
	return a.repo
}

// Connect makes sure the configured branch exists, creating it at the head
// of the default branch when it does not.
func (a *Adapter) Connect(ctx context.Context) error {
	return a.ensureBranch(ctx)
}

func (a *Adapter) ensureBranch(ctx context.Context) error {
	r := a.repo
	def, err := a.api.DefaultBranch(ctx, r.Owner, r.Name)
	if err != nil {
		return fmt.Errorf("failed to get repository %s: %w", r.Repo(), err)
	}
	if def == r.Branch {
		return nil
	}

	_, err = a.api.BranchHead(ctx, r.Owner, r.Name, r.Branch)
	if err == nil {
		return nil
	}
	if !errors.Is(err, studio.ErrNotFound) {
		return fmt.Errorf("failed to get branch %s: %w", r.Branch, err)
	}

	sha, err := a.api.BranchHead(ctx, r.Owner, r.Name, def)
	if err != nil {
		return fmt.Errorf("failed to get default branch %s: %w", def, err)
	}
	if err := a.api.CreateBranch(ctx, r.Owner, r.Name, r.Branch, sha); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", r.Branch, err)
	}
	a.logger.Info("created branch", "from", def, "sha", sha)
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	return nil
}

func (a *Adapter) Read(ctx context.Context, path string) (string, error) {
	path = studio.NormalizePath(path)
	file, err := a.file(ctx, path)
	if err != nil {
		return "", err
	}
	return file.Content, nil
}

// file fetches path and fails with NotFoundError unless it is a file.
func (a *Adapter) file(ctx context.Context, path string) (*File, error) {
	content, err := a.api.GetContent(ctx, a.repo.Owner, a.repo.Name, path, a.repo.Branch)
	if errors.Is(err, studio.ErrNotFound) {
		return nil, &studio.NotFoundError{Backend: backend, Path: path, Err: err}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}
	if content.File == nil {
		return nil, &studio.NotFoundError{Backend: backend, Path: path}
	}
	return content.File, nil
}

// Write creates or updates path with a commit of its own.
func (a *Adapter) Write(ctx context.Context, path, content string) error {
	path = studio.NormalizePath(path)

	var sha string
	existing, err := a.file(ctx, path)
	switch {
	case err == nil:
		sha = existing.SHA
	case errors.Is(err, studio.ErrNotFound):
	default:
		return err
	}

	status, err := a.api.PutContent(ctx, a.repo.Owner, a.repo.Name, path, PutRequest{
		Message: fmt.Sprintf("Update %s via Studio GitHub Adapter", path),
		Content: []byte(content),
		SHA:     sha,
		Branch:  a.repo.Branch,
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("failed to write %s: unexpected status %d", path, status)
	}
	a.logger.Debug("file written", "path", path, "status", status)
	return nil
}

// Remove deletes path with a commit of its own.
func (a *Adapter) Remove(ctx context.Context, path string) error {
	path = studio.NormalizePath(path)

	existing, err := a.file(ctx, path)
	if err != nil {
		return err
	}

	status, err := a.api.DeleteContent(ctx, a.repo.Owner, a.repo.Name, path, DeleteRequest{
		Message: fmt.Sprintf("Delete %s via Studio GitHub Adapter", path),
		SHA:     existing.SHA,
		Branch:  a.repo.Branch,
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("failed to delete %s: unexpected status %d", path, status)
	}
	a.logger.Debug("file deleted", "path", path)
	return nil
}

// ReadDir lists the files directly under dir.
func (a *Adapter) ReadDir(ctx context.Context, dir string) ([]string, error) {
	dir = strings.TrimSuffix(studio.NormalizePath(dir), "/")
	content, err := a.api.GetContent(ctx, a.repo.Owner, a.repo.Name, dir, a.repo.Branch)
	if errors.Is(err, studio.ErrNotFound) {
		return nil, &studio.NotFoundError{Backend: backend, Path: dir, Err: err}
	} else if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	if content.File != nil {
		return nil, &studio.NotFoundError{Backend: backend, Path: dir}
	}

	var names []string
	for _, e := range content.Entries {
		if e.Type == "file" {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Commit does nothing: each Write and Remove is already a commit.
func (a *Adapter) Commit(ctx context.Context, message string) error {
	a.logger.Info("commit requested, changes are already committed", "message", message)
	return nil
}

// HasPendingChanges is not supported; nothing is ever held locally.
func (a *Adapter) HasPendingChanges(ctx context.Context) (bool, error) {
	return false, &studio.MethodNotImplementedError{Backend: backend, Method: "HasPendingChanges"}
}
