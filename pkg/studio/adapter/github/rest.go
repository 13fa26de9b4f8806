package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v66/github"
	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/secret"
)

const maxBranchRedirects = 3

// RESTConfig configures the go-github backed API.
type RESTConfig struct {
	Token      *secret.Box[string]
	BaseURL    string
	HTTPClient *http.Client
}

// REST implements API with google/go-github.
type REST struct {
	client *gh.Client
}

// NewREST creates the production API client. The token is revealed per
// request by the transport, never stored in plain form.
func NewREST(cfg RESTConfig) (*REST, error) {
	base := http.DefaultTransport
	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		*httpClient = *cfg.HTTPClient
		if cfg.HTTPClient.Transport != nil {
			base = cfg.HTTPClient.Transport
		}
	}
	if cfg.Token != nil {
		httpClient.Transport = &tokenTransport{token: cfg.Token, base: base}
	}

	client := gh.NewClient(httpClient)
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, &studio.ConfigurationError{Subject: "base_url", Reason: "invalid GitHub URL", Err: err}
		}
	}
	return &REST{client: client}, nil
}

type tokenTransport struct {
	token *secret.Box[string]
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.token.Reveal()
	if err != nil {
		return nil, fmt.Errorf("github token: %w", err)
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(req)
}

func (r *REST) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	repository, resp, err := r.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", notFound(resp, owner+"/"+repo, err)
	}
	return repository.GetDefaultBranch(), nil
}

func (r *REST) BranchHead(ctx context.Context, owner, repo, branch string) (string, error) {
	b, resp, err := r.client.Repositories.GetBranch(ctx, owner, repo, branch, maxBranchRedirects)
	if err != nil {
		return "", notFound(resp, "refs/heads/"+branch, err)
	}
	return b.GetCommit().GetSHA(), nil
}

func (r *REST) CreateBranch(ctx context.Context, owner, repo, branch, sha string) error {
	_, _, err := r.client.Git.CreateRef(ctx, owner, repo, &gh.Reference{
		Ref:    gh.String("refs/heads/" + branch),
		Object: &gh.GitObject{SHA: gh.String(sha)},
	})
	return err
}

func (r *REST) GetContent(ctx context.Context, owner, repo, path, ref string) (*Content, error) {
	file, dir, resp, err := r.client.Repositories.GetContents(ctx, owner, repo, path, &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, notFound(resp, path, err)
	}
	if file != nil {
		text, err := file.GetContent()
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return &Content{File: &File{Content: text, SHA: file.GetSHA()}}, nil
	}

	entries := make([]DirEntry, 0, len(dir))
	for _, e := range dir {
		entries = append(entries, DirEntry{Name: e.GetName(), Type: e.GetType()})
	}
	return &Content{Entries: entries}, nil
}

// PutContent sends the file; go-github base64-encodes Content on the wire.
func (r *REST) PutContent(ctx context.Context, owner, repo, path string, req PutRequest) (int, error) {
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.String(req.Message),
		Content: req.Content,
		Branch:  gh.String(req.Branch),
	}
	if req.SHA != "" {
		opts.SHA = gh.String(req.SHA)
	}
	_, resp, err := r.client.Repositories.CreateFile(ctx, owner, repo, path, opts)
	return status(resp), err
}

func (r *REST) DeleteContent(ctx context.Context, owner, repo, path string, req DeleteRequest) (int, error) {
	_, resp, err := r.client.Repositories.DeleteFile(ctx, owner, repo, path, &gh.RepositoryContentFileOptions{
		Message: gh.String(req.Message),
		SHA:     gh.String(req.SHA),
		Branch:  gh.String(req.Branch),
	})
	return status(resp), err
}

func status(resp *gh.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

// notFound maps a 404 response to studio.NotFoundError.
func notFound(resp *gh.Response, path string, err error) error {
	code := status(resp)
	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		code = errResp.Response.StatusCode
	}
	if code == http.StatusNotFound {
		return &studio.NotFoundError{Backend: backend, Path: path, Err: err}
	}
	return err
}
