package github

import "context"

// API is the slice of the GitHub REST API the adapter needs. Missing
// branches and paths are reported as errors matching studio.ErrNotFound.
type API interface {
	DefaultBranch(ctx context.Context, owner, repo string) (string, error)
	// BranchHead returns the commit SHA the branch points at.
	BranchHead(ctx context.Context, owner, repo, branch string) (string, error)
	CreateBranch(ctx context.Context, owner, repo, branch, sha string) error
	// GetContent returns a file or, for a directory, its listing.
	GetContent(ctx context.Context, owner, repo, path, ref string) (*Content, error)
	// PutContent returns the HTTP status of the update.
	PutContent(ctx context.Context, owner, repo, path string, req PutRequest) (int, error)
	DeleteContent(ctx context.Context, owner, repo, path string, req DeleteRequest) (int, error)
}

// Content is either a File or a directory listing.
type Content struct {
	File    *File
	Entries []DirEntry
}

type File struct {
	Content string
	SHA     string
}

type DirEntry struct {
	Name string
	// Type is "file", "dir", "symlink" or "submodule".
	Type string
}

// PutRequest creates a file, or updates it when SHA names the current blob.
type PutRequest struct {
	Message string
	Content []byte
	SHA     string
	Branch  string
}

type DeleteRequest struct {
	Message string
	SHA     string
	Branch  string
}
