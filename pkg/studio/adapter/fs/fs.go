package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/spf13/afero"
	"github.com/tendant/simple-studio/pkg/studio"
)

const backend = "fs"

// Config options for the filesystem adapter
type Config struct {
	BaseDir string   // Root that every path is resolved under; defaults to "."
	Fs      afero.Fs // Defaults to the OS filesystem
}

// Adapter is a filesystem implementation of studio.Adapter. Writes land on
// disk immediately, so there is never anything pending.
type Adapter struct {
	mu      sync.RWMutex
	fs      afero.Fs
	baseDir string
}

// New creates a new filesystem adapter
func New(config Config) *Adapter {
	if config.BaseDir == "" {
		config.BaseDir = "."
	}
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	baseDir := filepath.Clean(config.BaseDir)
	if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}
	return &Adapter{
		fs:      config.Fs,
		baseDir: baseDir,
	}
}

// Config returns the adapter's context.
func (a *Adapter) Config() Config {
	return Config{BaseDir: a.baseDir, Fs: a.fs}
}

// Connect checks that the base directory exists.
func (a *Adapter) Connect(ctx context.Context) error {
	info, err := a.fs.Stat(a.baseDir)
	if err != nil {
		return &studio.ConfigurationError{Subject: a.baseDir, Reason: "base directory is not accessible", Err: err}
	}
	if !info.IsDir() {
		return &studio.ConfigurationError{Subject: a.baseDir, Reason: "base directory is not a directory"}
	}
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	return nil
}

func (a *Adapter) Read(ctx context.Context, path string) (string, error) {
	path = studio.NormalizePath(path)
	full, err := a.resolve(path)
	if err != nil {
		return "", err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	info, err := a.fs.Stat(full)
	if errors.Is(err, os.ErrNotExist) {
		return "", &studio.NotFoundError{Backend: backend, Path: path, Err: err}
	} else if err != nil {
		return "", fmt.Errorf("failed to get file info: %w", err)
	}
	if info.IsDir() {
		return "", &studio.NotFoundError{Backend: backend, Path: path}
	}

	data, err := afero.ReadFile(a.fs, full)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

func (a *Adapter) Write(ctx context.Context, path, content string) error {
	path = studio.NormalizePath(path)
	full, err := a.resolve(path)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Create directory structure if it doesn't exist
	if err := a.fs.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := afero.WriteFile(a.fs, full, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (a *Adapter) Remove(ctx context.Context, path string) error {
	path = studio.NormalizePath(path)
	full, err := a.resolve(path)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	info, err := a.fs.Stat(full)
	if errors.Is(err, os.ErrNotExist) {
		return &studio.NotFoundError{Backend: backend, Path: path, Err: err}
	} else if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}
	if info.IsDir() {
		return &studio.NotFoundError{Backend: backend, Path: path}
	}

	if err := a.fs.Remove(full); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// HasPendingChanges is always false: every write is already on disk.
func (a *Adapter) HasPendingChanges(ctx context.Context) (bool, error) {
	return false, nil
}

// ReadDir lists the regular files directly under dir, sorted by name.
func (a *Adapter) ReadDir(ctx context.Context, dir string) ([]string, error) {
	dir = studio.NormalizePath(dir)
	full, err := a.resolve(dir)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	infos, err := afero.ReadDir(a.fs, full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &studio.NotFoundError{Backend: backend, Path: dir, Err: err}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Mode().IsRegular() {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// resolve maps path under the base directory. Symlinks and ".." are
// evaluated so the result never leaves it.
func (a *Adapter) resolve(path string) (string, error) {
	full, err := securejoin.SecureJoin(a.baseDir, path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return full, nil
}
