package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/adapter/fs"
	"github.com/tendant/simple-studio/pkg/studio/adapter/github"
	"github.com/tendant/simple-studio/pkg/studio/adapter/memory"
	"github.com/tendant/simple-studio/pkg/studio/adapter/postgres"
	"github.com/tendant/simple-studio/pkg/studio/adapter/s3"
	"github.com/tendant/simple-studio/pkg/studio/collection"
	"github.com/tendant/simple-studio/pkg/studio/schema"
	"github.com/tendant/simple-studio/pkg/studio/secret"
)

// Logger builds a text or JSON slog logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// BuildRemote creates the remote adapter, or nil when none is configured.
// Secrets are read from the environment variables the configuration names.
func (c *Config) BuildRemote(ctx context.Context, logger *slog.Logger) (studio.Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := c.Remote
	switch r.Type {
	case RemoteNone:
		return nil, nil

	case RemoteGitHub:
		token, err := secret.FromEnv(r.GitHub.TokenEnv)
		if err != nil {
			return nil, err
		}
		a, err := github.New(github.Config{
			Repo:    r.GitHub.Repo,
			Branch:  r.GitHub.Branch,
			Token:   token,
			BaseURL: r.GitHub.BaseURL,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return a, nil

	case RemoteS3:
		cfg := s3.Config{
			Bucket:                 r.S3.Bucket,
			Region:                 r.S3.Region,
			Endpoint:               r.S3.Endpoint,
			Prefix:                 r.S3.Prefix,
			UsePathStyle:           r.S3.UsePathStyle,
			CreateBucketIfNotExist: r.S3.CreateBucketIfNotExist,
			Logger:                 logger,
		}
		// Without both keys the default credential chain applies.
		keyID, secretKey := optionalSecret(r.S3.AccessKeyIDEnv), optionalSecret(r.S3.SecretAccessKeyEnv)
		if keyID != nil && secretKey != nil {
			cfg.AccessKeyID = keyID
			cfg.SecretAccessKey = secretKey
		}
		a, err := s3.New(cfg)
		if err != nil {
			return nil, err
		}
		return a, nil

	case RemotePostgres:
		url, err := secret.FromEnv(r.Postgres.URLEnv)
		if err != nil {
			return nil, err
		}
		a, err := postgres.Open(ctx, url, postgres.Config{Table: r.Postgres.Table, Logger: logger})
		if err != nil {
			return nil, err
		}
		return a, nil

	case RemoteMemory:
		return memory.New(memory.WithLogger(logger)), nil

	case RemoteFS:
		return fs.New(fs.Config{BaseDir: r.FS.BaseDir}), nil
	}
	return nil, &studio.ConfigurationError{Subject: "remote.type", Reason: fmt.Sprintf("unsupported remote type %q", r.Type)}
}

// optionalSecret returns nil when the variable is unnamed or unset.
func optionalSecret(name string) *secret.Box[string] {
	if name == "" {
		return nil
	}
	box, err := secret.FromEnv(name)
	if err != nil {
		return nil
	}
	return box
}

// BuildStudio builds the remote adapter and a registry of the configured
// collections. Entries decode into map[string]any; a declared schema is
// validated with schema.FromSpec.
func (c *Config) BuildStudio(ctx context.Context, logger *slog.Logger) (*collection.Studio, error) {
	if logger == nil {
		logger = slog.Default()
	}
	remote, err := c.BuildRemote(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build remote adapter: %w", err)
	}

	fail := func(err error) (*collection.Studio, error) {
		if remote != nil {
			if derr := remote.Disconnect(context.WithoutCancel(ctx)); derr != nil {
				logger.Warn("failed to release remote adapter", "error", derr)
			}
		}
		return nil, err
	}

	local := fs.New(fs.Config{BaseDir: c.Root})
	handles := make([]collection.Handle, 0, len(c.Collections))
	for _, col := range c.Collections {
		init := collection.Init[map[string]any]{
			Name:       col.Name,
			Path:       strings.TrimSuffix(col.Path, "/"),
			AssetsPath: col.AssetsPath,
			Skip:       col.Skip,
			Source:     col.Source,
			Lenient:    col.Lenient,
			Logger:     logger,
		}
		if col.Source == studio.SourceFS {
			init.Adapter = local
		}
		if len(col.Schema) > 0 {
			validator, err := schema.FromSpec(col.Schema)
			if err != nil {
				return fail(&studio.ConfigurationError{Subject: col.Name, Reason: "invalid schema", Err: err})
			}
			init.Schema = validator
		}
		handles = append(handles, collection.Define(init))
	}

	s, err := collection.DefineStudioConfig(collection.StudioConfig{
		Remote:      remote,
		Collections: handles,
		Logger:      logger,
	})
	if err != nil {
		return fail(err)
	}
	return s, nil
}
