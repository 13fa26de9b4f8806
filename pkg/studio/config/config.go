// Package config loads a studio definition from a YAML file and the
// environment, and builds the remote adapter and collection registry it
// describes.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/collection"
	"github.com/tendant/simple-studio/pkg/studio/schema"
)

// Remote adapter types.
const (
	RemoteNone     = ""
	RemoteGitHub   = "github"
	RemoteS3       = "s3"
	RemotePostgres = "postgres"
	RemoteMemory   = "memory"
	RemoteFS       = "fs"
)

var (
	remoteTypes = []string{RemoteNone, RemoteGitHub, RemoteS3, RemotePostgres, RemoteMemory, RemoteFS}
	logLevels   = []string{"debug", "info", "warn", "error"}
	logFormats  = []string{"text", "json"}
)

// Config is the root of a studio configuration file.
type Config struct {
	// Root is the directory fs collections are read from.
	Root        string             `yaml:"root" env:"STUDIO_ROOT" env-default:"."`
	Server      ServerConfig       `yaml:"server"`
	Log         LogConfig          `yaml:"log"`
	Remote      RemoteConfig       `yaml:"remote"`
	Collections []CollectionConfig `yaml:"collections"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" env:"STUDIO_ADDR" env-default:":8080"`
	// JWTSecretEnv names the variable holding the HS256 key. Requests are
	// not authenticated when it is empty.
	JWTSecretEnv string `yaml:"jwt_secret_env" env:"STUDIO_JWT_SECRET_ENV"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"STUDIO_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"STUDIO_LOG_FORMAT" env-default:"text"`
}

// RemoteConfig selects and configures the adapter shared by every remote
// collection. Credentials are given as names of environment variables.
type RemoteConfig struct {
	Type     string         `yaml:"type" env:"STUDIO_REMOTE_TYPE"`
	GitHub   GitHubConfig   `yaml:"github"`
	S3       S3Config       `yaml:"s3"`
	Postgres PostgresConfig `yaml:"postgres"`
	FS       FSConfig       `yaml:"fs"`
}

type GitHubConfig struct {
	Repo     string `yaml:"repo" env:"STUDIO_GITHUB_REPO"`
	Branch   string `yaml:"branch" env:"STUDIO_GITHUB_BRANCH" env-default:"main"`
	TokenEnv string `yaml:"token_env" env-default:"GITHUB_TOKEN"`
	BaseURL  string `yaml:"base_url" env:"STUDIO_GITHUB_BASE_URL"`
}

type S3Config struct {
	Bucket                 string `yaml:"bucket" env:"STUDIO_S3_BUCKET"`
	Region                 string `yaml:"region" env:"STUDIO_S3_REGION" env-default:"us-east-1"`
	Endpoint               string `yaml:"endpoint" env:"STUDIO_S3_ENDPOINT"`
	Prefix                 string `yaml:"prefix" env:"STUDIO_S3_PREFIX"`
	UsePathStyle           bool   `yaml:"use_path_style" env:"STUDIO_S3_USE_PATH_STYLE"`
	AccessKeyIDEnv         string `yaml:"access_key_id_env" env-default:"AWS_ACCESS_KEY_ID"`
	SecretAccessKeyEnv     string `yaml:"secret_access_key_env" env-default:"AWS_SECRET_ACCESS_KEY"`
	CreateBucketIfNotExist bool   `yaml:"create_bucket_if_not_exist"`
}

type PostgresConfig struct {
	URLEnv string `yaml:"url_env" env-default:"DATABASE_URL"`
	Table  string `yaml:"table" env:"STUDIO_PG_TABLE" env-default:"studio_files"`
}

type FSConfig struct {
	BaseDir string `yaml:"base_dir" env:"STUDIO_FS_BASE_DIR" env-default:"."`
}

// CollectionConfig declares one collection. Its schema is given field by
// field; entries of a collection without one keep their raw front matter.
type CollectionConfig struct {
	Name       string                      `yaml:"name"`
	Path       string                      `yaml:"path"`
	Source     studio.Source               `yaml:"source"`
	AssetsPath string                      `yaml:"assets_path"`
	Skip       bool                        `yaml:"skip"`
	Lenient    bool                        `yaml:"lenient"`
	Schema     map[string]schema.FieldSpec `yaml:"schema"`
}

// Load reads the file at path, then the environment on top of it. With an
// empty path only the environment is read.
func Load(path string) (*Config, error) {
	var cfg Config
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&cfg)
	} else {
		err = cleanenv.ReadConfig(path, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills what env-default tags cannot reach inside slices.
func (c *Config) applyDefaults() {
	for i := range c.Collections {
		col := &c.Collections[i]
		if col.Source == "" {
			col.Source = studio.SourceFS
		}
		if col.AssetsPath == "" {
			col.AssetsPath = collection.DefaultAssetsPath
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level must be one of %s", strings.Join(logLevels, ", ")))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of %s", strings.Join(logFormats, ", ")))
	}
	if !slices.Contains(remoteTypes, c.Remote.Type) {
		errs = append(errs, fmt.Errorf("unsupported remote type %q", c.Remote.Type))
	}
	switch c.Remote.Type {
	case RemoteGitHub:
		if c.Remote.GitHub.Repo == "" {
			errs = append(errs, errors.New("remote.github.repo is required"))
		}
	case RemoteS3:
		if c.Remote.S3.Bucket == "" {
			errs = append(errs, errors.New("remote.s3.bucket is required"))
		}
	case RemotePostgres:
		if c.Remote.Postgres.URLEnv == "" {
			errs = append(errs, errors.New("remote.postgres.url_env is required"))
		}
	}

	seen := make(map[string]bool, len(c.Collections))
	for i, col := range c.Collections {
		if col.Name == "" {
			errs = append(errs, fmt.Errorf("collections[%d]: name is required", i))
			continue
		}
		if col.Path == "" {
			errs = append(errs, fmt.Errorf("collection %q: path is required", col.Name))
		}
		if !col.Source.Valid() {
			errs = append(errs, fmt.Errorf("collection %q: unknown source %q", col.Name, col.Source))
		}
		if _, err := schema.FromSpec(col.Schema); err != nil {
			errs = append(errs, fmt.Errorf("collection %q: %w", col.Name, err))
		}
		if col.Skip {
			continue
		}
		if seen[col.Name] {
			errs = append(errs, &studio.DuplicateCollectionError{Name: col.Name})
		}
		seen[col.Name] = true
		if col.Source == studio.SourceRemote && c.Remote.Type == RemoteNone {
			errs = append(errs, fmt.Errorf("collection %q: remote source requires remote.type", col.Name))
		}
	}

	if len(errs) > 0 {
		return &studio.ConfigurationError{Subject: "config", Reason: "invalid configuration", Err: errors.Join(errs...)}
	}
	return nil
}
