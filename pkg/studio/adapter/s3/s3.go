// Package s3 stores collection files as objects in an S3-compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/secret"
)

const (
	backend       = "s3"
	defaultRegion = "us-east-1"
	contentType   = "text/markdown; charset=utf-8"
)

// Config options for the S3 adapter
type Config struct {
	Bucket       string // S3 bucket name
	Region       string // AWS region, defaults to us-east-1
	Endpoint     string // Optional custom endpoint for S3-compatible services
	UsePathStyle bool   // Use path-style addressing (MinIO)
	Prefix       string // Key prefix every path is stored under

	// Static credentials; the default credential chain is used when unset.
	AccessKeyID     *secret.Box[string]
	SecretAccessKey *secret.Box[string]

	// Create the bucket on Connect if it doesn't exist
	CreateBucketIfNotExist bool

	Logger *slog.Logger
}

// API is the part of the S3 client the adapter uses.
type API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Adapter is an S3 implementation of studio.Adapter. Objects are written
// directly, so nothing is ever pending.
type Adapter struct {
	client   API
	uploader *manager.Uploader
	config   Config
	logger   *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClient replaces the AWS client.
func WithClient(client API) Option {
	return func(a *Adapter) {
		a.client = client
	}
}

// New creates a new S3 adapter. Credentials are resolved here but the bucket
// is only contacted on Connect.
func New(config Config, opts ...Option) (*Adapter, error) {
	if config.Bucket == "" {
		return nil, &studio.ConfigurationError{Subject: "bucket", Reason: "bucket name is required"}
	}
	if config.Region == "" {
		config.Region = defaultRegion
	}
	config.Prefix = strings.Trim(config.Prefix, "/")

	a := &Adapter{config: config, logger: config.Logger}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("backend", backend, "bucket", config.Bucket)

	for _, opt := range opts {
		opt(a)
	}

	if a.client == nil {
		client, err := newClient(config)
		if err != nil {
			return nil, err
		}
		a.client = client
	}
	a.uploader = manager.NewUploader(a.client)
	return a, nil
}

func newClient(config Config) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}

	if config.AccessKeyID != nil && config.SecretAccessKey != nil {
		keyID, err := config.AccessKeyID.Reveal()
		if err != nil {
			return nil, &studio.ConfigurationError{Subject: "access_key_id", Reason: "unusable credential", Err: err}
		}
		secretKey, err := config.SecretAccessKey.Reveal()
		if err != nil {
			return nil, &studio.ConfigurationError{Subject: "secret_access_key", Reason: "unusable credential", Err: err}
		}
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keyID, secretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}
	return s3.NewFromConfig(awsCfg, s3Options...), nil
}

// Config returns the adapter configuration with defaults applied.
func (a *Adapter) Config() Config {
	return a.config
}

// Connect checks the bucket is reachable, creating it when configured to.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.config.CreateBucketIfNotExist {
		if err := a.createBucketIfNotExists(ctx); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	}
	if _, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.config.Bucket)}); err != nil {
		return &studio.ConfigurationError{Subject: a.config.Bucket, Reason: "bucket is not accessible", Err: err}
	}
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	return nil
}

func (a *Adapter) Read(ctx context.Context, p string) (string, error) {
	p = studio.NormalizePath(p)
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(a.key(p)),
	})
	if isNotFound(err) {
		return "", &studio.NotFoundError{Backend: backend, Path: p, Err: err}
	} else if err != nil {
		return "", fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read object %s: %w", p, err)
	}
	return string(data), nil
}

func (a *Adapter) Write(ctx context.Context, p, content string) error {
	p = studio.NormalizePath(p)
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.config.Bucket),
		Key:         aws.String(a.key(p)),
		Body:        strings.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	a.logger.Debug("object written", "path", p)
	return nil
}

// Remove deletes the object. S3 deletes are idempotent, so the object is
// looked up first to report a missing path.
func (a *Adapter) Remove(ctx context.Context, p string) error {
	p = studio.NormalizePath(p)
	key := a.key(p)

	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return &studio.NotFoundError{Backend: backend, Path: p, Err: err}
	} else if err != nil {
		return fmt.Errorf("failed to get object metadata: %w", err)
	}

	_, err = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	a.logger.Debug("object deleted", "path", p)
	return nil
}

// HasPendingChanges is not supported; writes go straight to the bucket.
func (a *Adapter) HasPendingChanges(ctx context.Context) (bool, error) {
	return false, &studio.MethodNotImplementedError{Backend: backend, Method: "HasPendingChanges"}
}

// ReadDir lists the objects directly under dir. A prefix with no objects
// below it is reported as not found.
func (a *Adapter) ReadDir(ctx context.Context, dir string) ([]string, error) {
	dir = strings.TrimSuffix(studio.NormalizePath(dir), "/")
	prefix := a.key(dir)
	if prefix != "" {
		prefix += "/"
	}

	var names []string
	found := false
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(a.config.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}
		if len(page.CommonPrefixes) > 0 {
			found = true
		}
		for _, obj := range page.Contents {
			found = true
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name != "" {
				names = append(names, name)
			}
		}
	}
	if !found {
		return nil, &studio.NotFoundError{Backend: backend, Path: dir}
	}
	sort.Strings(names)
	return names, nil
}

// key maps a collection path to an object key under the prefix.
func (a *Adapter) key(p string) string {
	if p == "." {
		p = ""
	}
	if a.config.Prefix == "" {
		return p
	}
	if p == "" {
		return a.config.Prefix
	}
	return path.Join(a.config.Prefix, p)
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (a *Adapter) createBucketIfNotExists(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.config.Bucket),
	})
	if err == nil {
		return nil
	}
	if !isBucketNotFound(err) {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(a.config.Bucket)}
	// us-east-1 rejects an explicit location constraint
	if a.config.Region != defaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(a.config.Region),
		}
	}

	_, err = a.client.CreateBucket(ctx, input)
	if err != nil {
		var exists *types.BucketAlreadyExists
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &exists) || errors.As(err, &owned) {
			return nil
		}
		return err
	}
	a.logger.Info("created bucket", "region", a.config.Region)
	return nil
}

// isNotFound reports a missing object.
func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	return hasCode(err, "NoSuchKey", "NotFound")
}

func isBucketNotFound(err error) bool {
	var notFound *types.NotFound
	var noBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noBucket) {
		return true
	}
	return hasCode(err, "NoSuchBucket", "NotFound")
}

// hasCode matches the raw error code; S3-compatible services don't always
// map to the modeled types.
func hasCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
