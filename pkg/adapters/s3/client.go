// Package s3 implements core.BackupClient on an S3-compatible object store.
// The backup is one object, replaced in full on every upload.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/aretw0/notekeep/pkg/core"
)

// DefaultKey is the object key of the backup document.
const DefaultKey = "notekeep-backup.json"

// Config holds the object store settings.
type Config struct {
	Bucket          string
	Key             string
	Region          string
	Endpoint        string // Empty means AWS.
	PathStyle       bool   // Forced on when Endpoint is set.
	AccessKeyID     string
	SecretAccessKey string
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// Client stores the backup document in a bucket.
type Client struct {
	s3     *s3.Client
	bucket string
	key    string
	access string
	secret string
	logger *slog.Logger
}

// New validates cfg and builds a client. The bearer token handed to each
// call is used as the session token of the configured static credentials.
func New(cfg Config) (*Client, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	region := strings.TrimSpace(cfg.Region)
	access := strings.TrimSpace(cfg.AccessKeyID)
	secret := strings.TrimSpace(cfg.SecretAccessKey)
	if bucket == "" || region == "" || access == "" || secret == "" {
		return nil, fmt.Errorf("incomplete s3 config: bucket/region/access_key_id/secret_access_key are required")
	}
	key := strings.TrimLeft(strings.TrimSpace(cfg.Key), "/")
	if key == "" {
		key = DefaultKey
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	endpoint := strings.TrimSuffix(strings.TrimSpace(cfg.Endpoint), "/")
	pathStyle := cfg.PathStyle || endpoint != ""

	opts := s3.Options{
		Region:                     region,
		Credentials:                credentials.NewStaticCredentialsProvider(access, secret, ""),
		UsePathStyle:               pathStyle,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
	}
	if cfg.HTTPClient != nil {
		opts.HTTPClient = cfg.HTTPClient
	}

	return &Client{
		s3:     s3.New(opts),
		bucket: bucket,
		key:    key,
		access: access,
		secret: secret,
		logger: logger,
	}, nil
}

// UploadBackup writes the collection over the backup object.
func (c *Client) UploadBackup(ctx context.Context, token string, col core.Collection) error {
	content, err := col.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("application/json"),
	}, c.withToken(token))
	if err != nil {
		c.logger.Error("s3 upload failed", "bucket", c.bucket, "key", c.key, "error", err)
		return fmt.Errorf("failed to upload backup: %w", err)
	}
	return nil
}

// GetBackup reads the backup object. A missing object, or one whose notes
// and trashed fields are not arrays, is reported as absent.
func (c *Client) GetBackup(ctx context.Context, token string) (core.Collection, bool, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key),
	}, c.withToken(token))
	if isNotFound(err) {
		return core.Collection{}, false, nil
	}
	if err != nil {
		return core.Collection{}, false, fmt.Errorf("failed to download backup: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return core.Collection{}, false, fmt.Errorf("failed to read backup: %w", err)
	}
	col, ok := core.ParseCollection(data)
	if !ok {
		c.logger.Warn("backup object is malformed", "bucket", c.bucket, "key", c.key)
	}
	return col, ok, nil
}

func (c *Client) withToken(token string) func(*s3.Options) {
	return func(o *s3.Options) {
		o.Credentials = credentials.NewStaticCredentialsProvider(c.access, c.secret, token)
	}
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

var _ core.BackupClient = (*Client)(nil)
