package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/services"
	"scribe/internal/textutil"
)

// ObjectStore uploads local audio files and returns durable object URIs the
// recognition provider can read. Recognition must never depend on the
// lifetime of a local filesystem artifact.
type ObjectStore interface {
	Put(ctx context.Context, localPath string) (string, error)
}

// objectPutter is the slice of the minio client the uploader needs.
type objectPutter interface {
	FPutObject(ctx context.Context, bucket, key, path string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Client uploads files to an S3-compatible object store. The default
// configuration targets a GCS interoperability endpoint, so returned URIs
// use the gs scheme unless configured otherwise.
type Client struct {
	putter objectPutter
	bucket string
	prefix string
	scheme string
}

// NewClient constructs an object store client from configuration.
func NewClient(cfg config.Storage) (*Client, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "connect", "object store client", err)
	}
	return &Client{
		putter: minioClient,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		scheme: cfg.URIScheme,
	}, nil
}

// Put uploads localPath under a collision-free key and returns its URI.
func (c *Client) Put(ctx context.Context, localPath string) (string, error) {
	if strings.TrimSpace(c.bucket) == "" {
		return "", services.Wrap(services.ErrConfiguration, "storage", "upload",
			"object store bucket not configured; set storage.bucket or SCRIBE_STORAGE_BUCKET", nil)
	}
	if !fileutil.FileExists(localPath) {
		return "", services.Wrap(services.ErrNotFound, "storage", "upload",
			fmt.Sprintf("local file %s does not exist", localPath), nil)
	}

	key := c.objectKey(localPath)
	opts := minio.PutObjectOptions{ContentType: contentTypeFor(localPath)}
	if _, err := c.putter.FPutObject(ctx, c.bucket, key, localPath, opts); err != nil {
		return "", services.Wrap(services.ErrProvider, "storage", "upload",
			fmt.Sprintf("put %s to bucket %s", filepath.Base(localPath), c.bucket), err)
	}
	return fmt.Sprintf("%s://%s/%s", c.scheme, c.bucket, key), nil
}

func (c *Client) objectKey(localPath string) string {
	id := uuid.New()
	base := textutil.SanitizeObjectKeySegment(filepath.Base(localPath))
	name := hex.EncodeToString(id[:]) + "_" + base
	if c.prefix == "" {
		return name
	}
	return c.prefix + "/" + name
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
