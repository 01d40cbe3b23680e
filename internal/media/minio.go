// Package media uploads guide images and videos to object storage. The core
// only ever stores the returned URL string; the binary never touches the
// database.
package media

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Uploader struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewUploader connects to MinIO and ensures the bucket exists.
func NewUploader(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Uploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to minio: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return &Uploader{
		client:  client,
		bucket:  bucket,
		baseURL: scheme + "://" + endpoint + "/" + bucket,
	}, nil
}

// Upload stores a blob under the destination key and returns its durable URL.
func (u *Uploader) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key = strings.TrimPrefix(key, "/")
	_, err := u.client.PutObject(ctx, u.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return u.baseURL + "/" + key, nil
}
