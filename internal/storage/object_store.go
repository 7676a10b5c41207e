package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"coursehub/internal/config"
	"coursehub/internal/models"
)

type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	bucket := s.cfg.BucketAvatars
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// PutAvatar uploads an avatar object and returns its {publicId, url} pair.
// The public id is the object key inside the avatar bucket.
func (s *ObjectStore) PutAvatar(ctx context.Context, key string, body io.Reader, size int64, contentType string) (models.Avatar, error) {
	_, err := s.client.PutObject(ctx, s.cfg.BucketAvatars, key, body, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return models.Avatar{}, fmt.Errorf("put object: %w", err)
	}
	return models.Avatar{PublicID: key, URL: s.PublicURL(key)}, nil
}

func (s *ObjectStore) RemoveAvatar(ctx context.Context, publicID string) error {
	if err := s.client.RemoveObject(ctx, s.cfg.BucketAvatars, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func (s *ObjectStore) PublicURL(key string) string {
	return PublicURL(s.cfg, key)
}

// PublicURL prefers the configured CDN base and otherwise addresses the
// object path-style on the storage endpoint.
func PublicURL(cfg config.StorageConfig, key string) string {
	if base := strings.TrimSuffix(cfg.PublicBaseURL, "/"); base != "" {
		return fmt.Sprintf("%s/%s", base, key)
	}
	base := strings.TrimSuffix(cfg.Endpoint, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		scheme := "http://"
		if cfg.UseSSL {
			scheme = "https://"
		}
		base = scheme + base
	}
	return fmt.Sprintf("%s/%s/%s", base, cfg.BucketAvatars, key)
}
