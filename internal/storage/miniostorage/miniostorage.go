// Package miniostorage provides structure to work with minio-storage
package miniostorage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
)

const (
	defaultBucket   = "photos"
	defaultEndpoint = "localhost:9000"
)

type Config struct {
	Endpoint string
	User     string
	Password string
	Bucket   string
	UseSSL   bool
}

// ConfigFrom reads MINIO_* and BUCKET_NAME keys, filling in defaults
func ConfigFrom(cfg *config.Config) Config {
	c := Config{
		Endpoint: cfg.GetString("MINIO_ENDPOINT"),
		User:     cfg.GetString("MINIO_USER"),
		Password: cfg.GetString("MINIO_PASS"),
		Bucket:   cfg.GetString("BUCKET_NAME"),
		UseSSL:   strings.EqualFold(cfg.GetString("MINIO_USE_SSL"), "true"),
	}
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	if c.Bucket == "" {
		c.Bucket = defaultBucket
		zlog.Logger.Warn().Str("bucket", c.Bucket).Msg("Bucket name is empty, using default")
	}
	return c
}

type MinioStorage struct {
	bucket string
	client *minio.Client
}

func NewMinioClient(ctx context.Context, c Config) (*MinioStorage, error) {
	// подключаемся к минио - создаем клиента
	strg, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.User, c.Password, ""),
		Secure: c.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	// создаем бакет если его нет
	if err := ensureBucket(ctx, strg, c.Bucket); err != nil {
		zlog.Logger.Error().Err(err).Str("bucket", c.Bucket).Msg("Failed to create bucket in MinIO")
		return nil, err
	}

	return &MinioStorage{bucket: c.Bucket, client: strg}, nil
}

func (s *MinioStorage) Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error {
	if r == nil {
		return errors.New("nil reader passed to storage.Put")
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return err
	}

	return nil
}

func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	res, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}

	resStat, err := res.Stat()
	if err != nil {
		_ = res.Close()
		return nil, "", err
	}

	return res, resStat.ContentType, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}
