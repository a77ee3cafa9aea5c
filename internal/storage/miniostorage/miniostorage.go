// Package miniostorage provides structure to work with minio-storage
package miniostorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/config"
)

type MinioImageStorage struct {
	bucket string
	client *minio.Client
}

func NewMinioClient(cfg *config.Config) (*MinioImageStorage, error) {
	bucket := cfg.GetString("BUCKET_NAME")

	if bucket == "" {
		bucket = "images"
		log.Printf("Bucket name is empty. Using default value %q...", bucket)
	}

	user := cfg.GetString("MINIO_USER")
	pass := cfg.GetString("MINIO_PASS")
	endpoint := cfg.GetString("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}

	// подключаемся к минио - создаем клиента
	strg, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(user, pass, ""),
		Secure: cfg.GetString("MINIO_SECURE") == "true",
	})
	if err != nil {
		return nil, err
	}

	// создаем бакет если его нет
	if err := ensureBucket(context.Background(), strg, bucket); err != nil {
		log.Println("Failed to create bucket in MinIO:", err)
		return nil, err
	}

	return &MinioImageStorage{bucket: bucket, client: strg}, nil
}

func (s *MinioImageStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if data == nil {
		return errors.New("nil payload passed to storage.Put")
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return fmt.Errorf("failed to put %q to bucket %q: %w", key, s.bucket, err)
	}

	return nil
}

func (s *MinioImageStorage) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioErr(key, err)
	}
	defer func() {
		if err := obj.Close(); err != nil {
			log.Println("Storage failed to close object:", err)
		}
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapMinioErr(key, err)
	}
	return data, nil
}

// Copy is done server-side, the copied length comes from the destination stat
func (s *MinioImageStorage) Copy(ctx context.Context, srcKey, dstKey string) (int64, error) {
	info, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey},
	)
	if err != nil {
		return 0, mapMinioErr(srcKey, err)
	}

	if info.Size > 0 {
		return info.Size, nil
	}

	stat, err := s.client.StatObject(ctx, s.bucket, dstKey, minio.StatObjectOptions{})
	if err != nil {
		return 0, mapMinioErr(dstKey, err)
	}
	return stat.Size, nil
}

func mapMinioErr(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %q", model.ErrBlobNotFound, key)
	}
	return fmt.Errorf("minio request for %q failed: %w", key, err)
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
