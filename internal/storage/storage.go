// Package storage provides blob persistence for originals and compressed derivatives
package storage

import (
	"context"
	"log"
	"time"

	"github.com/UnendingLoop/ImageCompressor/internal/storage/fsstorage"
	"github.com/UnendingLoop/ImageCompressor/internal/storage/miniostorage"
	"github.com/wb-go/wbf/config"
)

const (
	BackendFS    = "fs"
	BackendMinio = "minio"

	defaultRoot = "./public"
)

// ImageStorage - контракт для работы с хранилищем
type ImageStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Copy(ctx context.Context, srcKey, dstKey string) (int64, error)
}

func NewFromConfig(cfg *config.Config, delay time.Duration) ImageStorage {
	switch cfg.GetString("STORAGE_BACKEND") {
	case BackendMinio:
		return NewImgStorage(cfg, delay)
	default:
		root := cfg.GetString("STORAGE_ROOT")
		if root == "" {
			root = defaultRoot
		}
		log.Printf("Using filesystem IMG-storage at %q", root)
		return fsstorage.NewFSStorage(root)
	}
}

func NewImgStorage(cfg *config.Config, delay time.Duration) *miniostorage.MinioImageStorage {
	success := false
	var client *miniostorage.MinioImageStorage
	var err error

	for !success {
		log.Println("Connecting to IMG-storage...")
		client, err = miniostorage.NewMinioClient(cfg)
		if err != nil {
			log.Printf("Failed to init connection to IMG-storage: %v\nNext retry in %v...", err, delay)
			time.Sleep(delay)
			continue
		}
		log.Println("Successfully connected IMG-storage!")
		success = true
	}

	return client
}
