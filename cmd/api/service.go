package main

import (
	"context"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
)

type ImageAPIService interface {
	Upload(ctx context.Context, data *model.UploadData) (*model.ImageRecord, error)
	Compress(ctx context.Context, id string) (*model.ImageRecord, error)
	List(ctx context.Context, coll model.Collection) ([]model.ImageRecord, error)
	LoadBlob(ctx context.Context, key string) ([]byte, string, error)
}
