package transport

import (
	"context"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/gin-gonic/gin"
)

type mockImageService struct {
	uploadFn   func(ctx context.Context, d *model.UploadData) (*model.ImageRecord, error)
	compressFn func(ctx context.Context, id string) (*model.ImageRecord, error)
	listFn     func(ctx context.Context, coll model.Collection) ([]model.ImageRecord, error)
	loadBlobFn func(ctx context.Context, key string) ([]byte, string, error)
}

func (m *mockImageService) Upload(ctx context.Context, d *model.UploadData) (*model.ImageRecord, error) {
	return m.uploadFn(ctx, d)
}

func (m *mockImageService) Compress(ctx context.Context, id string) (*model.ImageRecord, error) {
	return m.compressFn(ctx, id)
}

func (m *mockImageService) List(ctx context.Context, coll model.Collection) ([]model.ImageRecord, error) {
	return m.listFn(ctx, coll)
}

func (m *mockImageService) LoadBlob(ctx context.Context, key string) ([]byte, string, error) {
	return m.loadBlobFn(ctx, key)
}

func init() {
	gin.SetMode(gin.TestMode)
}
