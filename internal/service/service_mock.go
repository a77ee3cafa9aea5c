package service

import (
	"context"

	"github.com/UnendingLoop/ImageCompressor/internal/gateway"
	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/wb-go/wbf/retry"
)

// MOCK RESPOSITORY

type mockRepo struct {
	appendFn   func(ctx context.Context, c model.Collection, rec *model.ImageRecord) error
	findByIDFn func(ctx context.Context, c model.Collection, id string) (*model.ImageRecord, error)
	listAllFn  func(ctx context.Context, c model.Collection) ([]model.ImageRecord, error)
}

func (m *mockRepo) Append(ctx context.Context, c model.Collection, rec *model.ImageRecord) error {
	return m.appendFn(ctx, c, rec)
}

func (m *mockRepo) FindByID(ctx context.Context, c model.Collection, id string) (*model.ImageRecord, error) {
	return m.findByIDFn(ctx, c, id)
}

func (m *mockRepo) ListAll(ctx context.Context, c model.Collection) ([]model.ImageRecord, error) {
	return m.listAllFn(ctx, c)
}

// MOCK STORAGE

type mockStorage struct {
	putFn  func(ctx context.Context, key string, data []byte, ct string) error
	getFn  func(ctx context.Context, key string) ([]byte, error)
	copyFn func(ctx context.Context, src, dst string) (int64, error)
}

func (m *mockStorage) Put(ctx context.Context, key string, data []byte, ct string) error {
	return m.putFn(ctx, key, data, ct)
}

func (m *mockStorage) Get(ctx context.Context, key string) ([]byte, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Copy(ctx context.Context, src, dst string) (int64, error) {
	return m.copyFn(ctx, src, dst)
}

// MOCK COMPRESSOR

type mockCompressor struct {
	compressFn func(ctx context.Context, raw []byte) (*gateway.Result, error)
}

func (m *mockCompressor) Compress(ctx context.Context, raw []byte) (*gateway.Result, error) {
	return m.compressFn(ctx, raw)
}

// MOCK PUBLISHER

type mockPublisher struct {
	sendFn func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
	return m.sendFn(ctx, s, key, v)
}
