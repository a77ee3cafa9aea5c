// Package service provides business-logic for the app: ingestion of originals and their compression
package service

import (
	"context"
	"errors"
	"time"

	"github.com/UnendingLoop/ImageCompressor/internal/events"
	"github.com/UnendingLoop/ImageCompressor/internal/gateway"
	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/UnendingLoop/ImageCompressor/internal/mwlogger"
	"github.com/UnendingLoop/ImageCompressor/internal/repository"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

type ImageService struct {
	repo       repository.ImageRepo
	storage    ImageStorage
	compressor Compressor
	publisher  EventPublisher
	now        func() time.Time
}

func NewImageService(repo repository.ImageRepo, strg ImageStorage, cmp Compressor, pub EventPublisher) *ImageService {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &ImageService{
		repo:       repo,
		storage:    strg,
		compressor: cmp,
		publisher:  pub,
		now:        timestamp,
	}
}

// ImageStorage - контракт для работы с хранилищем
type ImageStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Copy(ctx context.Context, srcKey, dstKey string) (int64, error)
}

// Compressor - контракт внешнего API сжатия. Все его ошибки должны быть *gateway.Error
type Compressor interface {
	Compress(ctx context.Context, raw []byte) (*gateway.Result, error)
}

// EventPublisher - контракт для публикации событий в брокер
type EventPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// Стратегия ретрая публикации: событие не критично, долго запрос не держим
var publishStrategy = retry.Strategy{
	Attempts: 3,
	Delay:    200 * time.Millisecond,
	Backoff:  2,
}

// publishTimeout ограничивает, сколько запрос ждет брокер
const publishTimeout = 2 * time.Second

func (c ImageService) Upload(ctx context.Context, data *model.UploadData) (*model.ImageRecord, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	content, cType, err := validateUpload(data)
	if err != nil {
		ev := logger.Warn().Err(err).Str("op", "upload")
		if data != nil {
			ev = ev.Str("name", data.Filename).Str("content_type", data.ContentType).Int64("size", data.Size)
		}
		ev.Msg("Upload rejected")
		return nil, err
	}

	id := uuid.NewString()
	key := originalKey(id, fileExt(data.Filename))

	// кладем в хранилище оригинал
	if err := c.storage.Put(ctx, key, content, cType); err != nil {
		logger.Error().Err(err).Str("op", "upload").Str("id", id).Msg("Failed to save image in Storage")
		return nil, model.ErrUploadFailed
	}

	rec := &model.ImageRecord{
		ID:        id,
		Name:      data.Filename,
		URL:       urlFromKey(key),
		Size:      int64(len(content)),
		Format:    cType,
		Width:     0,
		Height:    0,
		CreatedAt: c.now(),
	}

	if err := c.repo.Append(ctx, model.CollectionOriginals, rec); err != nil {
		logger.Error().Err(err).Str("op", "upload").Str("id", id).Msg("Failed to append image record")
		return nil, model.ErrUploadFailed
	}

	c.publish(ctx, events.Event{Kind: events.KindUploaded, Collection: model.CollectionOriginals, Record: *rec})
	return rec, nil
}

// Compress never reports gateway failures: on any *gateway.Error the original is copied unchanged
// and a degraded record is stored. Storage and metadata failures are fatal.
func (c ImageService) Compress(ctx context.Context, id string) (*model.ImageRecord, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if id == "" {
		logger.Warn().Str("op", "compress").Msg("Compress request without id")
		return nil, model.ErrMissingID
	}

	orig, err := c.repo.FindByID(ctx, model.CollectionOriginals, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrImageNotFound):
			logger.Warn().Err(err).Str("op", "compress").Str("id", id).Msg("Original image record not found")
			return nil, model.ErrImageNotFound // 404
		default:
			logger.Error().Err(err).Str("op", "compress").Str("id", id).Msg("Failed to fetch image record")
			return nil, model.ErrCompressFailed
		}
	}

	srcKey := keyFromURL(orig.URL)
	ext := fileExt(orig.URL)
	dstKey := compressedKey(orig.ID, ext)

	raw, err := c.storage.Get(ctx, srcKey)
	if err != nil {
		logger.Error().Err(err).Str("op", "compress").Str("id", id).Str("key", srcKey).Msg("Failed to read original from Storage")
		return nil, model.ErrCompressFailed
	}

	var rec *model.ImageRecord
	var gwErr *gateway.Error

	res, err := c.compressor.Compress(ctx, raw)
	switch {
	case err == nil && res != nil:
		rec, err = c.storeCompressed(ctx, orig, dstKey, ext, res)
	case err == nil || errors.As(err, &gwErr):
		logger.Warn().Err(err).Str("op", "compress").Str("id", id).Msg("Compression API unavailable, falling back to original copy")
		rec, err = c.storeFallback(ctx, orig, srcKey, dstKey)
	default:
		logger.Error().Err(err).Str("op", "compress").Str("id", id).Msg("Unexpected compressor failure")
		return nil, model.ErrCompressFailed
	}
	if err != nil {
		return nil, err
	}

	// повторное сжатие дописывает еще одну запись с тем же id, прежняя не заменяется
	if err := c.repo.Append(ctx, model.CollectionCompressed, rec); err != nil {
		logger.Error().Err(err).Str("op", "compress").Str("id", rec.ID).Msg("Failed to append compressed record")
		return nil, model.ErrCompressFailed
	}

	c.publish(ctx, events.Event{
		Kind:       events.KindCompressed,
		Collection: model.CollectionCompressed,
		Degraded:   gwErr != nil || res == nil,
		Record:     *rec,
	})
	return rec, nil
}

func (c ImageService) storeCompressed(ctx context.Context, orig *model.ImageRecord, dstKey, ext string, res *gateway.Result) (*model.ImageRecord, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.storage.Put(ctx, dstKey, res.Data, orig.Format); err != nil {
		logger.Error().Err(err).Str("op", "compress").Str("id", orig.ID).Str("key", dstKey).Msg("Failed to save compressed image in Storage")
		return nil, model.ErrCompressFailed
	}

	return &model.ImageRecord{
		ID:        orig.ID + model.CompressedSuffix,
		Name:      compressedName(orig.Name, ext),
		URL:       urlFromKey(dstKey),
		Size:      int64(len(res.Data)),
		Format:    orig.Format,
		Width:     max(res.Width, 0),
		Height:    max(res.Height, 0),
		CreatedAt: c.now(),
	}, nil
}

func (c ImageService) storeFallback(ctx context.Context, orig *model.ImageRecord, srcKey, dstKey string) (*model.ImageRecord, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	n, err := c.storage.Copy(ctx, srcKey, dstKey)
	if err != nil {
		logger.Error().Err(err).Str("op", "compress-fallback").Str("id", orig.ID).Str("key", dstKey).Msg("Failed to copy original in Storage")
		return nil, model.ErrCompressFailed
	}

	return &model.ImageRecord{
		ID:        orig.ID + model.CompressedSuffix,
		Name:      orig.Name,
		URL:       urlFromKey(dstKey),
		Size:      n,
		Format:    orig.Format,
		Width:     0,
		Height:    0,
		CreatedAt: c.now(),
	}, nil
}

func (c ImageService) List(ctx context.Context, coll model.Collection) ([]model.ImageRecord, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if !model.CollectionsMap[coll] {
		return nil, model.ErrBadRequest
	}

	res, err := c.repo.ListAll(ctx, coll)
	if err != nil {
		logger.Error().Err(err).Str("op", "list").Str("collection", string(coll)).Msg("Failed to list image records")
		return nil, model.ErrCommon500
	}
	return res, nil
}

// LoadBlob returns a stored file for the /uploads and /compressed locators
func (c ImageService) LoadBlob(ctx context.Context, key string) ([]byte, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if !servableKey(key) {
		return nil, "", model.ErrBlobNotFound
	}

	data, err := c.storage.Get(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrBlobNotFound):
			return nil, "", model.ErrBlobNotFound // 404
		default:
			logger.Error().Err(err).Str("op", "load").Str("key", key).Msg("Failed to read file from Storage")
			return nil, "", model.ErrCommon500
		}
	}

	return data, sniffMIME(data), nil
}

func (c ImageService) publish(ctx context.Context, ev events.Event) {
	logger := mwlogger.LoggerFromContext(ctx)

	key, value, err := ev.Encode()
	if err != nil {
		logger.Error().Err(err).Str("id", ev.Record.ID).Msg("Failed to encode event")
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := c.publisher.SendWithRetry(pubCtx, publishStrategy, key, value); err != nil {
		logger.Warn().Err(err).Str("id", ev.Record.ID).Str("event", string(ev.Kind)).Msg("Failed to publish event")
	}
}
