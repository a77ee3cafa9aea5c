// Package model provides data-structs for internal app-usage
package model

import (
	"errors"
	"io"
	"time"
)

// ImageRecord describes a stored original or its compressed derivative
type ImageRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	Format    string    `json:"format"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"createdAt"`
}

type Collection string

const (
	CollectionOriginals  Collection = "images"
	CollectionCompressed Collection = "compressedImages"
)

var CollectionsMap = map[Collection]bool{
	CollectionOriginals:  true,
	CollectionCompressed: true,
}

//-------------------

type UploadData struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

type CompressRequest struct {
	ID string `json:"id"`
}

//-------------------

const (
	MaxUploadSize int64 = 10 << 20

	UploadsDir        = "uploads"
	CompressedDir     = "compressed"
	CompressedSuffix  = "-compressed"
	DefaultImageExt   = ".jpg"
	ImageMIMEPrefix   = "image/"
	GenericBinaryMIME = "application/octet-stream"
)

// ------------------

var (
	// 400
	ErrNoImage       error = errors.New("no image file provided")
	ErrNotAnImage    error = errors.New("file must be an image")
	ErrImageTooLarge error = errors.New("image size must be less than 10MB")
	ErrMissingID     error = errors.New("image ID is required")
	ErrBadRequest    error = errors.New("invalid request body")
	// 404
	ErrImageNotFound error = errors.New("image not found")
	ErrBlobNotFound  error = errors.New("file not found")
	// 500
	ErrUploadFailed   error = errors.New("failed to process uploaded file")
	ErrCompressFailed error = errors.New("failed to compress image")
	ErrCommon500      error = errors.New("something went wrong. Try again later")
)

var ErrUnknownCollection = errors.New("unknown collection")
