// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"errors"
	"net/http"
	"path"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/wb-go/wbf/ginext"
)

type ImageHandler struct {
	service ImageService
}

type ImageService interface {
	Upload(ctx context.Context, data *model.UploadData) (*model.ImageRecord, error)
	Compress(ctx context.Context, id string) (*model.ImageRecord, error)
	List(ctx context.Context, coll model.Collection) ([]model.ImageRecord, error)
	LoadBlob(ctx context.Context, key string) ([]byte, string, error) // байты + content-type
}

func NewImageHandler(svc ImageService) *ImageHandler {
	return &ImageHandler{
		service: svc,
	}
}

func (h ImageHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

// запас на заголовки и границы multipart поверх лимита на сам файл
const multipartOverhead = 1 << 20

func (h ImageHandler) Upload(ctx *ginext.Context) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, model.MaxUploadSize+multipartOverhead)

	imageFile, imageHeader, err := ctx.Request.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx.JSON(400, map[string]string{"error": model.ErrImageTooLarge.Error()})
			return
		}
		ctx.JSON(400, map[string]string{"error": model.ErrNoImage.Error()})
		return
	}
	defer closeFileFlow(imageFile)

	data := model.UploadData{
		Filename:    imageHeader.Filename,
		ContentType: imageHeader.Header.Get("Content-Type"),
		Size:        imageHeader.Size,
		Content:     imageFile,
	}

	res, err := h.service.Upload(ctx.Request.Context(), &data)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": errorMessage(err)})
		return
	}

	ctx.JSON(200, res)
}

func (h ImageHandler) Compress(ctx *ginext.Context) {
	var req model.CompressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": model.ErrBadRequest.Error()})
		return
	}

	res, err := h.service.Compress(ctx.Request.Context(), req.ID)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": errorMessage(err)})
		return
	}

	ctx.JSON(200, res)
}

func (h ImageHandler) ListOriginals(ctx *ginext.Context) {
	h.list(ctx, model.CollectionOriginals)
}

func (h ImageHandler) ListCompressed(ctx *ginext.Context) {
	h.list(ctx, model.CollectionCompressed)
}

func (h ImageHandler) list(ctx *ginext.Context, coll model.Collection) {
	res, err := h.service.List(ctx.Request.Context(), coll)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": errorMessage(err)})
		return
	}
	if res == nil {
		res = []model.ImageRecord{}
	}

	ctx.JSON(200, res)
}

// ServeUpload отдает файл по локатору /uploads/:file
func (h ImageHandler) ServeUpload(ctx *ginext.Context) {
	h.serveBlob(ctx, model.UploadsDir)
}

// ServeCompressed отдает файл по локатору /compressed/:file
func (h ImageHandler) ServeCompressed(ctx *ginext.Context) {
	h.serveBlob(ctx, model.CompressedDir)
}

func (h ImageHandler) serveBlob(ctx *ginext.Context, dir string) {
	key := path.Join(dir, ctx.Param("file"))

	data, cType, err := h.service.LoadBlob(ctx.Request.Context(), key)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": errorMessage(err)})
		return
	}

	ctx.Data(200, cType, data)
}
