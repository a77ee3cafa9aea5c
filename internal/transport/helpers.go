package transport

import (
	"errors"
	"io"
	"log"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrUploadFailed),
		errors.Is(err, model.ErrCompressFailed),
		errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrImageNotFound),
		errors.Is(err, model.ErrBlobNotFound):
		return 404
	case errors.Is(err, model.ErrNoImage),
		errors.Is(err, model.ErrNotAnImage),
		errors.Is(err, model.ErrImageTooLarge),
		errors.Is(err, model.ErrMissingID),
		errors.Is(err, model.ErrBadRequest):
		return 400
	default:
		return 500
	}
}

// errorMessage keeps unknown errors out of responses
func errorMessage(err error) string {
	if errorCodeDefiner(err) == 500 && !errors.Is(err, model.ErrUploadFailed) && !errors.Is(err, model.ErrCompressFailed) {
		return model.ErrCommon500.Error()
	}
	return err.Error()
}

func closeFileFlow(res io.Closer) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}
