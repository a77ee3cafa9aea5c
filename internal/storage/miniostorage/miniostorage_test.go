package miniostorage

import (
	"errors"
	"testing"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

func TestMapMinioErr(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantNotFound bool
	}{
		{
			name:         "no such key",
			err:          minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."},
			wantNotFound: true,
		},
		{
			name: "access denied",
			err:  minio.ErrorResponse{Code: "AccessDenied"},
		},
		{
			name: "plain error",
			err:  errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapMinioErr("uploads/a.jpg", tt.err)
			require.Error(t, got)
			require.Equal(t, tt.wantNotFound, errors.Is(got, model.ErrBlobNotFound))
			require.Contains(t, got.Error(), "uploads/a.jpg")
		})
	}
}
