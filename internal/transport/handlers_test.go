package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
)

func TestImageHandler_Ping(t *testing.T) {
	r := gin.New()
	h := NewImageHandler(nil)

	r.GET("/ping", func(c *gin.Context) {
		h.SimplePinger((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "pong", body["message"])
}

func newUploadRequest(t *testing.T, field, filename, cType string, content []byte) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	hdr.Set("Content-Type", cType)
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestImageHandler_Upload(t *testing.T) {
	id := uuid.NewString()

	tests := []struct {
		name       string
		req        *http.Request
		mock       *mockImageService
		wantStatus int
		wantError  string
	}{
		{
			name: "success",
			req:  newUploadRequest(t, "image", "cat.png", "image/png", []byte("img")),
			mock: &mockImageService{
				uploadFn: func(ctx context.Context, d *model.UploadData) (*model.ImageRecord, error) {
					require.Equal(t, "cat.png", d.Filename)
					require.Equal(t, "image/png", d.ContentType)
					require.Equal(t, int64(3), d.Size)
					got, err := io.ReadAll(d.Content)
					require.NoError(t, err)
					require.Equal(t, []byte("img"), got)
					return &model.ImageRecord{ID: id, Name: d.Filename, URL: "/uploads/" + id + ".png", Size: 3, Format: d.ContentType}, nil
				},
			},
			wantStatus: 200,
		},
		{
			name:       "missing image field",
			req:        newUploadRequest(t, "file", "cat.png", "image/png", []byte("img")),
			mock:       &mockImageService{},
			wantStatus: 400,
			wantError:  model.ErrNoImage.Error(),
		},
		{
			name: "not multipart",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("plain"))
				r.Header.Set("Content-Type", "text/plain")
				return r
			}(),
			mock:       &mockImageService{},
			wantStatus: 400,
			wantError:  model.ErrNoImage.Error(),
		},
		{
			name: "not an image",
			req:  newUploadRequest(t, "image", "notes.txt", "text/plain", []byte("hi")),
			mock: &mockImageService{
				uploadFn: func(ctx context.Context, d *model.UploadData) (*model.ImageRecord, error) {
					return nil, model.ErrNotAnImage
				},
			},
			wantStatus: 400,
			wantError:  model.ErrNotAnImage.Error(),
		},
		{
			name: "too large",
			req:  newUploadRequest(t, "image", "big.jpg", "image/jpeg", []byte("img")),
			mock: &mockImageService{
				uploadFn: func(ctx context.Context, d *model.UploadData) (*model.ImageRecord, error) {
					return nil, model.ErrImageTooLarge
				},
			},
			wantStatus: 400,
			wantError:  model.ErrImageTooLarge.Error(),
		},
		{
			name: "storage failure",
			req:  newUploadRequest(t, "image", "cat.jpg", "image/jpeg", []byte("img")),
			mock: &mockImageService{
				uploadFn: func(ctx context.Context, d *model.UploadData) (*model.ImageRecord, error) {
					return nil, model.ErrUploadFailed
				},
			},
			wantStatus: 500,
			wantError:  model.ErrUploadFailed.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewImageHandler(tt.mock)

			r.POST("/upload", func(c *gin.Context) {
				h.Upload((*ginext.Context)(c))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				require.Equal(t, tt.wantError, body["error"])
				return
			}

			var rec model.ImageRecord
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
			require.Equal(t, id, rec.ID)
			require.Equal(t, "/uploads/"+id+".png", rec.URL)
		})
	}
}

func TestImageHandler_Compress(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mock       *mockImageService
		wantStatus int
		wantError  string
	}{
		{
			name: "success",
			body: `{"id":"abc"}`,
			mock: &mockImageService{
				compressFn: func(ctx context.Context, id string) (*model.ImageRecord, error) {
					require.Equal(t, "abc", id)
					return &model.ImageRecord{ID: "abc-compressed", Width: 10, Height: 20}, nil
				},
			},
			wantStatus: 200,
		},
		{
			name:       "bad json",
			body:       `{"id":`,
			mock:       &mockImageService{},
			wantStatus: 400,
			wantError:  model.ErrBadRequest.Error(),
		},
		{
			name: "missing id",
			body: `{}`,
			mock: &mockImageService{
				compressFn: func(ctx context.Context, id string) (*model.ImageRecord, error) {
					require.Empty(t, id)
					return nil, model.ErrMissingID
				},
			},
			wantStatus: 400,
			wantError:  model.ErrMissingID.Error(),
		},
		{
			name: "unknown id",
			body: `{"id":"nope"}`,
			mock: &mockImageService{
				compressFn: func(ctx context.Context, id string) (*model.ImageRecord, error) {
					return nil, model.ErrImageNotFound
				},
			},
			wantStatus: 404,
			wantError:  model.ErrImageNotFound.Error(),
		},
		{
			name: "unexpected failure",
			body: `{"id":"abc"}`,
			mock: &mockImageService{
				compressFn: func(ctx context.Context, id string) (*model.ImageRecord, error) {
					return nil, model.ErrCompressFailed
				},
			},
			wantStatus: 500,
			wantError:  model.ErrCompressFailed.Error(),
		},
		{
			name: "raw error is hidden",
			body: `{"id":"abc"}`,
			mock: &mockImageService{
				compressFn: func(ctx context.Context, id string) (*model.ImageRecord, error) {
					return nil, errors.New("open /srv/data/db.json: permission denied")
				},
			},
			wantStatus: 500,
			wantError:  model.ErrCommon500.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewImageHandler(tt.mock)

			r.POST("/compress", func(c *gin.Context) {
				h.Compress((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodPost, "/compress", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantError != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				require.Equal(t, tt.wantError, body["error"])
				return
			}

			var rec model.ImageRecord
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
			require.Equal(t, "abc-compressed", rec.ID)
			require.Equal(t, 10, rec.Width)
			require.Equal(t, 20, rec.Height)
		})
	}
}

func TestImageHandler_List(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantColl   model.Collection
		res        []model.ImageRecord
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "originals",
			path:       "/images",
			wantColl:   model.CollectionOriginals,
			res:        []model.ImageRecord{{ID: "a"}, {ID: "b"}},
			wantStatus: 200,
		},
		{
			name:       "compressed",
			path:       "/images/compressed",
			wantColl:   model.CollectionCompressed,
			res:        []model.ImageRecord{{ID: "a-compressed"}},
			wantStatus: 200,
		},
		{
			name:       "empty collection renders as array",
			path:       "/images",
			wantColl:   model.CollectionOriginals,
			wantStatus: 200,
			wantBody:   "[]",
		},
		{
			name:       "service error",
			path:       "/images/compressed",
			wantColl:   model.CollectionCompressed,
			err:        model.ErrCommon500,
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewImageHandler(&mockImageService{
				listFn: func(ctx context.Context, coll model.Collection) ([]model.ImageRecord, error) {
					require.Equal(t, tt.wantColl, coll)
					return tt.res, tt.err
				},
			})

			r.GET("/images", func(c *gin.Context) {
				h.ListOriginals((*ginext.Context)(c))
			})
			r.GET("/images/compressed", func(c *gin.Context) {
				h.ListCompressed((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != 200 {
				return
			}
			if tt.wantBody != "" {
				require.JSONEq(t, tt.wantBody, w.Body.String())
				return
			}

			var got []model.ImageRecord
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			require.Equal(t, tt.res, got)
		})
	}
}

func TestImageHandler_ServeBlob(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantKey    string
		data       []byte
		cType      string
		err        error
		wantStatus int
	}{
		{
			name:       "original",
			path:       "/uploads/abc.png",
			wantKey:    "uploads/abc.png",
			data:       []byte("png-bytes"),
			cType:      "image/png",
			wantStatus: 200,
		},
		{
			name:       "compressed",
			path:       "/compressed/abc-compressed.jpg",
			wantKey:    "compressed/abc-compressed.jpg",
			data:       []byte("jpg-bytes"),
			cType:      "image/jpeg",
			wantStatus: 200,
		},
		{
			name:       "missing",
			path:       "/uploads/nope.jpg",
			wantKey:    "uploads/nope.jpg",
			err:        model.ErrBlobNotFound,
			wantStatus: 404,
		},
		{
			name:       "storage error",
			path:       "/compressed/x.jpg",
			wantKey:    "compressed/x.jpg",
			err:        model.ErrCommon500,
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewImageHandler(&mockImageService{
				loadBlobFn: func(ctx context.Context, key string) ([]byte, string, error) {
					require.Equal(t, tt.wantKey, key)
					return tt.data, tt.cType, tt.err
				},
			})

			r.GET("/uploads/:file", func(c *gin.Context) {
				h.ServeUpload((*ginext.Context)(c))
			})
			r.GET("/compressed/:file", func(c *gin.Context) {
				h.ServeCompressed((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == 200 {
				require.Equal(t, tt.cType, w.Header().Get("Content-Type"))
				require.Equal(t, tt.data, w.Body.Bytes())
			}
		})
	}
}

func TestErrorCodeDefiner(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.ErrNoImage, 400},
		{model.ErrNotAnImage, 400},
		{model.ErrImageTooLarge, 400},
		{model.ErrMissingID, 400},
		{model.ErrBadRequest, 400},
		{model.ErrImageNotFound, 404},
		{model.ErrBlobNotFound, 404},
		{model.ErrUploadFailed, 500},
		{model.ErrCompressFailed, 500},
		{model.ErrCommon500, 500},
		{errors.New("something else"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			require.Equal(t, tt.want, errorCodeDefiner(tt.err))
		})
	}
}

func TestImageHandler_Upload_BodyCapped(t *testing.T) {
	r := gin.New()
	h := NewImageHandler(&mockImageService{
		uploadFn: func(ctx context.Context, d *model.UploadData) (*model.ImageRecord, error) {
			t.Fatal("service must not be reached for an oversized body")
			return nil, nil
		},
	})
	r.POST("/upload", func(c *gin.Context) {
		h.Upload((*ginext.Context)(c))
	})

	big := bytes.Repeat([]byte{0xFF}, int(model.MaxUploadSize+multipartOverhead)+1024)
	req := newUploadRequest(t, "image", "huge.jpg", "image/jpeg", big)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, 400, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, model.ErrImageTooLarge.Error(), body["error"])
}
