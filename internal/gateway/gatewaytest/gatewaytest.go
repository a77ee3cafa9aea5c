// Package gatewaytest runs an in-process stand-in for the Tinify shrink API and builds image fixtures.
package gatewaytest

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
)

const outputPath = "/output/"

// Server re-encodes posted images as low-quality JPEG. Set the Fail* fields to force error statuses.
type Server struct {
	*httptest.Server

	APIKey string

	FailShrink   int
	FailDownload int
	OmitSize     bool

	ShrinkCalls   atomic.Int32
	DownloadCalls atomic.Int32

	mu      sync.Mutex
	outputs map[string][]byte
	next    int
}

func NewServer(t *testing.T, apiKey string) *Server {
	t.Helper()

	s := &Server{APIKey: apiKey, outputs: map[string][]byte{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/shrink", s.handleShrink)
	mux.HandleFunc(outputPath, s.handleDownload)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) ShrinkURL() string {
	return s.URL + "/shrink"
}

func (s *Server) authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	return ok && user == "api" && pass == s.APIKey
}

func (s *Server) handleShrink(w http.ResponseWriter, r *http.Request) {
	s.ShrinkCalls.Add(1)

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized", "message": "Credentials are invalid."})
		return
	}
	if s.FailShrink != 0 {
		writeJSON(w, s.FailShrink, map[string]string{"error": "ServerError", "message": "forced failure"})
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "Unsupported media type", "message": "File type is not supported."})
		return
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(30)); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.next++
	id := strconv.Itoa(s.next)
	s.outputs[id] = out.Bytes()
	s.mu.Unlock()

	output := map[string]any{
		"size":  out.Len(),
		"type":  "image/jpeg",
		"ratio": float64(out.Len()) / float64(len(raw)),
		"url":   s.URL + outputPath + id,
	}
	if !s.OmitSize {
		output["width"] = img.Bounds().Dx()
		output["height"] = img.Bounds().Dy()
	}

	w.Header().Set("Location", s.URL+outputPath+id)
	writeJSON(w, http.StatusCreated, map[string]any{
		"input":  map[string]any{"size": len(raw), "type": r.Header.Get("Content-Type")},
		"output": output,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.DownloadCalls.Add(1)

	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if s.FailDownload != 0 {
		w.WriteHeader(s.FailDownload)
		return
	}

	s.mu.Lock()
	data, ok := s.outputs[strings.TrimPrefix(r.URL.Path, outputPath)]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NoisyJPEG builds a w×h JPEG at maximum quality. Random noise keeps it large, so it compresses well.
func NoisyJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	rnd := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(rnd.Intn(256)), G: uint8(rnd.Intn(256)), B: uint8(rnd.Intn(256)), A: 255})
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(100)); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

// PNG builds a small solid-color PNG.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 100, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}
