// Package jsonfile keeps image metadata in a single JSON document on disk
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
)

type document struct {
	Images           []model.ImageRecord `json:"images"`
	CompressedImages []model.ImageRecord `json:"compressedImages"`
}

func (d *document) collection(c model.Collection) (*[]model.ImageRecord, error) {
	switch c {
	case model.CollectionOriginals:
		return &d.Images, nil
	case model.CollectionCompressed:
		return &d.CompressedImages, nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownCollection, c)
	}
}

// JSONRepo reads the whole file on every call and rewrites it on every append.
// mu serializes read-modify-write so concurrent appends don't lose each other.
type JSONRepo struct {
	path string
	mu   sync.Mutex
}

func NewJSONRepo(path string) *JSONRepo {
	return &JSONRepo{path: path}
}

func (r *JSONRepo) Append(ctx context.Context, c model.Collection, rec *model.ImageRecord) error {
	if rec == nil {
		return errors.New("nil record passed to jsonfile.Append")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return err
	}

	coll, err := doc.collection(c)
	if err != nil {
		return err
	}
	*coll = append(*coll, *rec)

	return r.write(doc)
}

func (r *JSONRepo) FindByID(ctx context.Context, c model.Collection, id string) (*model.ImageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return nil, err
	}

	coll, err := doc.collection(c)
	if err != nil {
		return nil, err
	}

	// первая запись выигрывает, дубликаты в compressed допустимы
	for _, v := range *coll {
		if v.ID == id {
			res := v
			return &res, nil
		}
	}
	return nil, model.ErrImageNotFound
}

func (r *JSONRepo) ListAll(ctx context.Context, c model.Collection) ([]model.ImageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return nil, err
	}

	coll, err := doc.collection(c)
	if err != nil {
		return nil, err
	}

	res := make([]model.ImageRecord, len(*coll))
	copy(res, *coll)
	return res, nil
}

func (r *JSONRepo) read() (*document, error) {
	doc := &document{
		Images:           []model.ImageRecord{},
		CompressedImages: []model.ImageRecord{},
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("failed to read metadata file %q: %w", r.path, err)
	}

	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("failed to decode metadata file %q: %w", r.path, err)
	}
	if doc.Images == nil {
		doc.Images = []model.ImageRecord{}
	}
	if doc.CompressedImages == nil {
		doc.CompressedImages = []model.ImageRecord{}
	}

	return doc, nil
}

const fileMode = 0o644

// write replaces the file through a temp file + rename, a crash mid-write leaves the previous state intact
func (r *JSONRepo) write(doc *document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create metadata dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp metadata file: %w", err)
	}
	tmpName := tmp.Name()

	// CreateTemp дает 0600, файл должен читаться как обычный
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp metadata file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to flush metadata: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace metadata file %q: %w", r.path, err)
	}

	return nil
}
