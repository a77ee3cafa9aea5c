// Package fsstorage keeps image blobs as plain files under a root directory
package fsstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
)

type FSImageStorage struct {
	root string
}

func NewFSStorage(root string) *FSImageStorage {
	return &FSImageStorage{root: root}
}

func (s *FSImageStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if data == nil {
		return errors.New("nil payload passed to storage.Put")
	}

	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	// директории создаем лениво, повторное создание не ошибка
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create storage dir for %q: %w", key, err)
	}

	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func (s *FSImageStorage) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", model.ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return data, nil
}

func (s *FSImageStorage) Copy(ctx context.Context, srcKey, dstKey string) (int64, error) {
	srcPath, err := s.resolve(srcKey)
	if err != nil {
		return 0, err
	}
	dstPath, err := s.resolve(dstKey)
	if err != nil {
		return 0, err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %q", model.ErrBlobNotFound, srcKey)
		}
		return 0, fmt.Errorf("failed to open %q: %w", srcKey, err)
	}
	defer closeFile(src)

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create storage dir for %q: %w", dstKey, err)
	}

	var n int64
	err = writeAtomic(dstPath, func(w io.Writer) error {
		var cErr error
		n, cErr = io.Copy(w, src)
		return cErr
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// resolve maps a storage key to a path inside root, keys escaping root are rejected
func (s *FSImageStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

const blobMode = 0o644

func writeAtomic(path string, fill func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %q: %w", path, err)
	}
	tmpName := tmp.Name()

	// CreateTemp дает 0600, отдаваемые файлы должны быть читаемы статик-сервером
	if err := tmp.Chmod(blobMode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file for %q: %w", path, err)
	}
	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to flush %q: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move %q into place: %w", path, err)
	}
	return nil
}

func closeFile(f *os.File) {
	if err := f.Close(); err != nil {
		log.Printf("Storage failed to close file %q: %v", f.Name(), err)
	}
}
