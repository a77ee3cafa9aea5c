package service

import (
	"io"
	"path"
	"strings"
	"time"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/gabriel-vasile/mimetype"
)

// validateUpload checks the payload in fixed order: presence, MIME type, size. It returns the body bytes and the
// effective MIME type.
func validateUpload(raw *model.UploadData) ([]byte, string, error) {
	if raw == nil || raw.Content == nil {
		return nil, "", model.ErrNoImage
	}

	// читаем не больше лимита + 1 байт, чтобы поймать превышение
	content, err := io.ReadAll(io.LimitReader(raw.Content, model.MaxUploadSize+1))
	if err != nil {
		return nil, "", model.ErrNoImage
	}

	cType := effectiveMIME(raw.ContentType, content)
	if !strings.HasPrefix(cType, model.ImageMIMEPrefix) {
		return nil, "", model.ErrNotAnImage
	}

	if raw.Size > model.MaxUploadSize || int64(len(content)) > model.MaxUploadSize {
		return nil, "", model.ErrImageTooLarge
	}

	return content, cType, nil
}

// effectiveMIME trusts the declared type unless it is missing or generic, then sniffs the payload
func effectiveMIME(declared string, content []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != model.GenericBinaryMIME {
		return declared
	}
	return sniffMIME(content)
}

func sniffMIME(content []byte) string {
	mt := mimetype.Detect(content).String()
	// mimetype дописывает параметры вроде charset, они тут не нужны
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// fileExt returns the extension with the leading dot, defaulting to .jpg
func fileExt(name string) string {
	ext := path.Ext(name)
	if ext == "" || ext == "." || strings.ContainsAny(ext, `/\`) {
		return model.DefaultImageExt
	}
	return ext
}

func originalKey(id, ext string) string {
	return model.UploadsDir + "/" + id + ext
}

func compressedKey(id, ext string) string {
	return model.CompressedDir + "/" + id + model.CompressedSuffix + ext
}

func urlFromKey(key string) string {
	return "/" + key
}

func keyFromURL(url string) string {
	return strings.TrimPrefix(url, "/")
}

// compressedName swaps the extension of the original display name
func compressedName(name, ext string) string {
	if old := path.Ext(name); old != "" && old != "." {
		name = strings.TrimSuffix(name, old)
	}
	return name + ext
}

func servableKey(key string) bool {
	if strings.Contains(key, "..") {
		return false
	}
	return strings.HasPrefix(key, model.UploadsDir+"/") || strings.HasPrefix(key, model.CompressedDir+"/")
}

func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
