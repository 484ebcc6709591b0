// Package media turns picked photos and recorded voice clips into chat
// messages: upload first, then send a message carrying the media URL.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/weiawesome/duwdu-messenger/pkg/log"
	"github.com/weiawesome/duwdu-messenger/pkg/storage"
)

// Uploader stores one file and returns the URL chat members fetch it from.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
}

// HTTPUploader posts files to the Chat Service upload endpoint.
type HTTPUploader struct {
	client Uploader
}

// NewHTTPUploader wraps the Chat Service client's multipart upload.
func NewHTTPUploader(client Uploader) *HTTPUploader {
	return &HTTPUploader{client: client}
}

func (u *HTTPUploader) Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	start := time.Now()
	url, err := u.client.Upload(ctx, filename, contentType, r)
	if err != nil {
		return "", err
	}
	l := log.Ctx(ctx)
	l.Debug().
		Str("filename", filename).
		Dur(log.FieldLatency, time.Since(start)).
		Msg("media uploaded")
	return url, nil
}

// StorageUploader writes files straight into an object store.
type StorageUploader struct {
	store  storage.Storage
	prefix string
	now    func() time.Time
}

// NewStorageUploader creates an uploader writing under media/ in store.
func NewStorageUploader(store storage.Storage) *StorageUploader {
	return &StorageUploader{store: store, prefix: "media", now: time.Now}
}

// Key layout: media/{yyyy}/{mm}/{uuid}{ext}
func (u *StorageUploader) objectKey(filename, contentType string) string {
	t := u.now().UTC()
	return path.Join(u.prefix, fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())),
		uuid.NewString()+extensionFor(filename, contentType))
}

func (u *StorageUploader) Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	var size int64 = -1
	switch v := r.(type) {
	case *bytes.Reader:
		size = int64(v.Len())
	case *bytes.Buffer:
		size = int64(v.Len())
	case *strings.Reader:
		size = int64(v.Len())
	}

	key := u.objectKey(filename, contentType)
	if err := u.store.Write(ctx, key, r, size, contentType); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}

	l := log.Ctx(ctx)
	l.Info().Str("key", key).Str("content_type", contentType).Msg("media stored")
	return u.store.PublicURL(key), nil
}

func extensionFor(filename, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		return ext
	}
	ct := contentType
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	switch ct {
	case "image/jpeg":
		return ".jpg"
	case "audio/webm":
		return ".webm"
	}
	if exts, err := mime.ExtensionsByType(ct); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
