package chatapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"

	"github.com/weiawesome/duwdu-messenger/internal/domain"
)

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload sends r as the multipart field "file" and returns the public URL
// reported by the upload endpoint.
func (c *Client) Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	if c.cfg.UploadURL == "" {
		return "", errors.New("upload: no upload endpoint configured")
	}
	if filename == "" {
		filename = "upload"
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UploadURL, pr)
	if err != nil {
		return "", fmt.Errorf("upload: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var out uploadResponse
	if err := c.send(req, "upload", &out); err != nil {
		return "", mapError("upload", err)
	}
	if out.URL == "" {
		return "", &domain.TransientError{Op: "upload", Err: errors.New("response carries no url")}
	}
	return out.URL, nil
}
