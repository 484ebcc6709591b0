package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/weiawesome/duwdu-messenger/internal/domain"
	"github.com/weiawesome/duwdu-messenger/internal/notice"
	"github.com/weiawesome/duwdu-messenger/pkg/log"
)

const DefaultMaxUploadBytes = 20 << 20

// Sender posts a message to the open chat.
type Sender interface {
	Send(ctx context.Context, content string, typ domain.MessageType, mediaURL string) (*domain.Message, error)
}

// Attachment is a photo or voice clip waiting to be sent.
type Attachment struct {
	Kind        domain.MessageType
	Filename    string
	ContentType string
	Data        []byte
	// URL is set once the upload succeeded; a retry then only resends.
	URL string
}

// PendingInfo describes the attachment kept after a failure.
type PendingInfo struct {
	Kind     domain.MessageType `json:"kind"`
	Filename string             `json:"filename"`
	Size     int                `json:"size"`
	Uploaded bool               `json:"uploaded"`
}

// Pipeline uploads attachments and sends the matching message. A failed
// attempt is kept for Retry and never retried on its own.
type Pipeline struct {
	uploader Uploader
	sender   Sender
	recorder Recorder
	maxBytes int64

	mu      sync.Mutex
	pending *Attachment
}

type PipelineOption func(*Pipeline)

func WithRecorder(r Recorder) PipelineOption {
	return func(p *Pipeline) { p.recorder = r }
}

func WithMaxBytes(n int64) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

func NewPipeline(uploader Uploader, sender Sender, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		uploader: uploader,
		sender:   sender,
		recorder: UnavailableRecorder{},
		maxBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SendPhoto uploads an image and sends it as a photo message.
func (p *Pipeline) SendPhoto(ctx context.Context, filename, contentType string, data []byte) (*domain.Message, error) {
	contentType = sniff(contentType, data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, domain.NewValidationError("file", "only images can be sent as photos")
	}
	return p.submit(ctx, &Attachment{Kind: domain.MessagePhoto, Filename: filename, ContentType: contentType, Data: data})
}

// SendAudio uploads a recorded clip and sends it as a voice message.
func (p *Pipeline) SendAudio(ctx context.Context, filename, contentType string, data []byte) (*domain.Message, error) {
	if filename == "" {
		filename = "voice.webm"
	}
	if contentType == "" {
		contentType = "audio/webm"
	}
	return p.submit(ctx, &Attachment{Kind: domain.MessageAudio, Filename: filename, ContentType: contentType, Data: data})
}

// Record starts a microphone capture. Without a usable microphone it
// returns domain.ErrMediaCapability.
func (p *Pipeline) Record(ctx context.Context) (Recording, error) {
	rec, err := p.recorder.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("start recording: %w", err)
	}
	return rec, nil
}

// FinishRecording stops rec and sends the clip.
func (p *Pipeline) FinishRecording(ctx context.Context, rec Recording) (*domain.Message, error) {
	data, err := rec.Stop()
	if err != nil {
		return nil, fmt.Errorf("stop recording: %w", err)
	}
	return p.SendAudio(ctx, "", rec.ContentType(), data)
}

// Retry resubmits the attachment kept by the last failure.
func (p *Pipeline) Retry(ctx context.Context) (*domain.Message, error) {
	p.mu.Lock()
	a := p.pending
	p.mu.Unlock()
	if a == nil {
		return nil, fmt.Errorf("retry attachment: %w", domain.ErrNotFound)
	}
	return p.submit(ctx, a)
}

// Pending describes the attachment waiting for a retry, or nil.
func (p *Pipeline) Pending() *PendingInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return nil
	}
	return &PendingInfo{
		Kind:     p.pending.Kind,
		Filename: p.pending.Filename,
		Size:     len(p.pending.Data),
		Uploaded: p.pending.URL != "",
	}
}

// Discard drops the pending attachment.
func (p *Pipeline) Discard() {
	p.mu.Lock()
	p.pending = nil
	p.mu.Unlock()
}

func (p *Pipeline) submit(ctx context.Context, a *Attachment) (*domain.Message, error) {
	if len(a.Data) == 0 {
		return nil, domain.NewValidationError("file", "file is empty")
	}
	if int64(len(a.Data)) > p.maxBytes {
		return nil, domain.NewValidationError("file", fmt.Sprintf("file is larger than %d MB", p.maxBytes>>20))
	}

	logger := log.Ctx(ctx).With().Str("kind", string(a.Kind)).Str("filename", a.Filename).Logger()

	if a.URL == "" {
		url, err := p.uploader.Upload(ctx, a.Filename, a.ContentType, bytes.NewReader(a.Data))
		if err != nil {
			p.keep(a)
			logger.Warn().Err(err).Msg("attachment upload failed")
			return nil, fmt.Errorf("upload %s: %w", a.Kind, err)
		}
		a.URL = url
	}

	msg, err := p.sender.Send(ctx, a.Kind.Label(), a.Kind, a.URL)
	if err != nil {
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			p.keep(a)
		}
		logger.Warn().Err(err).Msg("attachment message failed")
		return nil, err
	}

	p.mu.Lock()
	if p.pending == a {
		p.pending = nil
	}
	p.mu.Unlock()
	return msg, nil
}

func (p *Pipeline) keep(a *Attachment) {
	p.mu.Lock()
	p.pending = a
	p.mu.Unlock()
}

// StartVideoCall is a placeholder; calls are not available yet.
func StartVideoCall() string {
	return notice.MsgVideoCall
}

func sniff(contentType string, data []byte) string {
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	return http.DetectContentType(data)
}
