package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/weiawesome/duwdu-messenger/internal/audit"
	"github.com/weiawesome/duwdu-messenger/internal/domain"
	"github.com/weiawesome/duwdu-messenger/internal/media"
	"github.com/weiawesome/duwdu-messenger/internal/notice"
)

// SendText sends a text message to the selected chat.
func (c *Controller) SendText(ctx context.Context, content string) (*domain.Message, error) {
	msg, err := c.thread.Send(ctx, content, domain.MessageText, "")
	if err != nil {
		return nil, c.fail(ctx, "send message", err)
	}
	return msg, nil
}

// SendSticker sends the sticker with stickerID to the selected chat.
func (c *Controller) SendSticker(ctx context.Context, stickerID string) (*domain.Message, error) {
	st, ok := domain.LookupSticker(stickerID)
	if !ok {
		return nil, c.fail(ctx, "send sticker", domain.NewValidationError("sticker_id", "unknown sticker"))
	}
	msg, err := c.thread.SendSticker(ctx, st.Emoji)
	if err != nil {
		return nil, c.fail(ctx, "send sticker", err)
	}
	return msg, nil
}

// DeleteMessage deletes one of the user's own messages.
func (c *Controller) DeleteMessage(ctx context.Context, messageID int64) error {
	id, err := c.userID()
	if err != nil {
		return c.fail(ctx, "delete message", err)
	}

	if m, ok := c.thread.Find(messageID); ok && m.User.ID != 0 && m.User.ID != id {
		audit.Record(ctx, audit.Entry{Action: audit.ActionDeleteDenied, UserID: id, ChatID: c.thread.ChatID(), MessageID: messageID}, "delete denied")
		return c.fail(ctx, "delete message", fmt.Errorf("message %d: %w", messageID, domain.ErrForbidden))
	}

	if err := c.thread.Delete(ctx, messageID); err != nil {
		return c.fail(ctx, "delete message", err)
	}
	audit.Record(ctx, audit.Entry{Action: audit.ActionDeleteMessage, UserID: id, ChatID: c.thread.ChatID(), MessageID: messageID}, "message deleted")
	return nil
}

// AttachPhoto uploads an image and sends it to the selected chat.
func (c *Controller) AttachPhoto(ctx context.Context, filename, contentType string, data []byte) (*domain.Message, error) {
	return c.attach(ctx, domain.MessagePhoto, func() (*domain.Message, error) {
		return c.media.SendPhoto(ctx, filename, contentType, data)
	})
}

// AttachAudio uploads a recorded voice clip and sends it.
func (c *Controller) AttachAudio(ctx context.Context, filename, contentType string, data []byte) (*domain.Message, error) {
	return c.attach(ctx, domain.MessageAudio, func() (*domain.Message, error) {
		return c.media.SendAudio(ctx, filename, contentType, data)
	})
}

// StartRecording asks the recorder for the microphone.
func (c *Controller) StartRecording(ctx context.Context) (media.Recording, error) {
	rec, err := c.media.Record(ctx)
	if err != nil {
		return nil, c.fail(ctx, "start recording", err)
	}
	return rec, nil
}

// RetryAttachment resubmits the attachment that failed last.
func (c *Controller) RetryAttachment(ctx context.Context) (*domain.Message, error) {
	pending := c.media.Pending()
	if pending == nil {
		return nil, c.fail(ctx, "retry attachment", fmt.Errorf("pending attachment: %w", domain.ErrNotFound))
	}
	return c.attach(ctx, pending.Kind, func() (*domain.Message, error) {
		return c.media.Retry(ctx)
	})
}

// DiscardAttachment drops the attachment kept for retry.
func (c *Controller) DiscardAttachment() {
	c.media.Discard()
	c.publish()
}

func (c *Controller) attach(ctx context.Context, kind domain.MessageType, send func() (*domain.Message, error)) (*domain.Message, error) {
	id, err := c.userID()
	if err != nil {
		return nil, c.fail(ctx, "attach", err)
	}

	msg, err := send()
	c.publish()
	if err != nil {
		audit.Record(ctx, audit.Entry{Action: audit.ActionAttachmentFailure, UserID: id, ChatID: c.thread.ChatID(), Detail: string(kind)}, "attachment failed")
		if domain.IsTransient(err) && c.media.Pending() != nil {
			c.notices.Error(notice.MsgUploadFailed)
			return nil, err
		}
		return nil, c.fail(ctx, "attach", err)
	}
	audit.Record(ctx, audit.Entry{Action: audit.ActionSendAttachment, UserID: id, ChatID: msg.ChatID, MessageID: msg.ID, Detail: string(kind)}, "attachment sent")
	return msg, nil
}

// StartVideoCall shows the placeholder notice for video calls.
func (c *Controller) StartVideoCall() string {
	text := media.StartVideoCall()
	c.notices.Info(text)
	return text
}

// SearchInput feeds the search box.
func (c *Controller) SearchInput(text string) {
	c.search.Input(text)
	c.publish()
}

// SetSearchOpen opens or closes the search panel.
func (c *Controller) SetSearchOpen(open bool) {
	c.search.SetOpen(open)
}

func avatarName(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if base == "" || base == "." || base == "/" {
		base = "avatar"
	}
	return base + ".jpg"
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
