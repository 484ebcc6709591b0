package chatapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/weiawesome/duwdu-messenger/internal/domain"
)

// SendMessageRequest is one outgoing message.
type SendMessageRequest struct {
	ChatID   int64
	UserID   int64
	Content  string
	Type     domain.MessageType
	MediaURL string
}

type sendMessageBody struct {
	ChatID      int64              `json:"chat_id"`
	UserID      int64              `json:"user_id"`
	Content     string             `json:"content"`
	MessageType domain.MessageType `json:"message_type"`
	MediaURL    string             `json:"media_url,omitempty"`
}

type deleteMessageBody struct {
	MessageID int64 `json:"message_id"`
	UserID    int64 `json:"user_id"`
}

// ListMessages returns the full thread of a chat, oldest first.
func (c *Client) ListMessages(ctx context.Context, chatID int64) ([]domain.Message, error) {
	var msgs []domain.Message
	q := url.Values{"chat_id": {idString(chatID)}}
	if err := c.do(ctx, "list messages", http.MethodGet, c.cfg.MessagesURL, q, nil, &msgs); err != nil {
		return nil, mapError("list messages", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	for i := range msgs {
		if msgs[i].ChatID == 0 {
			msgs[i].ChatID = chatID
		}
	}
	return msgs, nil
}

// SendMessage posts a message and returns the server's echo of it.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*domain.Message, error) {
	out := domain.OutgoingMessage{Content: req.Content, Type: req.Type, MediaURL: req.MediaURL}
	if err := out.Validate(); err != nil {
		return nil, err
	}

	body := sendMessageBody{
		ChatID:      req.ChatID,
		UserID:      req.UserID,
		Content:     out.Content,
		MessageType: out.Type,
		MediaURL:    out.MediaURL,
	}
	var msg domain.Message
	if err := c.do(ctx, "send message", http.MethodPost, c.cfg.MessagesURL, nil, body, &msg); err != nil {
		return nil, mapError("send message", err)
	}
	if msg.ID == 0 {
		return nil, &domain.TransientError{Op: "send message", Err: errors.New("response carries no message")}
	}
	if msg.ChatID == 0 {
		msg.ChatID = req.ChatID
	}
	return &msg, nil
}

// DeleteMessage removes a message. Deleting another user's message yields
// domain.ErrForbidden.
func (c *Client) DeleteMessage(ctx context.Context, messageID, userID int64) error {
	body := deleteMessageBody{MessageID: messageID, UserID: userID}
	if err := c.do(ctx, "delete message", http.MethodDelete, c.cfg.MessagesURL, nil, body, nil); err != nil {
		return mapError("delete message", err)
	}
	return nil
}
