package chatapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/weiawesome/duwdu-messenger/internal/domain"
)

// CreateChatRequest creates a group or channel owned by UserID.
type CreateChatRequest struct {
	Name   string
	Type   domain.ChatType
	UserID int64
	Handle string
}

type createChatBody struct {
	Name     string          `json:"name"`
	Type     domain.ChatType `json:"type"`
	UserID   int64           `json:"user_id"`
	Username string          `json:"username,omitempty"`
}

type privateChatBody struct {
	Type        domain.ChatType `json:"type"`
	UserID      int64           `json:"user_id"`
	OtherUserID int64           `json:"other_user_id"`
}

type chatAvatarBody struct {
	ChatID    int64   `json:"chat_id"`
	UserID    int64   `json:"user_id"`
	AvatarURL *string `json:"avatar_url"`
}

// ListChats returns the chats userID belongs to.
func (c *Client) ListChats(ctx context.Context, userID int64) ([]domain.Chat, error) {
	var chats []domain.Chat
	q := url.Values{"user_id": {idString(userID)}}
	if err := c.do(ctx, "list chats", http.MethodGet, c.cfg.ChatsURL, q, nil, &chats); err != nil {
		return nil, mapError("list chats", err)
	}
	if chats == nil {
		chats = []domain.Chat{}
	}
	return chats, nil
}

// SearchChats finds public chats by name or handle.
func (c *Client) SearchChats(ctx context.Context, query string) ([]domain.Chat, error) {
	var chats []domain.Chat
	q := url.Values{"search": {query}}
	if err := c.do(ctx, "search chats", http.MethodGet, c.cfg.ChatsURL, q, nil, &chats); err != nil {
		return nil, mapError("search chats", err)
	}
	if chats == nil {
		chats = []domain.Chat{}
	}
	return chats, nil
}

// CreateChat creates a group or channel. The handle is checked locally and
// no request is made when it is malformed.
func (c *Client) CreateChat(ctx context.Context, req CreateChatRequest) (*domain.Chat, error) {
	nc := domain.NewChat{Name: req.Name, Type: req.Type, Handle: req.Handle}
	nc.Normalize()
	if err := nc.Validate(); err != nil {
		return nil, err
	}

	body := createChatBody{Name: nc.Name, Type: nc.Type, UserID: req.UserID, Username: nc.Handle}
	var chat domain.Chat
	if err := c.do(ctx, "create chat", http.MethodPost, c.cfg.ChatsURL, nil, body, &chat); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.status == http.StatusConflict {
			return nil, fmt.Errorf("create chat %q: %w", nc.Handle, domain.ErrHandleTaken)
		}
		return nil, mapError("create chat", err)
	}
	if chat.ID == 0 {
		return nil, &domain.TransientError{Op: "create chat", Err: errors.New("response carries no chat")}
	}
	return &chat, nil
}

// CreateOrGetPrivateChat returns the one-to-one chat between the two users,
// creating it on first use.
func (c *Client) CreateOrGetPrivateChat(ctx context.Context, userID, otherUserID int64) (*domain.Chat, error) {
	if otherUserID <= 0 {
		return nil, domain.NewValidationError("other_user_id", "a user to chat with is required")
	}
	if userID == otherUserID {
		return nil, domain.NewValidationError("other_user_id", "cannot start a private chat with yourself")
	}

	body := privateChatBody{Type: domain.ChatPrivate, UserID: userID, OtherUserID: otherUserID}
	var chat domain.Chat
	if err := c.do(ctx, "open private chat", http.MethodPost, c.cfg.ChatsURL, nil, body, &chat); err != nil {
		return nil, mapError("open private chat", err)
	}
	if chat.ID == 0 {
		return nil, &domain.TransientError{Op: "open private chat", Err: errors.New("response carries no chat")}
	}
	if chat.Type == "" {
		chat.Type = domain.ChatPrivate
	}
	return &chat, nil
}

// UpdateChatAvatar sets or clears a chat's avatar. Only the creator may do
// this; anyone else gets domain.ErrForbidden.
func (c *Client) UpdateChatAvatar(ctx context.Context, chatID, userID int64, avatarURL *string) error {
	body := chatAvatarBody{ChatID: chatID, UserID: userID, AvatarURL: avatarURL}
	if err := c.do(ctx, "update chat avatar", http.MethodPut, c.cfg.ChatsURL, nil, body, nil); err != nil {
		return mapError("update chat avatar", err)
	}
	return nil
}
