package app

import (
	"context"
	"fmt"

	"github.com/weiawesome/duwdu-messenger/internal/audit"
	"github.com/weiawesome/duwdu-messenger/internal/domain"
	"github.com/weiawesome/duwdu-messenger/internal/media"
)

// SelectChat makes chatID the selected chat and starts its thread.
func (c *Controller) SelectChat(ctx context.Context, chatID int64) (domain.Chat, error) {
	chat, err := c.chats.Select(chatID)
	if err != nil {
		return domain.Chat{}, c.fail(ctx, "select chat", err)
	}
	return chat, nil
}

// DeselectChat clears the selection and stops polling.
func (c *Controller) DeselectChat() {
	c.chats.Deselect()
}

// CreateChat creates a group or channel and selects it.
func (c *Controller) CreateChat(ctx context.Context, nc domain.NewChat) (*domain.Chat, error) {
	id, err := c.userID()
	if err != nil {
		return nil, c.fail(ctx, "create chat", err)
	}
	nc.Normalize()
	if err := nc.Validate(); err != nil {
		return nil, c.fail(ctx, "create chat", err)
	}

	chat, err := c.chats.CreateChat(ctx, id, nc)
	if err != nil {
		return nil, c.fail(ctx, "create chat", err)
	}
	audit.Record(ctx, audit.Entry{Action: audit.ActionCreateChat, UserID: id, ChatID: chat.ID, Detail: string(chat.Type)}, "chat created")

	what := "Channel"
	if chat.Type == domain.ChatGroup {
		what = "Group"
	}
	c.notices.Success(what + " created!")
	return chat, nil
}

// OpenPrivateChat opens (creating on first use) the private chat with
// otherUserID and closes the search panel.
func (c *Controller) OpenPrivateChat(ctx context.Context, otherUserID int64) (*domain.Chat, error) {
	id, err := c.userID()
	if err != nil {
		return nil, c.fail(ctx, "open private chat", err)
	}
	chat, err := c.chats.OpenPrivateChat(ctx, id, otherUserID)
	if err != nil {
		return nil, c.fail(ctx, "open private chat", err)
	}
	audit.Record(ctx, audit.Entry{Action: audit.ActionOpenPrivateChat, UserID: id, ChatID: chat.ID}, "private chat opened")
	c.search.SetOpen(false)
	return chat, nil
}

// JoinChat adds a chat from the current search results and selects it.
func (c *Controller) JoinChat(ctx context.Context, chatID int64) (*domain.Chat, error) {
	id, err := c.userID()
	if err != nil {
		return nil, c.fail(ctx, "join chat", err)
	}

	var found *domain.Chat
	for _, ch := range c.search.Results().Chats {
		if ch.ID == chatID {
			ch := ch
			found = &ch
			break
		}
	}
	if found == nil {
		return nil, c.fail(ctx, "join chat", fmt.Errorf("chat %d in search results: %w", chatID, domain.ErrNotFound))
	}

	c.chats.Join(*found)
	audit.Record(ctx, audit.Entry{Action: audit.ActionJoinChat, UserID: id, ChatID: chatID}, "chat joined")
	c.search.SetOpen(false)
	return found, nil
}

// UpdateChatAvatar sets a chat's picture. Only the chat's creator may.
func (c *Controller) UpdateChatAvatar(ctx context.Context, chatID int64, filename string, data []byte) error {
	id, err := c.userID()
	if err != nil {
		return c.fail(ctx, "update chat avatar", err)
	}
	if err := c.chats.CheckCreator(chatID, id); err != nil {
		return c.fail(ctx, "update chat avatar", err)
	}
	url, err := c.uploadAvatar(ctx, filename, data)
	if err != nil {
		return c.fail(ctx, "update chat avatar", err)
	}
	if err := c.chats.UpdateAvatar(ctx, chatID, id, &url); err != nil {
		return c.fail(ctx, "update chat avatar", err)
	}
	audit.Record(ctx, audit.Entry{Action: audit.ActionUpdateChatAvatar, UserID: id, ChatID: chatID}, "chat avatar updated")
	c.notices.Success("Chat picture updated")
	return nil
}

// RemoveChatAvatar clears a chat's picture. Only the chat's creator may.
func (c *Controller) RemoveChatAvatar(ctx context.Context, chatID int64) error {
	id, err := c.userID()
	if err != nil {
		return c.fail(ctx, "remove chat avatar", err)
	}
	if err := c.chats.UpdateAvatar(ctx, chatID, id, nil); err != nil {
		return c.fail(ctx, "remove chat avatar", err)
	}
	audit.Record(ctx, audit.Entry{Action: audit.ActionUpdateChatAvatar, UserID: id, ChatID: chatID, Detail: "removed"}, "chat avatar removed")
	c.notices.Success("Chat picture removed")
	return nil
}

func (c *Controller) uploadAvatar(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", domain.NewValidationError("file", "file is empty")
	}
	resized, err := media.ResizeAvatar(data, c.avatarSize)
	if err != nil {
		return "", domain.NewValidationError("file", "unsupported image")
	}
	return c.uploader.Upload(ctx, avatarName(filename), "image/jpeg", bytesReader(resized))
}
