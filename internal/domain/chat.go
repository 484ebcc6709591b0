package domain

import (
	"regexp"
	"strings"
)

// ChatType is the kind of conversation container.
type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
	ChatChannel ChatType = "channel"
)

// Valid reports whether t is a known chat type.
func (t ChatType) Valid() bool {
	switch t {
	case ChatPrivate, ChatGroup, ChatChannel:
		return true
	}
	return false
}

// Chat is a conversation as listed in the sidebar.
type Chat struct {
	ID              int64       `json:"id"`
	Name            string      `json:"name"`
	Type            ChatType    `json:"type"`
	LastMessage     string      `json:"last_message,omitempty"`
	LastMessageTime *Timestamp  `json:"last_message_time,omitempty"`
	LastMessageType MessageType `json:"last_message_type,omitempty"`
	UnreadCount     int         `json:"unread_count,omitempty"`
	OtherUser       *UserRef    `json:"other_user,omitempty"`
	AvatarURL       string      `json:"avatar_url,omitempty"`
	CreatedBy       int64       `json:"created_by,omitempty"`
	Username        string      `json:"username,omitempty"`
	CreatedAt       *Timestamp  `json:"created_at,omitempty"`
}

// Title is the name shown for the chat; private chats show the peer.
func (c *Chat) Title() string {
	if c.Type == ChatPrivate && c.OtherUser != nil {
		if c.OtherUser.DisplayName != "" {
			return c.OtherUser.DisplayName
		}
		return c.OtherUser.Username
	}
	return c.Name
}

// IsCreator reports whether userID created the chat.
func (c *Chat) IsCreator(userID int64) bool {
	return c.CreatedBy != 0 && c.CreatedBy == userID
}

// Handle rules: lowercase latin letters, digits and underscore.
var handlePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidateHandle checks a public chat handle. An empty handle is allowed and
// means the chat has none.
func ValidateHandle(handle string) error {
	if handle == "" {
		return nil
	}
	if !handlePattern.MatchString(handle) {
		return NewValidationError("username", "handle may contain only lowercase letters, digits and underscore")
	}
	return nil
}

// NewChat is the input for creating a group or channel.
type NewChat struct {
	Name   string   `json:"name"`
	Type   ChatType `json:"type"`
	Handle string   `json:"username,omitempty"`
}

// Normalize trims user input and defaults the type to channel.
func (n *NewChat) Normalize() {
	n.Name = strings.TrimSpace(n.Name)
	n.Handle = strings.TrimSpace(n.Handle)
	if n.Type == "" {
		n.Type = ChatChannel
	}
}

// Validate rejects input that the Chat Service would refuse.
func (n *NewChat) Validate() error {
	if n.Name == "" {
		return NewValidationError("name", "chat name is required")
	}
	if n.Type != ChatGroup && n.Type != ChatChannel {
		return NewValidationError("type", "only groups and channels can be created by name")
	}
	return ValidateHandle(n.Handle)
}
