package domain

import "unicode"

// UserRef is a user as embedded in chats, messages and search results.
// It is never cached on its own; the latest server response wins.
type UserRef struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	AvatarColor string     `json:"avatar_color"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	IsOnline    *bool      `json:"is_online,omitempty"`
	Bio         string     `json:"bio,omitempty"`
	LastSeen    *Timestamp `json:"last_seen,omitempty"`
}

// Initial is the upper-cased first rune of the display name, used for
// avatar placeholders.
func (u UserRef) Initial() string {
	name := u.DisplayName
	if name == "" {
		name = u.Username
	}
	for _, r := range name {
		return string(unicode.ToUpper(r))
	}
	return "?"
}
