package domain

import "strings"

// SessionKey is the fixed storage key the logged-in identity is kept under.
const SessionKey = "duwdu_user"

// Session is the locally persisted identity of the logged-in user.
type Session struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarColor string `json:"avatar_color"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Valid reports whether the session carries enough to act as the user.
func (s *Session) Valid() bool {
	return s != nil && s.ID > 0 && strings.TrimSpace(s.Username) != ""
}

// Ref returns the session user as it appears on messages.
func (s *Session) Ref() UserRef {
	return UserRef{
		ID:          s.ID,
		Username:    s.Username,
		DisplayName: s.DisplayName,
		AvatarColor: s.AvatarColor,
		AvatarURL:   s.AvatarURL,
	}
}

// AuthMode selects between logging in and creating an account.
type AuthMode string

const (
	AuthLogin    AuthMode = "login"
	AuthRegister AuthMode = "register"
)

// Credentials is the input of an authentication attempt.
type Credentials struct {
	Mode        AuthMode `json:"mode"`
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	DisplayName string   `json:"display_name,omitempty"`
}

// Normalize trims user-entered fields and defaults the mode to login.
func (c *Credentials) Normalize() {
	c.Username = strings.TrimSpace(c.Username)
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	if c.Mode == "" {
		c.Mode = AuthLogin
	}
}

// Validate rejects credentials that cannot succeed without asking the server.
func (c *Credentials) Validate() error {
	switch c.Mode {
	case AuthLogin, AuthRegister:
	default:
		return NewValidationError("mode", "unknown auth mode")
	}
	if c.Username == "" {
		return NewValidationError("username", "username is required")
	}
	if c.Password == "" {
		return NewValidationError("password", "password is required")
	}
	if c.Mode == AuthRegister && c.DisplayName == "" {
		return NewValidationError("display_name", "display name is required")
	}
	return nil
}
