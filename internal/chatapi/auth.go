package chatapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/weiawesome/duwdu-messenger/internal/domain"
)

type authBody struct {
	Action      domain.AuthMode `json:"action"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	DisplayName string          `json:"display_name,omitempty"`
}

type profileBody struct {
	UserID    int64   `json:"user_id"`
	AvatarURL *string `json:"avatar_url"`
}

// Authenticate logs in or registers and returns the resulting identity.
func (c *Client) Authenticate(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	creds.Normalize()
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	body := authBody{
		Action:   creds.Mode,
		Username: creds.Username,
		Password: creds.Password,
	}
	if creds.Mode == domain.AuthRegister {
		body.DisplayName = creds.DisplayName
	}

	var sess domain.Session
	if err := c.do(ctx, "authenticate", http.MethodPost, c.cfg.AuthURL, nil, body, &sess); err != nil {
		return nil, mapAuthError("authenticate", err)
	}
	if !sess.Valid() {
		return nil, &domain.TransientError{Op: "authenticate", Err: errors.New("response carries no user")}
	}
	return &sess, nil
}

// UpdateProfile sets or clears (nil) the user's avatar.
func (c *Client) UpdateProfile(ctx context.Context, userID int64, avatarURL *string) (*domain.Session, error) {
	var sess domain.Session
	err := c.do(ctx, "update profile", http.MethodPut, c.cfg.AuthURL, nil, profileBody{UserID: userID, AvatarURL: avatarURL}, &sess)
	if err != nil {
		return nil, mapAuthError("update profile", err)
	}
	if !sess.Valid() {
		return nil, &domain.TransientError{Op: "update profile", Err: errors.New("response carries no user")}
	}
	return &sess, nil
}

// mapAuthError reports rejected credentials as *domain.AuthError.
func mapAuthError(op string, err error) error {
	var se *statusError
	if errors.As(err, &se) {
		switch se.status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusConflict:
			return &domain.AuthError{Status: se.status, Message: se.message}
		}
	}
	return mapError(op, err)
}
