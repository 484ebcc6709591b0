package app

import (
	"context"
	"fmt"

	"github.com/weiawesome/duwdu-messenger/internal/audit"
	"github.com/weiawesome/duwdu-messenger/internal/domain"
	"github.com/weiawesome/duwdu-messenger/pkg/log"
)

// Login authenticates an existing account.
func (c *Controller) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	creds.Mode = domain.AuthLogin
	return c.authenticate(ctx, creds)
}

// Register creates an account and logs in.
func (c *Controller) Register(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	creds.Mode = domain.AuthRegister
	return c.authenticate(ctx, creds)
}

func (c *Controller) authenticate(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	creds.Normalize()
	if err := creds.Validate(); err != nil {
		return nil, c.fail(ctx, "authenticate", err)
	}

	sess, err := c.api.Authenticate(ctx, creds)
	if err != nil {
		audit.Record(ctx, audit.Entry{Action: audit.ActionLoginFailed, Detail: creds.Username}, "authentication failed")
		return nil, c.fail(ctx, "authenticate", err)
	}

	if err := c.store.Save(ctx, sess); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to persist session")
	}

	// A different user may be logging in; start from a clean state.
	c.resetState()
	c.setSession(sess)

	action := audit.ActionLogin
	if creds.Mode == domain.AuthRegister {
		action = audit.ActionRegister
	}
	c.auditSession(ctx, action, sess, "authenticated")
	c.notices.Success(fmt.Sprintf("Welcome, %s!", displayName(sess)))

	c.refreshChats(ctx)
	return sess, nil
}

// Logout forgets the session locally and clears all state.
func (c *Controller) Logout(ctx context.Context) error {
	sess := c.Session()
	c.resetState()
	c.setSession(nil)
	c.notices.Clear()

	if err := c.store.Clear(ctx); err != nil {
		return c.fail(ctx, "logout", err)
	}
	if sess != nil {
		c.auditSession(ctx, audit.ActionLogout, sess, "logged out")
	}
	c.publish()
	return nil
}

func (c *Controller) resetState() {
	c.chats.Reset()
	c.thread.Close()
	c.search.SetOpen(false)
	c.search.Reset()
	c.media.Discard()
}

// UpdateAvatar resizes and uploads a new profile picture.
func (c *Controller) UpdateAvatar(ctx context.Context, filename string, data []byte) (*domain.Session, error) {
	id, err := c.userID()
	if err != nil {
		return nil, c.fail(ctx, "update avatar", err)
	}
	url, err := c.uploadAvatar(ctx, filename, data)
	if err != nil {
		return nil, c.fail(ctx, "update avatar", err)
	}
	return c.setAvatar(ctx, id, &url)
}

// RemoveAvatar clears the profile picture.
func (c *Controller) RemoveAvatar(ctx context.Context) (*domain.Session, error) {
	id, err := c.userID()
	if err != nil {
		return nil, c.fail(ctx, "remove avatar", err)
	}
	return c.setAvatar(ctx, id, nil)
}

func (c *Controller) setAvatar(ctx context.Context, userID int64, url *string) (*domain.Session, error) {
	updated, err := c.api.UpdateProfile(ctx, userID, url)
	if err != nil {
		return nil, c.fail(ctx, "update avatar", err)
	}

	c.mu.Lock()
	if c.session == nil || c.session.ID != userID {
		c.mu.Unlock()
		return nil, c.fail(ctx, "update avatar", domain.ErrNoSession)
	}
	merged := *c.session
	merged.AvatarURL = updated.AvatarURL
	if updated.DisplayName != "" {
		merged.DisplayName = updated.DisplayName
	}
	c.session = &merged
	c.mu.Unlock()

	if err := c.store.Save(ctx, &merged); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to persist session")
	}
	audit.Log(ctx, audit.ActionUpdateAvatar, userID, "avatar updated")
	c.notices.Success("Profile updated")
	c.publish()
	return &merged, nil
}

func (c *Controller) auditSession(ctx context.Context, action string, s *domain.Session, msg string) {
	audit.Record(ctx, audit.Entry{Action: action, UserID: s.ID, Detail: s.Username}, msg)
}

func displayName(s *domain.Session) string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Username
}
