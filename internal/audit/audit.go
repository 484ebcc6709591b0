// Package audit records user-visible account and chat actions as structured
// log lines tagged log_type=audit.
package audit

import (
	"context"

	"github.com/weiawesome/duwdu-messenger/pkg/log"
)

const (
	ActionLogin             = "session.login"
	ActionRegister          = "session.register"
	ActionLoginFailed       = "session.login_failed"
	ActionRestore           = "session.restore"
	ActionLogout            = "session.logout"
	ActionUpdateAvatar      = "profile.update_avatar"
	ActionCreateChat        = "chat.create"
	ActionOpenPrivateChat   = "chat.open_private"
	ActionJoinChat          = "chat.join"
	ActionUpdateChatAvatar  = "chat.update_avatar"
	ActionDeleteMessage     = "message.delete"
	ActionDeleteDenied      = "message.delete_denied"
	ActionSendAttachment    = "message.send_attachment"
	ActionAttachmentFailure = "message.attachment_failed"
)

const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Entry is one audited action. Zero ids are left out.
type Entry struct {
	Action    string
	UserID    int64
	ChatID    int64
	MessageID int64
	Detail    string
}

// Record writes e through the context logger.
func Record(ctx context.Context, e Entry, msg string) {
	l := log.Ctx(ctx)
	ev := l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, e.Action)
	if e.UserID != 0 {
		ev = ev.Int64(log.FieldUserID, e.UserID)
	}
	if e.ChatID != 0 {
		ev = ev.Int64(log.FieldChatID, e.ChatID)
	}
	if e.MessageID != 0 {
		ev = ev.Int64(log.FieldMessageID, e.MessageID)
	}
	if e.Detail != "" {
		ev = ev.Str(FieldDetail, e.Detail)
	}
	ev.Msg(msg)
}

// Log records action by userID.
func Log(ctx context.Context, action string, userID int64, msg string) {
	Record(ctx, Entry{Action: action, UserID: userID}, msg)
}
