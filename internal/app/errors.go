package app

import (
	"errors"

	"github.com/weiawesome/duwdu-messenger/internal/domain"
	"github.com/weiawesome/duwdu-messenger/internal/notice"
)

// noticeText picks the text shown for a failed action.
func noticeText(err error) string {
	var (
		verr *domain.ValidationError
		aerr *domain.AuthError
		rerr *domain.RequestError
	)
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.As(err, &aerr):
		if aerr.Message != "" {
			return aerr.Message
		}
		return notice.MsgAuthFallback
	case errors.Is(err, domain.ErrForbidden):
		return notice.MsgForbidden
	case errors.Is(err, domain.ErrHandleTaken):
		return notice.MsgHandleTaken
	case errors.Is(err, domain.ErrMediaCapability):
		return notice.MsgMediaCapability
	case errors.Is(err, domain.ErrNoSession):
		return "Please log in first"
	case errors.Is(err, domain.ErrNoChatSelected):
		return "Select a chat first"
	case errors.Is(err, domain.ErrNotFound):
		return "Not found"
	case errors.As(err, &rerr) && rerr.Message != "":
		return rerr.Message
	}
	return notice.MsgNetwork
}
