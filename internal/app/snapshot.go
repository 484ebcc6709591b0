package app

import (
	"github.com/weiawesome/duwdu-messenger/internal/domain"
	"github.com/weiawesome/duwdu-messenger/internal/media"
	"github.com/weiawesome/duwdu-messenger/internal/notice"
	"github.com/weiawesome/duwdu-messenger/internal/search"
	"github.com/weiawesome/duwdu-messenger/internal/thread"
)

// Snapshot is the complete view state at one moment.
type Snapshot struct {
	Version    uint64             `json:"version"`
	User       *domain.Session    `json:"user"`
	Chats      []domain.Chat      `json:"chats"`
	Selected   *domain.Chat       `json:"selected_chat"`
	Thread     ThreadView         `json:"thread"`
	Search     SearchView         `json:"search"`
	Attachment *media.PendingInfo `json:"pending_attachment"`
	Notices    []notice.Notice    `json:"notices"`
}

type ThreadView struct {
	State    thread.State     `json:"state"`
	ChatID   int64            `json:"chat_id,omitempty"`
	Messages []domain.Message `json:"messages"`
}

type SearchView struct {
	Open    bool           `json:"open"`
	Text    string         `json:"text"`
	Results search.Results `json:"results"`
}
