// Package app wires the session store, chat list, thread, search and media
// pipeline into one application state, and turns failures into notices.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/weiawesome/duwdu-messenger/internal/audit"
	"github.com/weiawesome/duwdu-messenger/internal/chatlist"
	"github.com/weiawesome/duwdu-messenger/internal/domain"
	"github.com/weiawesome/duwdu-messenger/internal/media"
	"github.com/weiawesome/duwdu-messenger/internal/notice"
	"github.com/weiawesome/duwdu-messenger/internal/search"
	"github.com/weiawesome/duwdu-messenger/internal/session"
	"github.com/weiawesome/duwdu-messenger/internal/thread"
	"github.com/weiawesome/duwdu-messenger/pkg/log"
)

// API is the Chat Service as the controller uses it.
type API interface {
	Authenticate(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	UpdateProfile(ctx context.Context, userID int64, avatarURL *string) (*domain.Session, error)
	chatlist.Backend
	thread.Backend
	search.Backend
}

// Publisher announces a sent message so other clients poll at once.
type Publisher interface {
	Publish(ctx context.Context, chatID, messageID int64) error
}

// Options tunes the controller's components.
type Options struct {
	PollInterval   time.Duration
	SearchDebounce time.Duration
	MaxUploadBytes int64
	AvatarSize     int
	Nudger         thread.Nudger
	Publisher      Publisher
	Recorder       media.Recorder
	NoticeCapacity int
}

// Controller owns the application state. All methods are safe for
// concurrent use.
type Controller struct {
	api        API
	store      session.Store
	uploader   media.Uploader
	publisher  Publisher
	avatarSize int

	notices *notice.Sink
	chats   *chatlist.Reconciler
	thread  *thread.Synchronizer
	search  *search.Debouncer
	media   *media.Pipeline

	mu      sync.RWMutex
	session *domain.Session

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
	version uint64
}

// New builds a controller. Call Start to restore a saved session.
func New(api API, store session.Store, uploader media.Uploader, opts Options) *Controller {
	c := &Controller{
		api:        api,
		store:      store,
		uploader:   uploader,
		publisher:  opts.Publisher,
		avatarSize: opts.AvatarSize,
		notices:    notice.NewSink(opts.NoticeCapacity),
		subs:       make(map[int]chan Snapshot),
	}

	c.chats = chatlist.New(api)
	threadOpts := []thread.Option{
		thread.WithPollInterval(opts.PollInterval),
		thread.WithAfterSend(c.afterSend),
		thread.WithOnChange(c.publish),
	}
	if opts.Nudger != nil {
		threadOpts = append(threadOpts, thread.WithNudger(opts.Nudger))
	}
	c.thread = thread.New(api, threadOpts...)

	searchOpts := []search.Option{search.WithOnChange(c.publish)}
	if opts.SearchDebounce > 0 {
		searchOpts = append(searchOpts, search.WithDelay(opts.SearchDebounce))
	}
	c.search = search.NewDebouncer(api, c.notices, searchOpts...)

	mediaOpts := []media.PipelineOption{media.WithMaxBytes(opts.MaxUploadBytes)}
	if opts.Recorder != nil {
		mediaOpts = append(mediaOpts, media.WithRecorder(opts.Recorder))
	}
	c.media = media.NewPipeline(uploader, c.thread, mediaOpts...)

	c.chats.OnSelect(c.onSelect)
	c.chats.OnChange(c.publish)
	c.notices.Listen(func(notice.Notice) { c.publish() })
	return c
}

// Start restores the saved session, if any, and loads its chats.
func (c *Controller) Start(ctx context.Context) error {
	sess, err := c.store.Restore(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		l := log.Ctx(ctx)
		l.Info().Msg("no saved session")
		return nil
	}

	c.setSession(sess)
	c.auditSession(ctx, audit.ActionRestore, sess, "session restored")
	c.refreshChats(ctx)
	return nil
}

// Close stops background polling and timers.
func (c *Controller) Close() {
	c.thread.Close()
	c.search.Close()
}

// Session returns the logged-in user, or nil.
func (c *Controller) Session() *domain.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *Controller) userID() (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return 0, domain.ErrNoSession
	}
	return c.session.ID, nil
}

func (c *Controller) setSession(s *domain.Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	var id int64
	if s != nil {
		id = s.ID
	}
	c.thread.SetUser(id)
	c.search.SetUser(id)
	c.publish()
}

func (c *Controller) onSelect(chat *domain.Chat) {
	if chat == nil {
		c.thread.Close()
		return
	}
	c.thread.Open(chat.ID)
}

// afterSend refreshes the chat list so the last-message preview follows,
// then announces the message. A failed announcement is only logged.
func (c *Controller) afterSend(ctx context.Context, msg domain.Message) {
	c.refreshChats(ctx)
	if c.publisher == nil {
		return
	}
	chatID := msg.ChatID
	if chatID == 0 {
		chatID = c.thread.ChatID()
	}
	if err := c.publisher.Publish(ctx, chatID, msg.ID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Int64(log.FieldChatID, chatID).Int64(log.FieldMessageID, msg.ID).Msg("failed to announce message")
	}
}

// refreshChats reloads the chat list. Failures are only logged.
func (c *Controller) refreshChats(ctx context.Context) {
	id, err := c.userID()
	if err != nil {
		return
	}
	if err := c.chats.Refresh(ctx, id); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Int64(log.FieldUserID, id).Msg("chat list refresh failed")
	}
}

// RefreshChats reloads the chat list on demand.
func (c *Controller) RefreshChats(ctx context.Context) error {
	id, err := c.userID()
	if err != nil {
		return c.fail(ctx, "refresh chats", err)
	}
	if err := c.chats.Refresh(ctx, id); err != nil {
		return c.fail(ctx, "refresh chats", err)
	}
	return nil
}

// fail reports err as a notice and returns it.
func (c *Controller) fail(ctx context.Context, op string, err error) error {
	l := log.Ctx(ctx)
	if domain.IsTransient(err) {
		l.Warn().Err(err).Str("op", op).Msg("action failed")
	} else {
		l.Debug().Err(err).Str("op", op).Msg("action rejected")
	}
	c.notices.Error(noticeText(err))
	return err
}

// Notices exposes the notice sink.
func (c *Controller) Notices() *notice.Sink {
	return c.notices
}
