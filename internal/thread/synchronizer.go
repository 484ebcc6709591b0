// Package thread keeps the messages of the selected chat current by polling
// the Chat Service, and sends and deletes messages in that chat.
package thread

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/weiawesome/duwdu-messenger/internal/chatapi"
	"github.com/weiawesome/duwdu-messenger/internal/domain"
	"github.com/weiawesome/duwdu-messenger/pkg/log"
)

const DefaultPollInterval = 2 * time.Second

// State is the lifecycle of the thread view.
type State string

const (
	Idle    State = "idle"    // no chat selected
	Loading State = "loading" // first fetch for the selected chat outstanding
	Live    State = "live"    // messages loaded, polling
)

// Backend is the subset of the Chat Service used for a thread.
type Backend interface {
	ListMessages(ctx context.Context, chatID int64) ([]domain.Message, error)
	SendMessage(ctx context.Context, req chatapi.SendMessageRequest) (*domain.Message, error)
	DeleteMessage(ctx context.Context, messageID, userID int64) error
}

// Nudger delivers a signal whenever a chat may have new messages. The
// channel is closed when ctx ends.
type Nudger interface {
	Nudges(ctx context.Context, chatID int64) (<-chan struct{}, error)
}

type Option func(*Synchronizer)

func WithPollInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithNudger(n Nudger) Option {
	return func(s *Synchronizer) { s.nudger = n }
}

// WithAfterSend registers a hook run after every successful send.
func WithAfterSend(fn func(ctx context.Context, msg domain.Message)) Option {
	return func(s *Synchronizer) { s.afterSend = fn }
}

// WithOnChange registers a callback run after the visible thread changes.
func WithOnChange(fn func()) Option {
	return func(s *Synchronizer) { s.onChange = fn }
}

// pollLoop is the running poller of one selected chat.
type pollLoop struct {
	cancel context.CancelFunc
	doneCh chan struct{}
}

// Synchronizer owns the message sequence of the selected chat. The sequence
// only ever holds messages of the chat currently selected.
type Synchronizer struct {
	backend   Backend
	nudger    Nudger
	interval  time.Duration
	afterSend func(context.Context, domain.Message)
	onChange  func()

	// lifecycle serialises Open and Close so loops never overlap.
	lifecycle sync.Mutex
	loop      *pollLoop

	mu          sync.Mutex
	state       State
	userID      int64
	chatID      int64
	generation  uint64
	fetchSeq    uint64
	messages    []domain.Message
	unconfirmed map[int64]pending // sent locally, not yet seen in a fetch
	tombstones  map[int64]uint64  // deleted locally, keyed to fetchSeq at deletion
}

type pending struct {
	msg      domain.Message
	fetchSeq uint64
}

// New creates an idle synchronizer.
func New(backend Backend, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		backend:     backend,
		interval:    DefaultPollInterval,
		state:       Idle,
		unconfirmed: make(map[int64]pending),
		tombstones:  make(map[int64]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetUser sets the author of sent messages. Zero means logged out.
func (s *Synchronizer) SetUser(userID int64) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

// Open switches the thread to chatID. The previous poll loop is stopped and
// has exited before the messages are cleared and the new loop starts.
func (s *Synchronizer) Open(chatID int64) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.stopLoop()

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.chatID = chatID
	s.messages = nil
	s.unconfirmed = make(map[int64]pending)
	s.tombstones = make(map[int64]uint64)
	s.state = Loading
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	ctx = log.WithChat(ctx, chatID)
	loop := &pollLoop{cancel: cancel, doneCh: make(chan struct{})}
	s.loop = loop
	go s.run(ctx, chatID, gen, loop.doneCh)

	l := log.Ctx(ctx)
	l.Debug().Uint64("generation", gen).Msg("thread opened")
	s.changed()
}

// Close stops polling and returns to Idle.
func (s *Synchronizer) Close() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.stopLoop()

	s.mu.Lock()
	wasOpen := s.state != Idle
	s.generation++
	s.chatID = 0
	s.messages = nil
	s.unconfirmed = make(map[int64]pending)
	s.tombstones = make(map[int64]uint64)
	s.state = Idle
	s.mu.Unlock()

	if wasOpen {
		s.changed()
	}
}

func (s *Synchronizer) stopLoop() {
	if s.loop == nil {
		return
	}
	s.loop.cancel()
	<-s.loop.doneCh
	s.loop = nil
}

func (s *Synchronizer) run(ctx context.Context, chatID int64, gen uint64, doneCh chan struct{}) {
	defer close(doneCh)
	logger := log.Ctx(ctx)

	var inFlight atomic.Bool
	poll := func(reason string) {
		if !inFlight.CompareAndSwap(false, true) {
			logger.Debug().Str("reason", reason).Msg("poll skipped, previous still in flight")
			return
		}
		go func() {
			defer inFlight.Store(false)
			s.fetch(ctx, chatID, gen)
		}()
	}

	poll("initial")

	var nudges <-chan struct{}
	if s.nudger != nil {
		ch, err := s.nudger.Nudges(ctx, chatID)
		if err != nil {
			logger.Warn().Err(err).Msg("push nudges unavailable, polling only")
		} else {
			nudges = ch
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll("tick")
		case _, ok := <-nudges:
			if !ok {
				nudges = nil
				continue
			}
			poll("nudge")
		}
	}
}

// fetch loads the thread and applies it only if (chatID, gen) is still the
// current selection.
func (s *Synchronizer) fetch(ctx context.Context, chatID int64, gen uint64) {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	msgs, err := s.backend.ListMessages(ctx, chatID)

	s.mu.Lock()
	if chatID != s.chatID || gen != s.generation {
		s.mu.Unlock()
		l := log.Ctx(ctx)
		l.Debug().Uint64("generation", gen).Msg("discarding messages of a previous selection")
		return
	}
	if err != nil {
		s.mu.Unlock()
		if ctx.Err() == nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("message poll failed")
		}
		return
	}
	s.messages = s.mergeLocked(msgs, chatID, seq)
	s.state = Live
	s.mu.Unlock()

	s.changed()
}

// mergeLocked replaces the sequence with a fetched one. Messages sent after
// the fetch was issued are kept, and messages deleted after it was issued
// stay gone.
func (s *Synchronizer) mergeLocked(fetched []domain.Message, chatID int64, seq uint64) []domain.Message {
	out := make([]domain.Message, 0, len(fetched)+len(s.unconfirmed))
	seen := make(map[int64]struct{}, len(fetched))
	for _, m := range fetched {
		if m.ChatID != 0 && m.ChatID != chatID {
			continue
		}
		if at, ok := s.tombstones[m.ID]; ok && seq <= at {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	for id, at := range s.tombstones {
		if seq > at {
			delete(s.tombstones, id)
		}
	}
	for id, p := range s.unconfirmed {
		_, ok := seen[id]
		if ok || seq > p.fetchSeq {
			delete(s.unconfirmed, id)
			continue
		}
		out = append(out, p.msg)
	}
	return out
}

// Send posts a message to the open chat. On success the echoed message is
// appended, if that chat is still open, and the after-send hook runs. On
// failure nothing changes.
func (s *Synchronizer) Send(ctx context.Context, content string, typ domain.MessageType, mediaURL string) (*domain.Message, error) {
	if typ == "" || typ == domain.MessageText {
		content = strings.TrimSpace(content)
	}
	out := domain.OutgoingMessage{Content: content, Type: typ, MediaURL: mediaURL}
	if err := out.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	chatID, userID := s.chatID, s.userID
	s.mu.Unlock()
	if userID == 0 {
		return nil, domain.ErrNoSession
	}
	if chatID == 0 {
		return nil, domain.ErrNoChatSelected
	}

	ctx = log.WithChat(ctx, chatID)
	msg, err := s.backend.SendMessage(ctx, chatapi.SendMessageRequest{
		ChatID:   chatID,
		UserID:   userID,
		Content:  out.Content,
		Type:     out.Type,
		MediaURL: out.MediaURL,
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	s.mu.Lock()
	appended := false
	if s.chatID == chatID && !containsMessage(s.messages, msg.ID) {
		s.messages = append(s.messages, *msg)
		s.unconfirmed[msg.ID] = pending{msg: *msg, fetchSeq: s.fetchSeq}
		appended = true
	}
	s.mu.Unlock()

	l := log.Ctx(ctx)
	l.Debug().Int64(log.FieldMessageID, msg.ID).Bool("appended", appended).Msg("message sent")
	if appended {
		s.changed()
	}
	if s.afterSend != nil {
		s.afterSend(ctx, *msg)
	}
	return msg, nil
}

// SendSticker sends emoji as a sticker message.
func (s *Synchronizer) SendSticker(ctx context.Context, emoji string) (*domain.Message, error) {
	return s.Send(ctx, emoji, domain.MessageSticker, "")
}

// Delete removes a message. The local sequence changes only once the
// server accepts.
func (s *Synchronizer) Delete(ctx context.Context, messageID int64) error {
	s.mu.Lock()
	chatID, userID := s.chatID, s.userID
	s.mu.Unlock()
	if userID == 0 {
		return domain.ErrNoSession
	}
	if chatID == 0 {
		return domain.ErrNoChatSelected
	}

	ctx = log.WithChat(ctx, chatID)
	if err := s.backend.DeleteMessage(ctx, messageID, userID); err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}

	s.mu.Lock()
	removed := false
	if s.chatID == chatID {
		kept := s.messages[:0]
		for _, m := range s.messages {
			if m.ID == messageID {
				removed = true
				continue
			}
			kept = append(kept, m)
		}
		s.messages = kept
		delete(s.unconfirmed, messageID)
		s.tombstones[messageID] = s.fetchSeq
	}
	s.mu.Unlock()

	l := log.Ctx(ctx)
	l.Info().Int64(log.FieldMessageID, messageID).Msg("message deleted")
	if removed {
		s.changed()
	}
	return nil
}

// State returns the lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ChatID returns the open chat, or 0.
func (s *Synchronizer) ChatID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Messages returns a copy of the thread, oldest first.
func (s *Synchronizer) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

// View returns the state, open chat and a copy of its messages as of one
// instant.
func (s *Synchronizer) View() (State, int64, []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.chatID, append([]domain.Message(nil), s.messages...)
}

// Find returns the message with id in the open thread.
func (s *Synchronizer) Find(id int64) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Message{}, false
}

func (s *Synchronizer) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func containsMessage(msgs []domain.Message, id int64) bool {
	for _, m := range msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}
