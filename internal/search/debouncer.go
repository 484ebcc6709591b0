// Package search turns keystrokes in the search box into at most one
// request per pause in typing and keeps only the newest answer.
package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/duwdu-messenger/internal/domain"
	"github.com/weiawesome/duwdu-messenger/internal/notice"
	"github.com/weiawesome/duwdu-messenger/pkg/log"
)

const (
	DefaultDelay   = 300 * time.Millisecond
	defaultTimeout = 10 * time.Second
)

// Backend runs the two remote searches.
type Backend interface {
	SearchUsers(ctx context.Context, query string, excludingUserID int64) ([]domain.UserRef, error)
	SearchChats(ctx context.Context, query string) ([]domain.Chat, error)
}

// Notifier receives the failure notice of a search.
type Notifier interface {
	Push(level notice.Level, text string) notice.Notice
}

// Timer is the part of *time.Timer the debouncer uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Results is what the search panel shows.
type Results struct {
	Query string           `json:"query"`
	Users []domain.UserRef `json:"users"`
	Chats []domain.Chat    `json:"chats"`
}

type Option func(*Debouncer)

func WithDelay(d time.Duration) Option {
	return func(db *Debouncer) {
		if d >= 0 {
			db.delay = d
		}
	}
}

func WithAfterFunc(fn AfterFunc) Option {
	return func(db *Debouncer) { db.afterFunc = fn }
}

func WithTimeout(d time.Duration) Option {
	return func(db *Debouncer) {
		if d > 0 {
			db.timeout = d
		}
	}
}

// WithOnChange registers a callback invoked after every change of Results.
func WithOnChange(fn func()) Option {
	return func(db *Debouncer) { db.onChange = fn }
}

// Debouncer owns the search panel state.
type Debouncer struct {
	backend   Backend
	notifier  Notifier
	delay     time.Duration
	timeout   time.Duration
	afterFunc AfterFunc
	onChange  func()

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	userID  int64
	open    bool
	text    string
	timer   Timer
	armed   uint64 // bumps on every (re)arm; a stale timer sees a different value
	seq     uint64 // latest issued search
	results Results
	closed  bool
}

// NewDebouncer creates a debouncer. notifier may be nil.
func NewDebouncer(backend Backend, notifier Notifier, opts ...Option) *Debouncer {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Debouncer{
		backend:   backend,
		notifier:  notifier,
		delay:     DefaultDelay,
		timeout:   defaultTimeout,
		afterFunc: realAfterFunc,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetUser sets the user left out of user results.
func (d *Debouncer) SetUser(userID int64) {
	d.mu.Lock()
	d.userID = userID
	d.mu.Unlock()
}

// Input records the current search text. Blank text clears the results at
// once without a request. Text typed while the panel is closed is dropped.
func (d *Debouncer) Input(text string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if !d.open {
		text = ""
	}
	d.text = text
	d.stopTimerLocked()

	query := strings.TrimSpace(text)
	if query == "" {
		changed := d.resetLocked()
		d.mu.Unlock()
		if changed {
			d.changed()
		}
		return
	}

	d.armLocked(query)
	d.mu.Unlock()
}

// SetOpen opens or closes the panel. Closing cancels the pending search
// and clears text and results. Opening starts from empty text.
func (d *Debouncer) SetOpen(open bool) {
	d.mu.Lock()
	if d.closed || d.open == open {
		d.mu.Unlock()
		return
	}
	d.open = open

	if !open {
		d.stopTimerLocked()
		d.text = ""
		d.resetLocked()
		d.mu.Unlock()
		d.changed()
		return
	}
	d.mu.Unlock()
	d.changed()
}

// Open reports whether the panel is open.
func (d *Debouncer) Open() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Text returns the raw text last typed.
func (d *Debouncer) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// Results returns a copy of the current results.
func (d *Debouncer) Results() Results {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Results{
		Query: d.results.Query,
		Users: append([]domain.UserRef(nil), d.results.Users...),
		Chats: append([]domain.Chat(nil), d.results.Chats...),
	}
}

// Reset clears text, results and the pending search without closing the panel.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	d.stopTimerLocked()
	d.text = ""
	d.resetLocked()
	d.mu.Unlock()
	d.changed()
}

// Close stops the pending timer and abandons any in-flight search.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.stopTimerLocked()
	d.seq++
	d.mu.Unlock()
	d.cancel()
}

func (d *Debouncer) armLocked(query string) {
	d.armed++
	gen := d.armed
	d.timer = d.afterFunc(d.delay, func() { d.fire(gen, query) })
}

func (d *Debouncer) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.armed++
}

// resetLocked invalidates in-flight searches and empties the results.
func (d *Debouncer) resetLocked() bool {
	d.seq++
	changed := d.results.Query != "" || len(d.results.Users) > 0 || len(d.results.Chats) > 0
	d.results = Results{}
	return changed
}

func (d *Debouncer) fire(gen uint64, query string) {
	d.mu.Lock()
	if d.closed || gen != d.armed || !d.open {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.seq++
	seq := d.seq
	userID := d.userID
	d.mu.Unlock()

	d.run(seq, query, userID)
}

func (d *Debouncer) run(seq uint64, query string, userID int64) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	logger := log.L().With().Uint64(log.FieldSeq, seq).Str(log.FieldQuery, query).Logger()

	var users []domain.UserRef
	var chats []domain.Chat

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = d.backend.SearchUsers(gCtx, query, userID)
		return err
	})
	g.Go(func() error {
		var err error
		chats, err = d.backend.SearchChats(gCtx, query)
		return err
	})
	err := g.Wait()

	d.mu.Lock()
	if latest := d.seq; seq != latest {
		d.mu.Unlock()
		logger.Debug().Uint64("latest_seq", latest).Msg("discarding stale search response")
		return
	}
	if err != nil {
		d.mu.Unlock()
		logger.Warn().Err(err).Msg("search failed")
		if d.notifier != nil {
			d.notifier.Push(notice.Error, notice.MsgSearchFailed)
		}
		return
	}
	d.results = Results{Query: query, Users: users, Chats: chats}
	d.mu.Unlock()

	logger.Debug().Int("users", len(users)).Int("chats", len(chats)).Msg("search applied")
	d.changed()
}

func (d *Debouncer) changed() {
	if d.onChange != nil {
		d.onChange()
	}
}
