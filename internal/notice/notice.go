// Package notice holds the short, transient messages shown to the user.
package notice

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Error   Level = "error"
)

// Fixed texts.
const (
	MsgForbidden       = "You don't have permission to do that"
	MsgNetwork         = "Something went wrong. Check your connection and try again"
	MsgAuthFallback    = "Login failed"
	MsgMediaCapability = "Microphone access is not available"
	MsgVideoCall       = "Video calls are coming soon!"
	MsgSearchFailed    = "Search failed"
	MsgUploadFailed    = "Upload failed. You can retry"
	MsgHandleTaken     = "This handle is already taken"
)

const defaultCapacity = 20

type Notice struct {
	ID    string    `json:"id"`
	Level Level     `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Sink keeps the most recent notices and fans new ones out to listeners.
type Sink struct {
	mu        sync.Mutex
	capacity  int
	items     []Notice
	listeners map[int]func(Notice)
	nextID    int
	now       func() time.Time
}

// NewSink creates a sink that remembers up to capacity notices.
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Sink{
		capacity:  capacity,
		listeners: make(map[int]func(Notice)),
		now:       time.Now,
	}
}

// Push records a notice and returns it.
func (s *Sink) Push(level Level, text string) Notice {
	n := Notice{ID: uuid.NewString(), Level: level, Text: text}

	s.mu.Lock()
	n.At = s.now()
	s.items = append(s.items, n)
	if len(s.items) > s.capacity {
		s.items = append([]Notice(nil), s.items[len(s.items)-s.capacity:]...)
	}
	listeners := make([]func(Notice), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(n)
	}
	return n
}

func (s *Sink) Info(text string) Notice    { return s.Push(Info, text) }
func (s *Sink) Success(text string) Notice { return s.Push(Success, text) }
func (s *Sink) Error(text string) Notice   { return s.Push(Error, text) }

// Recent returns the stored notices, oldest first.
func (s *Sink) Recent() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notice, len(s.items))
	copy(out, s.items)
	return out
}

// Clear drops all stored notices.
func (s *Sink) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

// Listen registers fn for every future notice. The returned func removes it.
func (s *Sink) Listen(fn func(Notice)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
