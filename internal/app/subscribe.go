package app

import "sync/atomic"

// Snapshot returns the current view state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Version:    atomic.LoadUint64(&c.version),
		User:       c.Session(),
		Chats:      c.chats.Chats(),
		Selected:   c.chats.Selected(),
		Attachment: c.media.Pending(),
		Notices:    c.notices.Recent(),
	}
	s.Thread.State, s.Thread.ChatID, s.Thread.Messages = c.thread.View()
	s.Search.Open = c.search.Open()
	s.Search.Text = c.search.Text()
	s.Search.Results = c.search.Results()
	return s
}

// Subscribe returns a channel receiving a snapshot after every change.
// Slow readers only see the latest one. Call the returned func to stop.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once bool
	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if once {
			return
		}
		once = true
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Controller) publish() {
	atomic.AddUint64(&c.version, 1)

	c.subMu.Lock()
	n := len(c.subs)
	c.subMu.Unlock()
	if n == 0 {
		return
	}

	snap := c.Snapshot()

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot with the newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
