// Package chatlist keeps the ordered sidebar list of chats and the single
// selected chat in step with the Chat Service.
package chatlist

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/duwdu-messenger/internal/chatapi"
	"github.com/weiawesome/duwdu-messenger/internal/domain"
	"github.com/weiawesome/duwdu-messenger/pkg/log"
)

// Backend is the subset of the Chat Service the reconciler needs.
type Backend interface {
	ListChats(ctx context.Context, userID int64) ([]domain.Chat, error)
	CreateChat(ctx context.Context, req chatapi.CreateChatRequest) (*domain.Chat, error)
	CreateOrGetPrivateChat(ctx context.Context, userID, otherUserID int64) (*domain.Chat, error)
	UpdateChatAvatar(ctx context.Context, chatID, userID int64, avatarURL *string) error
}

// Reconciler owns the chat list. At most one chat is selected at a time.
type Reconciler struct {
	backend Backend
	sf      singleflight.Group

	// selMu is held across a selection change and its onSelect call, so
	// the last chat handed to onSelect is always the selected one.
	selMu sync.Mutex

	mu       sync.Mutex
	chats    []domain.Chat
	selected *domain.Chat
	epoch    uint64 // bumps on Reset; older refreshes are dropped

	onSelect func(*domain.Chat)
	onChange func()
}

// New creates an empty reconciler.
func New(backend Backend) *Reconciler {
	return &Reconciler{backend: backend}
}

// OnSelect registers fn to be called whenever the selected chat changes
// identity. fn receives nil on deselect.
func (r *Reconciler) OnSelect(fn func(*domain.Chat)) {
	r.mu.Lock()
	r.onSelect = fn
	r.mu.Unlock()
}

// OnChange registers fn to be called after any change to the list.
func (r *Reconciler) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Refresh replaces the list with the server's. When nothing is selected
// the first chat becomes selected. Concurrent refreshes for the same user
// share one request.
func (r *Reconciler) Refresh(ctx context.Context, userID int64) error {
	r.mu.Lock()
	epoch := r.epoch
	r.mu.Unlock()

	v, err, shared := r.sf.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		return r.backend.ListChats(ctx, userID)
	})
	if err != nil {
		return fmt.Errorf("refresh chats: %w", err)
	}
	fresh := dedupe(v.([]domain.Chat))

	r.selMu.Lock()
	defer r.selMu.Unlock()
	r.mu.Lock()
	if epoch != r.epoch {
		r.mu.Unlock()
		l := log.Ctx(ctx)
		l.Debug().Int64(log.FieldUserID, userID).Msg("dropping chat list for a previous session")
		return nil
	}
	r.chats = fresh

	var picked *domain.Chat
	if r.selected != nil {
		if i := indexOf(r.chats, r.selected.ID); i >= 0 {
			c := r.chats[i]
			r.selected = &c
		}
	} else if len(r.chats) > 0 {
		c := r.chats[0]
		r.selected = &c
		picked = &c
	}
	onSelect, onChange := r.onSelect, r.onChange
	r.mu.Unlock()

	l := log.Ctx(ctx)
	l.Debug().Int64(log.FieldUserID, userID).Int("chats", len(fresh)).Bool("shared", shared).Msg("chat list refreshed")

	if picked != nil && onSelect != nil {
		c := *picked
		onSelect(&c)
	}
	if onChange != nil {
		onChange()
	}
	return nil
}

// Prepend puts chat at the top of the list, dropping any older entry with
// the same id, and selects it.
func (r *Reconciler) Prepend(chat domain.Chat) {
	r.selMu.Lock()
	defer r.selMu.Unlock()
	r.mu.Lock()
	list := make([]domain.Chat, 0, len(r.chats)+1)
	list = append(list, chat)
	for _, c := range r.chats {
		if c.ID != chat.ID {
			list = append(list, c)
		}
	}
	r.chats = list
	onSelect, onChange, switched := r.selectLocked(chat)
	r.mu.Unlock()

	if switched && onSelect != nil {
		c := chat
		onSelect(&c)
	}
	if onChange != nil {
		onChange()
	}
}

// Join adds a chat found through search and selects it.
func (r *Reconciler) Join(chat domain.Chat) {
	r.Prepend(chat)
}

// Select makes the listed chat with chatID the selected one.
func (r *Reconciler) Select(chatID int64) (domain.Chat, error) {
	r.selMu.Lock()
	defer r.selMu.Unlock()
	r.mu.Lock()
	i := indexOf(r.chats, chatID)
	if i < 0 {
		r.mu.Unlock()
		return domain.Chat{}, fmt.Errorf("chat %d: %w", chatID, domain.ErrNotFound)
	}
	chat := r.chats[i]
	onSelect, onChange, switched := r.selectLocked(chat)
	r.mu.Unlock()

	if switched {
		if onSelect != nil {
			c := chat
			onSelect(&c)
		}
		if onChange != nil {
			onChange()
		}
	}
	return chat, nil
}

// Deselect clears the selection.
func (r *Reconciler) Deselect() {
	r.selMu.Lock()
	defer r.selMu.Unlock()
	r.mu.Lock()
	if r.selected == nil {
		r.mu.Unlock()
		return
	}
	r.selected = nil
	onSelect, onChange := r.onSelect, r.onChange
	r.mu.Unlock()

	if onSelect != nil {
		onSelect(nil)
	}
	if onChange != nil {
		onChange()
	}
}

func (r *Reconciler) selectLocked(chat domain.Chat) (func(*domain.Chat), func(), bool) {
	switched := r.selected == nil || r.selected.ID != chat.ID
	c := chat
	r.selected = &c
	return r.onSelect, r.onChange, switched
}

// Selected returns a copy of the selected chat, or nil.
func (r *Reconciler) Selected() *domain.Chat {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == nil {
		return nil
	}
	c := *r.selected
	return &c
}

// SelectedID returns the selected chat's id, or 0.
func (r *Reconciler) SelectedID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == nil {
		return 0
	}
	return r.selected.ID
}

// Chats returns a copy of the list in display order.
func (r *Reconciler) Chats() []domain.Chat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Chat(nil), r.chats...)
}

// Reset empties the list and selection, e.g. on logout. Refreshes that
// started before Reset are ignored when they complete.
func (r *Reconciler) Reset() {
	r.selMu.Lock()
	defer r.selMu.Unlock()
	r.mu.Lock()
	r.epoch++
	r.chats = nil
	hadSelection := r.selected != nil
	r.selected = nil
	onSelect, onChange := r.onSelect, r.onChange
	r.mu.Unlock()

	if hadSelection && onSelect != nil {
		onSelect(nil)
	}
	if onChange != nil {
		onChange()
	}
}

// CreateChat creates a group or channel owned by userID and selects it.
func (r *Reconciler) CreateChat(ctx context.Context, userID int64, nc domain.NewChat) (*domain.Chat, error) {
	chat, err := r.backend.CreateChat(ctx, chatapi.CreateChatRequest{
		Name:   nc.Name,
		Type:   nc.Type,
		UserID: userID,
		Handle: nc.Handle,
	})
	if err != nil {
		return nil, err
	}
	if chat.CreatedBy == 0 {
		chat.CreatedBy = userID
	}
	r.Prepend(*chat)
	l := log.Ctx(ctx)
	l.Info().Int64(log.FieldChatID, chat.ID).Str("type", string(chat.Type)).Msg("chat created")
	return chat, nil
}

// OpenPrivateChat opens the one-to-one chat with otherUserID and selects it.
func (r *Reconciler) OpenPrivateChat(ctx context.Context, userID, otherUserID int64) (*domain.Chat, error) {
	chat, err := r.backend.CreateOrGetPrivateChat(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	r.Prepend(*chat)
	return chat, nil
}

// CheckCreator returns domain.ErrForbidden when chatID is listed and was
// not created by userID.
func (r *Reconciler) CheckCreator(chatID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := indexOf(r.chats, chatID); i >= 0 && !r.chats[i].IsCreator(userID) {
		return fmt.Errorf("chat %d: %w", chatID, domain.ErrForbidden)
	}
	return nil
}

// UpdateAvatar changes a chat's avatar. Only its creator may; the local list
// is updated once the server accepts.
func (r *Reconciler) UpdateAvatar(ctx context.Context, chatID, userID int64, avatarURL *string) error {
	if err := r.CheckCreator(chatID, userID); err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	if err := r.backend.UpdateChatAvatar(ctx, chatID, userID, avatarURL); err != nil {
		return err
	}

	url := ""
	if avatarURL != nil {
		url = *avatarURL
	}
	r.mu.Lock()
	if i := indexOf(r.chats, chatID); i >= 0 {
		r.chats[i].AvatarURL = url
	}
	if r.selected != nil && r.selected.ID == chatID {
		r.selected.AvatarURL = url
	}
	onChange := r.onChange
	r.mu.Unlock()

	if onChange != nil {
		onChange()
	}
	return nil
}

func indexOf(chats []domain.Chat, id int64) int {
	for i := range chats {
		if chats[i].ID == id {
			return i
		}
	}
	return -1
}

// dedupe keeps the first occurrence of every chat id.
func dedupe(chats []domain.Chat) []domain.Chat {
	seen := make(map[int64]struct{}, len(chats))
	out := make([]domain.Chat, 0, len(chats))
	for _, c := range chats {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
