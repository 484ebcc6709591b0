package chatlist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/duwdu-messenger/internal/chatapi"
	"github.com/weiawesome/duwdu-messenger/internal/domain"
)

type fakeBackend struct {
	mu        sync.Mutex
	chats     []domain.Chat
	listCalls int32
	gate      chan struct{}
	err       error
	private   map[int64]domain.Chat
	nextID    int64
	avatarErr error
}

func (b *fakeBackend) ListChats(ctx context.Context, userID int64) ([]domain.Chat, error) {
	atomic.AddInt32(&b.listCalls, 1)
	if b.gate != nil {
		<-b.gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return append([]domain.Chat(nil), b.chats...), nil
}

func (b *fakeBackend) CreateChat(ctx context.Context, req chatapi.CreateChatRequest) (*domain.Chat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	return &domain.Chat{ID: 1000 + b.nextID, Name: req.Name, Type: req.Type, Username: req.Handle}, nil
}

func (b *fakeBackend) CreateOrGetPrivateChat(ctx context.Context, userID, otherUserID int64) (*domain.Chat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.private == nil {
		b.private = make(map[int64]domain.Chat)
	}
	c, ok := b.private[otherUserID]
	if !ok {
		b.nextID++
		c = domain.Chat{ID: 2000 + b.nextID, Type: domain.ChatPrivate, OtherUser: &domain.UserRef{ID: otherUserID}}
		b.private[otherUserID] = c
	}
	return &c, nil
}

func (b *fakeBackend) UpdateChatAvatar(ctx context.Context, chatID, userID int64, avatarURL *string) error {
	return b.avatarErr
}

func ids(chats []domain.Chat) []int64 {
	out := make([]int64, len(chats))
	for i, c := range chats {
		out[i] = c.ID
	}
	return out
}

func TestRefreshSelectsFirstWhenNothingSelected(t *testing.T) {
	b := &fakeBackend{chats: []domain.Chat{{ID: 3, Name: "c"}, {ID: 1, Name: "a"}}}
	r := New(b)
	var selected []int64
	r.OnSelect(func(c *domain.Chat) { selected = append(selected, c.ID) })

	require.NoError(t, r.Refresh(context.Background(), 7))
	assert.Equal(t, []int64{3, 1}, ids(r.Chats()))
	assert.Equal(t, int64(3), r.SelectedID())
	assert.Equal(t, []int64{3}, selected)

	require.NoError(t, r.Refresh(context.Background(), 7))
	assert.Equal(t, []int64{3}, selected, "selection is kept across refreshes")
}

func TestRefreshKeepsSelectionAndUpdatesFields(t *testing.T) {
	b := &fakeBackend{chats: []domain.Chat{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}}
	r := New(b)
	require.NoError(t, r.Refresh(context.Background(), 7))
	_, err := r.Select(2)
	require.NoError(t, err)

	b.mu.Lock()
	b.chats = []domain.Chat{{ID: 2, Name: "b", LastMessage: "hi"}, {ID: 1, Name: "a"}}
	b.mu.Unlock()
	require.NoError(t, r.Refresh(context.Background(), 7))

	sel := r.Selected()
	require.NotNil(t, sel)
	assert.Equal(t, int64(2), sel.ID)
	assert.Equal(t, "hi", sel.LastMessage)
}

func TestRefreshEmptyListSelectsNothing(t *testing.T) {
	r := New(&fakeBackend{})
	require.NoError(t, r.Refresh(context.Background(), 7))
	assert.Nil(t, r.Selected())
	assert.Empty(t, r.Chats())
}

func TestRefreshDeduplicates(t *testing.T) {
	b := &fakeBackend{chats: []domain.Chat{{ID: 1, Name: "first"}, {ID: 2}, {ID: 1, Name: "second"}}}
	r := New(b)
	require.NoError(t, r.Refresh(context.Background(), 7))
	chats := r.Chats()
	assert.Equal(t, []int64{1, 2}, ids(chats))
	assert.Equal(t, "first", chats[0].Name)
}

func TestRefreshFailureKeepsList(t *testing.T) {
	b := &fakeBackend{chats: []domain.Chat{{ID: 1}}}
	r := New(b)
	require.NoError(t, r.Refresh(context.Background(), 7))

	b.mu.Lock()
	b.err = &domain.TransientError{Op: "list chats", Err: errors.New("offline")}
	b.mu.Unlock()
	err := r.Refresh(context.Background(), 7)
	assert.True(t, domain.IsTransient(err))
	assert.Equal(t, []int64{1}, ids(r.Chats()))
}

func TestConcurrentRefreshesShareOneRequest(t *testing.T) {
	b := &fakeBackend{chats: []domain.Chat{{ID: 1}}, gate: make(chan struct{})}
	r := New(b)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Refresh(context.Background(), 7))
		}()
	}
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&b.listCalls) >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(b.gate)
	wg.Wait()

	assert.Less(t, atomic.LoadInt32(&b.listCalls), int32(5))
	assert.Equal(t, []int64{1}, ids(r.Chats()))
}

func TestPrependSelectsAndRemovesDuplicate(t *testing.T) {
	b := &fakeBackend{chats: []domain.Chat{{ID: 1}, {ID: 2}, {ID: 3}}}
	r := New(b)
	require.NoError(t, r.Refresh(context.Background(), 7))

	r.Prepend(domain.Chat{ID: 3, Name: "moved"})
	assert.Equal(t, []int64{3, 1, 2}, ids(r.Chats()))
	assert.Equal(t, int64(3), r.SelectedID())
	assert.Equal(t, "moved", r.Selected().Name)
}

func TestOpenPrivateChatIsIdempotent(t *testing.T) {
	b := &fakeBackend{}
	r := New(b)

	first, err := r.OpenPrivateChat(context.Background(), 7, 9)
	require.NoError(t, err)
	second, err := r.OpenPrivateChat(context.Background(), 7, 9)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, r.Chats(), 1)
	assert.Equal(t, first.ID, r.SelectedID())
}

func TestCreateChatPrependsAndSelects(t *testing.T) {
	b := &fakeBackend{chats: []domain.Chat{{ID: 1}}}
	r := New(b)
	require.NoError(t, r.Refresh(context.Background(), 7))

	var switched []int64
	r.OnSelect(func(c *domain.Chat) { switched = append(switched, c.ID) })
	chat, err := r.CreateChat(context.Background(), 7, domain.NewChat{Name: "News", Type: domain.ChatChannel, Handle: "news"})
	require.NoError(t, err)

	assert.Equal(t, []int64{chat.ID, 1}, ids(r.Chats()))
	assert.Equal(t, []int64{chat.ID}, switched)
	assert.True(t, r.Selected().IsCreator(7))
}

func TestSelectUnknownChat(t *testing.T) {
	r := New(&fakeBackend{})
	_, err := r.Select(42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentSelectsLeaveLastOpenedSelected(t *testing.T) {
	b := &fakeBackend{chats: []domain.Chat{{ID: 1}, {ID: 2}, {ID: 3}}}
	r := New(b)
	require.NoError(t, r.Refresh(context.Background(), 7))
	require.Equal(t, int64(1), r.SelectedID())

	var (
		mu     sync.Mutex
		opened []int64
	)
	entered := make(chan struct{})
	r.OnSelect(func(c *domain.Chat) {
		if c != nil && c.ID == 2 {
			close(entered)
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		defer mu.Unlock()
		if c == nil {
			opened = append(opened, 0)
			return
		}
		opened = append(opened, c.ID)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := r.Select(2)
		assert.NoError(t, err)
	}()
	<-entered
	_, err := r.Select(1)
	require.NoError(t, err)
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{2, 1}, opened)
	assert.Equal(t, opened[len(opened)-1], r.SelectedID())
}

func TestDeselectAndReset(t *testing.T) {
	b := &fakeBackend{chats: []domain.Chat{{ID: 1}}}
	r := New(b)
	require.NoError(t, r.Refresh(context.Background(), 7))

	var got []*domain.Chat
	r.OnSelect(func(c *domain.Chat) { got = append(got, c) })
	r.Deselect()
	require.Len(t, got, 1)
	assert.Nil(t, got[0])
	assert.Nil(t, r.Selected())

	r.Reset()
	assert.Empty(t, r.Chats())
}

func TestRefreshAfterResetIsDropped(t *testing.T) {
	b := &fakeBackend{chats: []domain.Chat{{ID: 1}}, gate: make(chan struct{})}
	r := New(b)

	done := make(chan error)
	go func() { done <- r.Refresh(context.Background(), 7) }()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&b.listCalls) == 1 }, time.Second, time.Millisecond)
	r.Reset()
	close(b.gate)
	require.NoError(t, <-done)

	assert.Empty(t, r.Chats())
	assert.Nil(t, r.Selected())
}

func TestUpdateAvatarCreatorOnly(t *testing.T) {
	b := &fakeBackend{chats: []domain.Chat{{ID: 1, CreatedBy: 7}}}
	r := New(b)
	require.NoError(t, r.Refresh(context.Background(), 7))

	url := "https://cdn/a.jpg"
	assert.ErrorIs(t, r.UpdateAvatar(context.Background(), 1, 8, &url), domain.ErrForbidden)
	assert.Empty(t, r.Chats()[0].AvatarURL)

	require.NoError(t, r.UpdateAvatar(context.Background(), 1, 7, &url))
	assert.Equal(t, url, r.Chats()[0].AvatarURL)
	assert.Equal(t, url, r.Selected().AvatarURL)

	b.avatarErr = domain.ErrForbidden
	other := "https://cdn/b.jpg"
	assert.ErrorIs(t, r.UpdateAvatar(context.Background(), 1, 7, &other), domain.ErrForbidden)
	assert.Equal(t, url, r.Chats()[0].AvatarURL, "list unchanged on rejection")
}
