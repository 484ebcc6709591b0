package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/weiawesome/duwdu-messenger/internal/chatapi"
	"github.com/weiawesome/duwdu-messenger/internal/domain"
)

type fakeUser struct {
	session  domain.Session
	password string
}

// fakeAPI is an in-memory Chat Service.
type fakeAPI struct {
	mu        sync.Mutex
	users     map[string]*fakeUser
	chats     []domain.Chat
	members   map[int64]map[int64]bool
	messages  map[int64][]domain.Message
	nextID    int64
	authCalls int
	delCalls  int
	offline   bool
	uploadErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		users:    make(map[string]*fakeUser),
		members:  make(map[int64]map[int64]bool),
		messages: make(map[int64][]domain.Message),
		nextID:   100,
	}
}

var errOffline = &domain.TransientError{Op: "fake", Err: errors.New("offline")}

func (f *fakeAPI) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeAPI) setOffline(v bool) {
	f.mu.Lock()
	f.offline = v
	f.mu.Unlock()
}

func (f *fakeAPI) addChat(c domain.Chat, memberIDs ...int64) domain.Chat {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == 0 {
		c.ID = f.id()
	}
	f.chats = append(f.chats, c)
	f.members[c.ID] = make(map[int64]bool)
	for _, m := range memberIDs {
		f.members[c.ID][m] = true
	}
	return c
}

func (f *fakeAPI) addMessage(chatID int64, author domain.UserRef, content string) domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := domain.Message{ID: f.id(), ChatID: chatID, Content: content, MessageType: domain.MessageText, User: author}
	f.messages[chatID] = append(f.messages[chatID], m)
	return m
}

func (f *fakeAPI) Authenticate(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	if f.offline {
		return nil, errOffline
	}
	u, ok := f.users[creds.Username]
	switch creds.Mode {
	case domain.AuthRegister:
		if ok {
			return nil, &domain.AuthError{Status: 400, Message: "Username already taken"}
		}
		u = &fakeUser{
			session:  domain.Session{ID: f.id(), Username: creds.Username, DisplayName: creds.DisplayName, AvatarColor: "#0088cc"},
			password: creds.Password,
		}
		f.users[creds.Username] = u
	default:
		if !ok || u.password != creds.Password {
			return nil, &domain.AuthError{Status: 401, Message: "Invalid username or password"}
		}
	}
	s := u.session
	return &s, nil
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, userID int64, avatarURL *string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errOffline
	}
	for _, u := range f.users {
		if u.session.ID == userID {
			u.session.AvatarURL = ""
			if avatarURL != nil {
				u.session.AvatarURL = *avatarURL
			}
			s := u.session
			return &s, nil
		}
	}
	return nil, &domain.RequestError{Status: 404, Message: "User not found"}
}

func (f *fakeAPI) ListChats(ctx context.Context, userID int64) ([]domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errOffline
	}
	out := []domain.Chat{}
	for _, c := range f.chats {
		if f.members[c.ID][userID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeAPI) SearchChats(ctx context.Context, query string) ([]domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errOffline
	}
	out := []domain.Chat{}
	for _, c := range f.chats {
		if c.Type != domain.ChatPrivate && strings.Contains(strings.ToLower(c.Name), strings.ToLower(query)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateChat(ctx context.Context, req chatapi.CreateChatRequest) (*domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errOffline
	}
	for _, c := range f.chats {
		if req.Handle != "" && c.Username == req.Handle {
			return nil, fmt.Errorf("create chat: %w", domain.ErrHandleTaken)
		}
	}
	c := domain.Chat{ID: f.id(), Name: req.Name, Type: req.Type, CreatedBy: req.UserID, Username: req.Handle}
	f.chats = append([]domain.Chat{c}, f.chats...)
	f.members[c.ID] = map[int64]bool{req.UserID: true}
	return &c, nil
}

func (f *fakeAPI) CreateOrGetPrivateChat(ctx context.Context, userID, otherUserID int64) (*domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errOffline
	}
	for _, c := range f.chats {
		if c.Type == domain.ChatPrivate && f.members[c.ID][userID] && f.members[c.ID][otherUserID] {
			c := c
			return &c, nil
		}
	}
	c := domain.Chat{ID: f.id(), Type: domain.ChatPrivate, OtherUser: &domain.UserRef{ID: otherUserID}}
	f.chats = append(f.chats, c)
	f.members[c.ID] = map[int64]bool{userID: true, otherUserID: true}
	return &c, nil
}

func (f *fakeAPI) UpdateChatAvatar(ctx context.Context, chatID, userID int64, avatarURL *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.chats {
		if f.chats[i].ID == chatID {
			if f.chats[i].CreatedBy != userID {
				return domain.ErrForbidden
			}
			f.chats[i].AvatarURL = ""
			if avatarURL != nil {
				f.chats[i].AvatarURL = *avatarURL
			}
			return nil
		}
	}
	return &domain.RequestError{Status: 404, Message: "Chat not found"}
}

func (f *fakeAPI) ListMessages(ctx context.Context, chatID int64) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errOffline
	}
	return append([]domain.Message{}, f.messages[chatID]...), nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, req chatapi.SendMessageRequest) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errOffline
	}
	m := domain.Message{
		ID: f.id(), ChatID: req.ChatID, Content: req.Content, MessageType: req.Type,
		MediaURL: req.MediaURL, User: domain.UserRef{ID: req.UserID},
	}
	f.messages[req.ChatID] = append(f.messages[req.ChatID], m)
	for i := range f.chats {
		if f.chats[i].ID == req.ChatID {
			f.chats[i].LastMessage = req.Content
		}
	}
	return &m, nil
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, messageID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delCalls++
	if f.offline {
		return errOffline
	}
	for chatID, msgs := range f.messages {
		for i, m := range msgs {
			if m.ID != messageID {
				continue
			}
			if m.User.ID != userID {
				return domain.ErrForbidden
			}
			f.messages[chatID] = append(msgs[:i:i], msgs[i+1:]...)
			return nil
		}
	}
	return &domain.RequestError{Status: 404, Message: "Message not found"}
}

func (f *fakeAPI) SearchUsers(ctx context.Context, query string, excludingUserID int64) ([]domain.UserRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errOffline
	}
	out := []domain.UserRef{}
	for _, u := range f.users {
		if u.session.ID != excludingUserID && strings.Contains(u.session.Username, query) {
			out = append(out, u.session.Ref())
		}
	}
	return out, nil
}

func (f *fakeAPI) Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	f.mu.Lock()
	err := f.uploadErr
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	return "https://cdn.test/" + filename, nil
}
