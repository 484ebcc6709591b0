package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/duwdu-messenger/internal/app"
	"github.com/weiawesome/duwdu-messenger/internal/domain"
	"github.com/weiawesome/duwdu-messenger/internal/media"
	"github.com/weiawesome/duwdu-messenger/pkg/response"
)

// stubService implements the calls a test sets; the rest panic through the
// nil embedded interface.
type stubService struct {
	Service

	mu       sync.Mutex
	snap     app.Snapshot
	creds    []domain.Credentials
	texts    []string
	deleted  []int64
	uploads  []string
	search   []string
	open     []bool
	cleared  []int64
	recorder media.Recorder
	err      error
}

func (s *stubService) Snapshot() app.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *stubService) Login(_ context.Context, creds domain.Credentials) (*domain.Session, error) {
	s.creds = append(s.creds, creds)
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Session{ID: 1, Username: creds.Username, DisplayName: "Alice"}, nil
}

func (s *stubService) Register(_ context.Context, creds domain.Credentials) (*domain.Session, error) {
	s.creds = append(s.creds, creds)
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Session{ID: 2, Username: creds.Username, DisplayName: creds.DisplayName}, nil
}

func (s *stubService) OpenPrivateChat(_ context.Context, otherUserID int64) (*domain.Chat, error) {
	return &domain.Chat{ID: 33, Type: domain.ChatPrivate, OtherUser: &domain.UserRef{ID: otherUserID}}, nil
}

func (s *stubService) RemoveChatAvatar(_ context.Context, chatID int64) error {
	if s.err != nil {
		return s.err
	}
	s.cleared = append(s.cleared, chatID)
	return nil
}

func (s *stubService) SendText(_ context.Context, content string) (*domain.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.texts = append(s.texts, content)
	return &domain.Message{ID: 10, ChatID: 42, Content: content, MessageType: domain.MessageText}, nil
}

func (s *stubService) DeleteMessage(_ context.Context, id int64) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubService) AttachPhoto(_ context.Context, filename, contentType string, data []byte) (*domain.Message, error) {
	s.uploads = append(s.uploads, fmt.Sprintf("%s|%s|%d", filename, contentType, len(data)))
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Message{ID: 11, Content: "📷 Photo", MessageType: domain.MessagePhoto, MediaURL: "http://cdn/p.png"}, nil
}

func (s *stubService) AttachAudio(_ context.Context, filename, contentType string, data []byte) (*domain.Message, error) {
	s.uploads = append(s.uploads, fmt.Sprintf("%s|%s|%d", filename, contentType, len(data)))
	return &domain.Message{ID: 12, Content: "🎤 Voice message", MessageType: domain.MessageAudio}, nil
}

func (s *stubService) StartRecording(ctx context.Context) (media.Recording, error) {
	return s.recorder.Start(ctx)
}

func (s *stubService) StartVideoCall() string { return "Video calls are coming soon!" }

func (s *stubService) SearchInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = append(s.search, text)
}

func (s *stubService) SetSearchOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = append(s.open, open)
}

type fakeRecording struct{}

func (fakeRecording) Stop() ([]byte, error) { return []byte("clip"), nil }
func (fakeRecording) ContentType() string   { return "audio/ogg" }

type fakeRecorder struct{}

func (fakeRecorder) Start(context.Context) (media.Recording, error) { return fakeRecording{}, nil }

func newRouter(svc Service, maxUpload int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc, maxUpload).RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp response.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func multipartRequest(t *testing.T, path, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)}
	h["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	r := newRouter(&stubService{}, 0)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetState(t *testing.T) {
	svc := &stubService{snap: app.Snapshot{Version: 7, Chats: []domain.Chat{{ID: 42, Name: "general"}}}}
	r := newRouter(svc, 0)

	w, resp := doJSON(t, r, http.MethodGet, "/api/v1/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 7, data["version"])
	assert.Len(t, data["chats"], 1)
}

func TestLoginAndRegisterBuildCredentials(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc, 0)

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/register", map[string]string{"username": "bob", "password": "pw", "display_name": "Bob"})
	require.Equal(t, http.StatusCreated, w.Code)

	require.Len(t, svc.creds, 2)
	assert.Equal(t, domain.AuthLogin, svc.creds[0].Mode)
	assert.Equal(t, domain.AuthRegister, svc.creds[1].Mode)
	assert.Equal(t, "Bob", svc.creds[1].DisplayName)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", domain.NewValidationError("content", "Message cannot be empty"), http.StatusUnprocessableEntity, response.CodeValidation},
		{"auth", &domain.AuthError{Status: 401, Message: "Invalid credentials"}, http.StatusUnauthorized, response.CodeUnauthorized},
		{"no session", domain.ErrNoSession, http.StatusUnauthorized, response.CodeUnauthorized},
		{"forbidden", fmt.Errorf("delete: %w", domain.ErrForbidden), http.StatusForbidden, response.CodeForbidden},
		{"no chat", domain.ErrNoChatSelected, http.StatusConflict, response.CodeConflict},
		{"transient", &domain.TransientError{Op: "send", Err: fmt.Errorf("refused")}, http.StatusServiceUnavailable, response.CodeUnavailable},
		{"capability", domain.ErrMediaCapability, http.StatusServiceUnavailable, response.CodeMediaUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(&stubService{err: tc.err}, 0)
			w, resp := doJSON(t, r, http.MethodPost, "/api/v1/messages", map[string]string{"content": "hi"})
			assert.Equal(t, tc.status, w.Code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestAuthErrorCarriesServerMessage(t *testing.T) {
	r := newRouter(&stubService{err: &domain.AuthError{Status: 401, Message: "Invalid credentials"}}, 0)
	_, resp := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "a", "password": "b"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Invalid credentials", resp.Error.Message)
}

func TestBadBodyIsRejectedBeforeService(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.texts)
}

func TestDeleteMessagePathID(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc, 0)

	w, _ := doJSON(t, r, http.MethodDelete, "/api/v1/messages/43", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{43}, svc.deleted)

	w, _ = doJSON(t, r, http.MethodDelete, "/api/v1/messages/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, svc.deleted, 1)
}

func TestAttachPhotoMultipart(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc, 0)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/api/v1/messages/photo", "cat.png", "image/png", []byte("png-bytes")))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"cat.png|image/png|9"}, svc.uploads)
}

func TestUploadTooLarge(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc, 4)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/api/v1/messages/photo", "cat.png", "image/png", []byte("png-bytes")))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, svc.uploads)
}

func TestUploadWithoutFile(t *testing.T) {
	r := newRouter(&stubService{}, 0)
	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/messages/photo", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordingRoundTrip(t *testing.T) {
	svc := &stubService{recorder: fakeRecorder{}}
	r := newRouter(svc, 0)

	w, _ := doJSON(t, r, http.MethodDelete, "/api/v1/messages/recording", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/messages/recording", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/messages/recording", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(t, r, http.MethodDelete, "/api/v1/messages/recording", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"|audio/ogg|4"}, svc.uploads)
}

func TestRecordingUnavailable(t *testing.T) {
	r := newRouter(&stubService{recorder: media.UnavailableRecorder{}}, 0)
	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/messages/recording", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, response.CodeMediaUnavailable, resp.Error.Code)
}

func TestSearchAndVideoCall(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc, 0)

	w, _ := doJSON(t, r, http.MethodPut, "/api/v1/search/open", map[string]bool{"open": true})
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/search", map[string]string{"text": "ali"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []bool{true}, svc.open)
	assert.Equal(t, []string{"ali"}, svc.search)

	_, resp := doJSON(t, r, http.MethodPost, "/api/v1/calls/video", nil)
	assert.Equal(t, "Video calls are coming soon!", resp.Data.(map[string]interface{})["message"])
}

func TestListStickers(t *testing.T) {
	r := newRouter(&stubService{}, 0)
	_, resp := doJSON(t, r, http.MethodGet, "/api/v1/stickers", nil)
	assert.Len(t, resp.Data, len(domain.StickerPacks))
}

func TestRequiredFieldsAreRejectedBeforeService(t *testing.T) {
	cases := []struct {
		name string
		path string
		body interface{}
	}{
		{"private chat without user", "/api/v1/chats/private", map[string]int64{}},
		{"private chat with zero user", "/api/v1/chats/private", map[string]int64{"user_id": 0}},
		{"join without chat", "/api/v1/chats/join", map[string]int64{}},
		{"login without password", "/api/v1/auth/login", map[string]string{"username": "alice"}},
		{"register without username", "/api/v1/auth/register", map[string]string{"password": "pw"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{}
			r := newRouter(svc, 0)
			w, resp := doJSON(t, r, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, resp.Success)
			assert.Empty(t, svc.creds)
		})
	}

	svc := &stubService{}
	w, resp := doJSON(t, newRouter(svc, 0), http.MethodPost, "/api/v1/chats/private", map[string]int64{"user_id": 9})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 33, resp.Data.(map[string]interface{})["id"])
}

func TestRemoveChatAvatar(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc, 0)

	w, _ := doJSON(t, r, http.MethodDelete, "/api/v1/chats/42/avatar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{42}, svc.cleared)

	r = newRouter(&stubService{err: fmt.Errorf("update avatar: %w", domain.ErrForbidden)}, 0)
	w, resp := doJSON(t, r, http.MethodDelete, "/api/v1/chats/42/avatar", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.CodeForbidden, resp.Error.Code)
}
