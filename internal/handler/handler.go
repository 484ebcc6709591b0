// Package handler exposes the application state to a local UI over HTTP and
// WebSocket.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/duwdu-messenger/internal/app"
	"github.com/weiawesome/duwdu-messenger/internal/domain"
	"github.com/weiawesome/duwdu-messenger/internal/media"
	"github.com/weiawesome/duwdu-messenger/pkg/log"
	"github.com/weiawesome/duwdu-messenger/pkg/response"
)

const defaultMaxUploadBytes = 20 << 20

// Service is the application controller as the handlers use it.
type Service interface {
	Snapshot() app.Snapshot
	Subscribe() (<-chan app.Snapshot, func())

	Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	Register(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	Logout(ctx context.Context) error
	UpdateAvatar(ctx context.Context, filename string, data []byte) (*domain.Session, error)
	RemoveAvatar(ctx context.Context) (*domain.Session, error)

	RefreshChats(ctx context.Context) error
	SelectChat(ctx context.Context, chatID int64) (domain.Chat, error)
	DeselectChat()
	CreateChat(ctx context.Context, nc domain.NewChat) (*domain.Chat, error)
	OpenPrivateChat(ctx context.Context, otherUserID int64) (*domain.Chat, error)
	JoinChat(ctx context.Context, chatID int64) (*domain.Chat, error)
	UpdateChatAvatar(ctx context.Context, chatID int64, filename string, data []byte) error
	RemoveChatAvatar(ctx context.Context, chatID int64) error

	SendText(ctx context.Context, content string) (*domain.Message, error)
	SendSticker(ctx context.Context, stickerID string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, messageID int64) error
	AttachPhoto(ctx context.Context, filename, contentType string, data []byte) (*domain.Message, error)
	AttachAudio(ctx context.Context, filename, contentType string, data []byte) (*domain.Message, error)
	StartRecording(ctx context.Context) (media.Recording, error)
	RetryAttachment(ctx context.Context) (*domain.Message, error)
	DiscardAttachment()
	StartVideoCall() string

	SearchInput(text string)
	SetSearchOpen(open bool)
}

var _ Service = (*app.Controller)(nil)

// Handler serves the local UI API.
type Handler struct {
	svc            Service
	maxUploadBytes int64

	mu        sync.Mutex
	recording media.Recording
}

// NewHandler creates a new HTTP handler. maxUploadBytes <= 0 selects 20 MiB.
func NewHandler(svc Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		api.GET("/state", h.GetState)
		api.GET("/stickers", h.ListStickers)

		auth := api.Group("/auth")
		{
			auth.POST("/login", h.Login)
			auth.POST("/register", h.Register)
			auth.POST("/logout", h.Logout)
		}

		profile := api.Group("/profile")
		{
			profile.PUT("/avatar", h.UpdateAvatar)
			profile.DELETE("/avatar", h.RemoveAvatar)
		}

		chats := api.Group("/chats")
		{
			chats.POST("", h.CreateChat)
			chats.POST("/refresh", h.RefreshChats)
			chats.POST("/private", h.OpenPrivateChat)
			chats.POST("/join", h.JoinChat)
			chats.DELETE("/selected", h.DeselectChat)
			chats.PUT("/:id/select", h.SelectChat)
			chats.PUT("/:id/avatar", h.UpdateChatAvatar)
			chats.DELETE("/:id/avatar", h.RemoveChatAvatar)
		}

		messages := api.Group("/messages")
		{
			messages.POST("", h.SendText)
			messages.POST("/sticker", h.SendSticker)
			messages.POST("/photo", h.AttachPhoto)
			messages.POST("/audio", h.AttachAudio)
			messages.POST("/recording", h.StartRecording)
			messages.DELETE("/recording", h.StopRecording)
			messages.POST("/retry", h.RetryAttachment)
			messages.DELETE("/attachment", h.DiscardAttachment)
			messages.DELETE("/:id", h.DeleteMessage)
		}

		search := api.Group("/search")
		{
			search.POST("", h.Search)
			search.PUT("/open", h.SetSearchOpen)
		}

		api.POST("/calls/video", h.StartVideoCall)
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetState returns the current snapshot.
func (h *Handler) GetState(c *gin.Context) {
	response.Success(c, h.svc.Snapshot())
}

// ListStickers returns the sticker catalog.
func (h *Handler) ListStickers(c *gin.Context) {
	response.Success(c, domain.StickerPacks)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

// Login handles user login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	s, err := h.svc.Login(c.Request.Context(), domain.Credentials{
		Mode:     domain.AuthLogin,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.fail(c, "login", err)
		return
	}
	response.Success(c, s)
}

// Register handles account creation.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}
	s, err := h.svc.Register(c.Request.Context(), domain.Credentials{
		Mode:        domain.AuthRegister,
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.fail(c, "register", err)
		return
	}
	response.Created(c, s)
}

// Logout clears the session and all state.
func (h *Handler) Logout(c *gin.Context) {
	h.cancelRecording()
	if err := h.svc.Logout(c.Request.Context()); err != nil {
		h.fail(c, "logout", err)
		return
	}
	response.Success(c, gin.H{"message": "logged out successfully"})
}

// UpdateAvatar uploads a new profile picture.
func (h *Handler) UpdateAvatar(c *gin.Context) {
	f, ok := h.readUpload(c)
	if !ok {
		return
	}
	s, err := h.svc.UpdateAvatar(c.Request.Context(), f.name, f.data)
	if err != nil {
		h.fail(c, "update avatar", err)
		return
	}
	response.Success(c, s)
}

// RemoveAvatar clears the profile picture.
func (h *Handler) RemoveAvatar(c *gin.Context) {
	s, err := h.svc.RemoveAvatar(c.Request.Context())
	if err != nil {
		h.fail(c, "remove avatar", err)
		return
	}
	response.Success(c, s)
}

// CreateChat creates a group or channel.
func (h *Handler) CreateChat(c *gin.Context) {
	var req domain.NewChat
	if !h.bind(c, &req) {
		return
	}
	chat, err := h.svc.CreateChat(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "create chat", err)
		return
	}
	response.Created(c, chat)
}

// RefreshChats reloads the chat list.
func (h *Handler) RefreshChats(c *gin.Context) {
	if err := h.svc.RefreshChats(c.Request.Context()); err != nil {
		h.fail(c, "refresh chats", err)
		return
	}
	response.Success(c, h.svc.Snapshot().Chats)
}

type privateChatRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

// OpenPrivateChat opens the one-to-one chat with another user.
func (h *Handler) OpenPrivateChat(c *gin.Context) {
	var req privateChatRequest
	if !h.bind(c, &req) {
		return
	}
	chat, err := h.svc.OpenPrivateChat(c.Request.Context(), req.UserID)
	if err != nil {
		h.fail(c, "open private chat", err)
		return
	}
	response.Success(c, chat)
}

type joinChatRequest struct {
	ChatID int64 `json:"chat_id" binding:"required,gt=0"`
}

// JoinChat adds a chat from the search results to the list.
func (h *Handler) JoinChat(c *gin.Context) {
	var req joinChatRequest
	if !h.bind(c, &req) {
		return
	}
	chat, err := h.svc.JoinChat(c.Request.Context(), req.ChatID)
	if err != nil {
		h.fail(c, "join chat", err)
		return
	}
	response.Success(c, chat)
}

// SelectChat opens a chat's thread.
func (h *Handler) SelectChat(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	chat, err := h.svc.SelectChat(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "select chat", err)
		return
	}
	response.Success(c, chat)
}

// DeselectChat closes the open thread.
func (h *Handler) DeselectChat(c *gin.Context) {
	h.svc.DeselectChat()
	response.Success(c, gin.H{"message": "chat deselected"})
}

// UpdateChatAvatar uploads a chat picture. Only the creator may.
func (h *Handler) UpdateChatAvatar(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	f, ok := h.readUpload(c)
	if !ok {
		return
	}
	if err := h.svc.UpdateChatAvatar(c.Request.Context(), id, f.name, f.data); err != nil {
		h.fail(c, "update chat avatar", err)
		return
	}
	response.Success(c, gin.H{"message": "avatar updated"})
}

// RemoveChatAvatar clears a chat picture. Only the creator may.
func (h *Handler) RemoveChatAvatar(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveChatAvatar(c.Request.Context(), id); err != nil {
		h.fail(c, "remove chat avatar", err)
		return
	}
	response.Success(c, gin.H{"message": "avatar removed"})
}

type sendTextRequest struct {
	Content string `json:"content"`
}

// SendText sends a text message.
func (h *Handler) SendText(c *gin.Context) {
	var req sendTextRequest
	if !h.bind(c, &req) {
		return
	}
	msg, err := h.svc.SendText(c.Request.Context(), req.Content)
	if err != nil {
		h.fail(c, "send message", err)
		return
	}
	response.Created(c, msg)
}

type sendStickerRequest struct {
	StickerID string `json:"sticker_id"`
}

// SendSticker sends a sticker from the catalog.
func (h *Handler) SendSticker(c *gin.Context) {
	var req sendStickerRequest
	if !h.bind(c, &req) {
		return
	}
	msg, err := h.svc.SendSticker(c.Request.Context(), req.StickerID)
	if err != nil {
		h.fail(c, "send sticker", err)
		return
	}
	response.Created(c, msg)
}

// DeleteMessage deletes one of the user's messages.
func (h *Handler) DeleteMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteMessage(c.Request.Context(), id); err != nil {
		h.fail(c, "delete message", err)
		return
	}
	response.Success(c, gin.H{"message": "message deleted"})
}

// AttachPhoto uploads and sends an image.
func (h *Handler) AttachPhoto(c *gin.Context) {
	f, ok := h.readUpload(c)
	if !ok {
		return
	}
	msg, err := h.svc.AttachPhoto(c.Request.Context(), f.name, f.contentType, f.data)
	if err != nil {
		h.fail(c, "attach photo", err)
		return
	}
	response.Created(c, msg)
}

// AttachAudio uploads and sends a recorded voice clip.
func (h *Handler) AttachAudio(c *gin.Context) {
	f, ok := h.readUpload(c)
	if !ok {
		return
	}
	msg, err := h.svc.AttachAudio(c.Request.Context(), f.name, f.contentType, f.data)
	if err != nil {
		h.fail(c, "attach audio", err)
		return
	}
	response.Created(c, msg)
}

// StartRecording starts capturing from the microphone.
func (h *Handler) StartRecording(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.recording != nil {
		response.Conflict(c, "already recording")
		return
	}
	rec, err := h.svc.StartRecording(c.Request.Context())
	if err != nil {
		h.fail(c, "start recording", err)
		return
	}
	h.recording = rec
	response.Accepted(c, gin.H{"message": "recording"})
}

// StopRecording stops the capture and sends the clip.
func (h *Handler) StopRecording(c *gin.Context) {
	h.mu.Lock()
	rec := h.recording
	h.recording = nil
	h.mu.Unlock()
	if rec == nil {
		response.NotFound(c, "not recording")
		return
	}

	ctx := c.Request.Context()
	data, err := rec.Stop()
	if err != nil {
		h.fail(c, "stop recording", fmt.Errorf("stop recording: %w", domain.ErrMediaCapability))
		return
	}
	msg, err := h.svc.AttachAudio(ctx, "", rec.ContentType(), data)
	if err != nil {
		h.fail(c, "attach audio", err)
		return
	}
	response.Created(c, msg)
}

func (h *Handler) cancelRecording() {
	h.mu.Lock()
	rec := h.recording
	h.recording = nil
	h.mu.Unlock()
	if rec != nil {
		rec.Stop()
	}
}

// RetryAttachment resubmits the failed attachment.
func (h *Handler) RetryAttachment(c *gin.Context) {
	msg, err := h.svc.RetryAttachment(c.Request.Context())
	if err != nil {
		h.fail(c, "retry attachment", err)
		return
	}
	response.Created(c, msg)
}

// DiscardAttachment drops the failed attachment.
func (h *Handler) DiscardAttachment(c *gin.Context) {
	h.svc.DiscardAttachment()
	response.Success(c, gin.H{"message": "attachment discarded"})
}

type searchRequest struct {
	Text string `json:"text"`
}

// Search feeds the search box. Results arrive on the state feed.
func (h *Handler) Search(c *gin.Context) {
	var req searchRequest
	if !h.bind(c, &req) {
		return
	}
	h.svc.SearchInput(req.Text)
	response.Accepted(c, gin.H{"text": req.Text})
}

type searchOpenRequest struct {
	Open bool `json:"open"`
}

// SetSearchOpen opens or closes the search panel.
func (h *Handler) SetSearchOpen(c *gin.Context) {
	var req searchOpenRequest
	if !h.bind(c, &req) {
		return
	}
	h.svc.SetSearchOpen(req.Open)
	response.Success(c, gin.H{"open": req.Open})
}

// StartVideoCall returns the placeholder notice.
func (h *Handler) StartVideoCall(c *gin.Context) {
	response.Success(c, gin.H{"message": h.svc.StartVideoCall()})
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Str("path", c.FullPath()).Msg("invalid request body")
		response.BadRequest(c, "invalid request body")
		return false
	}
	return true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

type upload struct {
	name        string
	contentType string
	data        []byte
}

// readUpload reads the multipart "file" field.
func (h *Handler) readUpload(c *gin.Context) (*upload, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return nil, false
	}
	if fh.Size > h.maxUploadBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeValidation, "file too large")
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return nil, false
	}
	if int64(len(data)) > h.maxUploadBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeValidation, "file too large")
		return nil, false
	}
	return &upload{name: fh.Filename, contentType: fh.Header.Get("Content-Type"), data: data}, true
}

// fail writes the response for a failed action. The controller has
// already logged it and raised a notice.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	var (
		verr *domain.ValidationError
		aerr *domain.AuthError
		rerr *domain.RequestError
	)
	switch {
	case errors.As(err, &verr):
		response.Unprocessable(c, verr.Message)
	case errors.As(err, &aerr):
		msg := aerr.Message
		if msg == "" {
			msg = "authentication failed"
		}
		response.Unauthorized(c, msg)
	case errors.Is(err, domain.ErrNoSession):
		response.Unauthorized(c, "not logged in")
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(c, "permission denied")
	case errors.Is(err, domain.ErrHandleTaken):
		response.Conflict(c, "handle already taken")
	case errors.Is(err, domain.ErrNoChatSelected):
		response.Conflict(c, "no chat selected")
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, domain.ErrMediaCapability):
		response.Unavailable(c, response.CodeMediaUnavailable, "media capability unavailable")
	case errors.As(err, &rerr):
		response.Error(c, http.StatusBadGateway, response.CodeBadRequest, rerr.Message)
	case domain.IsTransient(err):
		response.Unavailable(c, response.CodeUnavailable, "chat service unavailable")
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str("op", op).Msg("request failed")
		response.InternalError(c, "internal error")
	}
}
