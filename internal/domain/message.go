package domain

// MessageType is the payload kind of a message.
type MessageType string

const (
	MessageText    MessageType = "text"
	MessageSticker MessageType = "sticker"
	MessagePhoto   MessageType = "photo"
	MessageAudio   MessageType = "audio"
)

// Placeholder labels sent as content for media messages.
const (
	PhotoLabel = "📷 Photo"
	AudioLabel = "🎤 Voice message"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageSticker, MessagePhoto, MessageAudio:
		return true
	}
	return false
}

// IsMedia reports whether messages of this type carry a media URL.
func (t MessageType) IsMedia() bool {
	return t == MessagePhoto || t == MessageAudio
}

// Label returns the placeholder content for a media type.
func (t MessageType) Label() string {
	switch t {
	case MessagePhoto:
		return PhotoLabel
	case MessageAudio:
		return AudioLabel
	}
	return ""
}

// Message is one entry of a chat thread.
type Message struct {
	ID          int64       `json:"id"`
	ChatID      int64       `json:"chat_id,omitempty"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"message_type"`
	CreatedAt   Timestamp   `json:"created_at"`
	MediaURL    string      `json:"media_url,omitempty"`
	User        UserRef     `json:"user"`
}

// OutgoingMessage is what the composer hands to the thread.
type OutgoingMessage struct {
	Content  string      `json:"content"`
	Type     MessageType `json:"message_type"`
	MediaURL string      `json:"media_url,omitempty"`
}

// Validate rejects messages that must not reach the network.
func (m *OutgoingMessage) Validate() error {
	if m.Type == "" {
		m.Type = MessageText
	}
	if !m.Type.Valid() {
		return NewValidationError("message_type", "unknown message type")
	}
	if m.Content == "" {
		return NewValidationError("content", "message is empty")
	}
	if m.Type.IsMedia() && m.MediaURL == "" {
		return NewValidationError("media_url", "media message without media")
	}
	return nil
}
