package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampAcceptsZonelessISO(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"id":1,"content":"hi","message_type":"text","created_at":"2024-03-01T10:20:30.123456","user":{"id":2}}`), &m)
	require.NoError(t, err)

	want := time.Date(2024, 3, 1, 10, 20, 30, 123456000, time.UTC)
	assert.True(t, m.CreatedAt.Equal(want), "got %v", m.CreatedAt)
}

func TestTimestampNullAndRFC3339(t *testing.T) {
	var c Chat
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"name":"n","type":"group","last_message_time":null,"created_at":"2024-03-01T10:20:30+03:00"}`), &c))
	assert.Nil(t, c.LastMessageTime)
	require.NotNil(t, c.CreatedAt)
	assert.Equal(t, 7, c.CreatedAt.UTC().Hour())

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestValidateHandle(t *testing.T) {
	for _, ok := range []string{"", "dev_chat", "abc123"} {
		assert.NoError(t, ValidateHandle(ok), ok)
	}
	for _, bad := range []string{"Dev", "dev-chat", "dev chat", "дев"} {
		err := ValidateHandle(bad)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), bad)
	}
}

func TestCredentialsValidate(t *testing.T) {
	c := Credentials{Username: "  alice ", Password: "p1"}
	c.Normalize()
	assert.Equal(t, AuthLogin, c.Mode)
	assert.Equal(t, "alice", c.Username)
	assert.NoError(t, c.Validate())

	c.Mode = AuthRegister
	assert.Error(t, c.Validate(), "register needs a display name")

	c.DisplayName = "Alice"
	assert.NoError(t, c.Validate())

	c.Password = ""
	assert.Error(t, c.Validate())
}

func TestOutgoingMessageValidate(t *testing.T) {
	m := OutgoingMessage{Content: "😊", Type: MessageSticker}
	assert.NoError(t, m.Validate())

	m = OutgoingMessage{Content: PhotoLabel, Type: MessagePhoto}
	assert.Error(t, m.Validate())

	m = OutgoingMessage{Content: "x"}
	require.NoError(t, m.Validate())
	assert.Equal(t, MessageText, m.Type)
}

func TestLookupSticker(t *testing.T) {
	s, ok := LookupSticker("smile")
	require.True(t, ok)
	assert.Equal(t, "😊", s.Emoji)

	_, ok = LookupSticker("nope")
	assert.False(t, ok)
}

func TestTransientErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("send: %w", &TransientError{Op: "POST messages", Err: cause})
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsTransient(ErrForbidden))
}

func TestChatTitle(t *testing.T) {
	c := Chat{Name: "ignored", Type: ChatPrivate, OtherUser: &UserRef{Username: "bob", DisplayName: "Bob"}}
	assert.Equal(t, "Bob", c.Title())
	assert.Equal(t, "B", c.OtherUser.Initial())

	c = Chat{Name: "General", Type: ChatGroup, CreatedBy: 3}
	assert.Equal(t, "General", c.Title())
	assert.True(t, c.IsCreator(3))
	assert.False(t, c.IsCreator(4))
}
