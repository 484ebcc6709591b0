package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/duwdu-messenger/pkg/log"
)

func TestRecordWritesAuditFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), zerolog.New(&buf))

	Record(ctx, Entry{Action: ActionDeleteMessage, UserID: 7, ChatID: 3, MessageID: 11}, "message deleted")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, log.LogTypeAudit, line[log.FieldLogType])
	assert.Equal(t, ActionDeleteMessage, line[FieldAction])
	assert.EqualValues(t, 7, line[log.FieldUserID])
	assert.EqualValues(t, 3, line[log.FieldChatID])
	assert.EqualValues(t, 11, line[log.FieldMessageID])
	_, hasDetail := line[FieldDetail]
	assert.False(t, hasDetail)
}

func TestLogOmitsZeroIDs(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), zerolog.New(&buf))

	Log(ctx, ActionLogout, 7, "logged out")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	_, hasChat := line[log.FieldChatID]
	assert.False(t, hasChat)
	assert.Equal(t, "logged out", line["message"])
}
