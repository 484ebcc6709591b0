// Package push turns server-side message events into thread poll nudges.
package push

import "fmt"

// ChannelChatMessages carries one event per message posted in a chat.
const ChannelChatMessages = "chat:%d:messages"

// ChatMessagesChannel returns the channel name for a chat's message events.
func ChatMessagesChannel(chatID int64) string {
	return fmt.Sprintf(ChannelChatMessages, chatID)
}
