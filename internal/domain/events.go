package domain

import (
	"time"
)

// Inbound WebSocket event types from clients.
const (
	EventUserJoin       = "user_join"
	EventUserDisconnect = "user_disconnect"
	EventSendMessage    = "send_message"
	EventTyping         = "typing"
	EventStopTyping     = "stop_typing"
)

// Outbound push event types to clients.
const (
	EventNewMessage = "new_message"
	EventUserJoined = "user_joined"
	EventUserTyping = "user_typing"
)

// Event is the push envelope for every server-to-client message.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// InboundEvent is the base shape of every client-to-server message. Fields
// beyond Type are populated depending on the event type.
type InboundEvent struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"chat_id"`
	Username       string      `json:"username"`
	SenderUsername string      `json:"sender_username"`
	MessageKind    MessageKind `json:"message_type"`
	Text           string      `json:"text"`
}

// UserJoinedData is the payload of a user_joined push.
type UserJoinedData struct {
	Username  string     `json:"username"`
	Status    UserStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}

// UserTypingData is the payload of a user_typing push.
type UserTypingData struct {
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}
