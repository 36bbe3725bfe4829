package domain

import (
	"time"
)

// MessageKind distinguishes plain-text and file messages.
type MessageKind string

const (
	MessageText MessageKind = "text"
	MessageFile MessageKind = "file"
)

// Message represents a persisted chat message. Messages are append-only and
// ordered by creation time for replay.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"chat_id"`
	SenderID       string      `json:"-"`
	SenderUsername string      `json:"sender_username"`
	Kind           MessageKind `json:"type"`
	Text           string      `json:"text,omitempty"`
	FileURL        string      `json:"file_url,omitempty"`
	Filename       string      `json:"filename,omitempty"`
	CreatedAt      time.Time   `json:"timestamp"`
}

// MessageModel is the GORM model for the messages table.
type MessageModel struct {
	ID             string    `gorm:"type:varchar(36);primaryKey"`
	ConversationID string    `gorm:"type:varchar(36);index;not null"`
	SenderID       string    `gorm:"type:varchar(36);index;not null"`
	Kind           string    `gorm:"type:varchar(10);not null;default:'text'"`
	Text           string    `gorm:"type:text"`
	FileURL        string    `gorm:"type:varchar(255)"`
	Filename       string    `gorm:"type:varchar(255)"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts MessageModel to a domain Message. The sender username is
// filled in by the repository.
func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Kind:           MessageKind(m.Kind),
		Text:           m.Text,
		FileURL:        m.FileURL,
		Filename:       m.Filename,
		CreatedAt:      m.CreatedAt,
	}
}

// MessageToModel converts a domain Message to MessageModel.
func MessageToModel(msg *Message) *MessageModel {
	return &MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Kind:           string(msg.Kind),
		Text:           msg.Text,
		FileURL:        msg.FileURL,
		Filename:       msg.Filename,
		CreatedAt:      msg.CreatedAt,
	}
}

// SendMessageRequest represents a REST message send.
type SendMessageRequest struct {
	SenderUsername string      `json:"sender_username" binding:"required"`
	Kind           MessageKind `json:"type"`
	Text           string      `json:"text"`
	FileURL        string      `json:"file_url"`
	Filename       string      `json:"filename"`
}
