package domain

import (
	"time"
)

// ConversationKind distinguishes direct and group conversations.
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Conversation represents a direct or group chat. The participant set is
// fixed at creation; there is no add/remove membership operation.
type Conversation struct {
	ID           string           `json:"id"`
	Kind         ConversationKind `json:"type"`
	Name         string           `json:"name,omitempty"`
	Avatar       string           `json:"avatar,omitempty"`
	CreatorID    string           `json:"creator_id"`
	Participants []string         `json:"participants"` // usernames
	CreatedAt    time.Time        `json:"created_at"`
}

// ConversationModel is the GORM model for the conversations table.
type ConversationModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Kind      string    `gorm:"type:varchar(10);not null"`
	Name      string    `gorm:"type:varchar(100)"`
	Avatar    string    `gorm:"type:varchar(255)"`
	CreatorID string    `gorm:"type:varchar(36);index;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ConversationModel.
func (ConversationModel) TableName() string {
	return "conversations"
}

// ParticipantModel is the GORM model for the conversation_participants table.
type ParticipantModel struct {
	ConversationID string `gorm:"type:varchar(36);primaryKey"`
	UserID         string `gorm:"type:varchar(36);primaryKey;index"`
}

// TableName specifies the table name for ParticipantModel.
func (ParticipantModel) TableName() string {
	return "conversation_participants"
}

// ToDomain converts ConversationModel to a domain Conversation.
// Participants are filled in by the repository.
func (m *ConversationModel) ToDomain() *Conversation {
	return &Conversation{
		ID:        m.ID,
		Kind:      ConversationKind(m.Kind),
		Name:      m.Name,
		Avatar:    m.Avatar,
		CreatorID: m.CreatorID,
		CreatedAt: m.CreatedAt,
	}
}

// CreateConversationRequest represents a create-conversation request.
// Participants are usernames; the first one is the creator.
type CreateConversationRequest struct {
	Kind         ConversationKind `json:"type" binding:"required,oneof=direct group"`
	Name         string           `json:"name"`
	Participants []string         `json:"participants" binding:"required,min=1"`
}
