package service

import (
	"context"
	"errors"

	"github.com/chempion-hawk/messenger/internal/domain"
	"github.com/chempion-hawk/messenger/internal/registry"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotParticipant     = errors.New("sender is not a participant of the conversation")
)

// ChatService is the application surface consumed by the REST and WebSocket
// layers.
type ChatService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.UserResponse, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	ListUsers(ctx context.Context) ([]domain.UserResponse, error)
	GetUser(ctx context.Context, username string) (*domain.UserResponse, error)

	CreateConversation(ctx context.Context, req *domain.CreateConversationRequest) (*domain.Conversation, error)
	GetUserConversations(ctx context.Context, username string) ([]domain.Conversation, error)

	GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	// SendMessage persists a message and fans it out to the conversation's
	// live sessions. REST-sent and push-sent messages share this path.
	SendMessage(ctx context.Context, conversationID string, req *domain.SendMessageRequest) (*domain.Message, error)

	// Transport surface.
	OnConnectionOpened(ctx context.Context, sessionID string, conn registry.Conn) error
	OnInboundEvent(ctx context.Context, sessionID string, raw []byte)
	OnConnectionClosed(sessionID string)
}
