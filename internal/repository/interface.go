package repository

import (
	"context"
	"errors"

	"github.com/chempion-hawk/messenger/internal/domain"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmailExists          = errors.New("email already exists")
	ErrUsernameExists       = errors.New("username already exists")
)

// Store defines the persistence interface the chat core depends on. Any
// failure beyond the sentinel errors above is treated as a storage fault:
// logged by the caller and never fatal to a connection loop.
type Store interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUserStatus(ctx context.Context, userID string, status domain.UserStatus) error

	CreateConversation(ctx context.Context, conv *domain.Conversation, participantIDs []string) error
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	GetConversationParticipants(ctx context.Context, id string) ([]domain.User, error)
	GetUserConversations(ctx context.Context, userID string) ([]domain.Conversation, error)

	CreateMessage(ctx context.Context, msg *domain.Message) error
	GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}
