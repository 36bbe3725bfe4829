package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/chempion-hawk/messenger/internal/domain"
	"github.com/chempion-hawk/messenger/pkg/log"
)

// GormStore implements Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-based store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// CreateUser creates a new user.
func (s *GormStore) CreateUser(ctx context.Context, user *domain.User) error {
	user.ID = uuid.New().String()
	if user.Status == "" {
		user.Status = domain.StatusOffline
	}

	model := domain.UserToModel(user)
	result := s.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		return s.handleError(result.Error)
	}

	user.CreatedAt = model.CreatedAt
	return nil
}

// GetUserByID retrieves a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var model domain.UserModel
	result := s.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// GetUserByUsername retrieves a user by username.
func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var model domain.UserModel
	result := s.db.WithContext(ctx).First(&model, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// ListUsers retrieves all users.
func (s *GormStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	var models []domain.UserModel
	result := s.db.WithContext(ctx).Order("username ASC").Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	users := make([]domain.User, len(models))
	for i, model := range models {
		users[i] = *model.ToDomain()
	}
	return users, nil
}

// UpdateUserStatus persists a presence transition.
func (s *GormStore) UpdateUserStatus(ctx context.Context, userID string, status domain.UserStatus) error {
	result := s.db.WithContext(ctx).Model(&domain.UserModel{}).
		Where("id = ?", userID).
		Update("status", string(status))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateConversation creates a conversation with its fixed participant set.
func (s *GormStore) CreateConversation(ctx context.Context, conv *domain.Conversation, participantIDs []string) error {
	l := log.Ctx(ctx)

	conv.ID = uuid.New().String()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := &domain.ConversationModel{
			ID:        conv.ID,
			Kind:      string(conv.Kind),
			Name:      conv.Name,
			Avatar:    conv.Avatar,
			CreatorID: conv.CreatorID,
		}
		if err := tx.Create(model).Error; err != nil {
			l.Error().Err(err).Msg("failed to create conversation in db")
			return err
		}

		for _, userID := range participantIDs {
			p := &domain.ParticipantModel{
				ConversationID: conv.ID,
				UserID:         userID,
			}
			if err := tx.Create(p).Error; err != nil {
				l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to add participant in db")
				return err
			}
		}

		conv.CreatedAt = model.CreatedAt
		return nil
	})
}

// GetConversation retrieves a conversation by ID, including participant usernames.
func (s *GormStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var model domain.ConversationModel
	result := s.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, result.Error
	}

	conv := model.ToDomain()
	participants, err := s.GetConversationParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, p := range participants {
		conv.Participants = append(conv.Participants, p.Username)
	}
	return conv, nil
}

// GetConversationParticipants returns the fixed participant set of a
// conversation. Returns ErrConversationNotFound if the conversation is absent.
func (s *GormStore) GetConversationParticipants(ctx context.Context, id string) ([]domain.User, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.ConversationModel{}).
		Where("id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrConversationNotFound
	}

	var models []domain.UserModel
	err := s.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp ON cp.user_id = users.id").
		Where("cp.conversation_id = ?", id).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, len(models))
	for i, model := range models {
		users[i] = *model.ToDomain()
	}
	return users, nil
}

// GetUserConversations retrieves all conversations a user participates in.
func (s *GormStore) GetUserConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	var models []domain.ConversationModel
	err := s.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID).
		Order("conversations.created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	conversations := make([]domain.Conversation, len(models))
	for i, model := range models {
		conv := model.ToDomain()
		participants, err := s.GetConversationParticipants(ctx, model.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range participants {
			conv.Participants = append(conv.Participants, p.Username)
		}
		conversations[i] = *conv
	}
	return conversations, nil
}

// CreateMessage persists a message. The server assigns a ULID so message ids
// sort in creation order alongside the created_at index.
func (s *GormStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	msg.ID = ulid.Make().String()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Kind == "" {
		msg.Kind = domain.MessageText
	}

	model := domain.MessageToModel(msg)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	msg.CreatedAt = model.CreatedAt
	return nil
}

// GetMessages returns a conversation's messages in non-decreasing
// creation-time order, with the message id as a stable tiebreak.
func (s *GormStore) GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var models []domain.MessageModel
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	usernames, err := s.usernamesFor(ctx, models)
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, len(models))
	for i, model := range models {
		msg := model.ToDomain()
		msg.SenderUsername = usernames[model.SenderID]
		messages[i] = *msg
	}
	return messages, nil
}

func (s *GormStore) usernamesFor(ctx context.Context, models []domain.MessageModel) (map[string]string, error) {
	ids := make([]string, 0, len(models))
	seen := make(map[string]struct{}, len(models))
	for _, m := range models {
		if _, ok := seen[m.SenderID]; ok {
			continue
		}
		seen[m.SenderID] = struct{}{}
		ids = append(ids, m.SenderID)
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	var users []domain.UserModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}

	usernames := make(map[string]string, len(users))
	for _, u := range users {
		usernames[u.ID] = u.Username
	}
	return usernames, nil
}

// handleError converts database-specific errors to domain errors.
func (s *GormStore) handleError(err error) error {
	errStr := err.Error()

	// PostgreSQL / SQLite unique constraint violation
	if strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "UNIQUE constraint") {
		if strings.Contains(errStr, "email") {
			return ErrEmailExists
		}
		if strings.Contains(errStr, "username") {
			return ErrUsernameExists
		}
	}

	// MySQL unique constraint violation
	if strings.Contains(errStr, "Duplicate entry") {
		if strings.Contains(errStr, "email") {
			return ErrEmailExists
		}
		if strings.Contains(errStr, "username") {
			return ErrUsernameExists
		}
	}

	return err
}
