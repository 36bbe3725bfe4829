package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/chempion-hawk/messenger/internal/broadcast"
	"github.com/chempion-hawk/messenger/internal/domain"
	"github.com/chempion-hawk/messenger/internal/registry"
	"github.com/chempion-hawk/messenger/internal/repository"
	"github.com/chempion-hawk/messenger/internal/session"
	"github.com/chempion-hawk/messenger/pkg/log"
)

type chatService struct {
	store       repository.Store
	sessions    session.Store
	registry    *registry.Registry
	broadcaster *broadcast.Broadcaster
	logger      zerolog.Logger
}

// NewChatService creates the application service.
func NewChatService(
	store repository.Store,
	sessions session.Store,
	reg *registry.Registry,
	broadcaster *broadcast.Broadcaster,
) ChatService {
	return &chatService{
		store:       store,
		sessions:    sessions,
		registry:    reg,
		broadcaster: broadcaster,
		logger:      log.L().With().Str(log.FieldComponent, "chat").Logger(),
	}
}

// Register creates a new user with a hashed password and a generated avatar.
func (s *chatService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.UserResponse, error) {
	l := log.Ctx(ctx)

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		l.Error().Err(err).Msg("failed to hash password")
		return nil, err
	}

	user := &domain.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hashed),
		Avatar:       domain.DefaultAvatarURL(req.Username),
		Status:       domain.StatusOffline,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	l.Info().Str(log.FieldUsername, user.Username).Msg("user registered")
	resp := user.ToResponse()
	return &resp, nil
}

// Login verifies credentials and issues an opaque session token. Presence is
// not touched here: status flips when the first live connection registers.
func (s *chatService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	l := log.Ctx(ctx)

	user, err := s.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sessionID := uuid.New().String()
	if err := s.sessions.Save(ctx, sessionID, user.ID); err != nil {
		l.Error().Err(err).Str(log.FieldUserID, user.ID).Msg("failed to save session")
		return nil, err
	}

	l.Info().Str(log.FieldUsername, user.Username).Str(log.FieldSessionID, sessionID).Msg("user logged in")
	return &domain.LoginResponse{
		SessionID: sessionID,
		User:      user.ToResponse(),
	}, nil
}

func (s *chatService) ListUsers(ctx context.Context) ([]domain.UserResponse, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.UserResponse, len(users))
	for i := range users {
		out[i] = users[i].ToResponse()
	}
	return out, nil
}

func (s *chatService) GetUser(ctx context.Context, username string) (*domain.UserResponse, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

// CreateConversation creates a conversation with a fixed participant set.
// Participants are usernames; the first is the creator.
func (s *chatService) CreateConversation(ctx context.Context, req *domain.CreateConversationRequest) (*domain.Conversation, error) {
	l := log.Ctx(ctx)

	participantIDs := make([]string, 0, len(req.Participants))
	var creatorID string
	for i, username := range req.Participants {
		user, err := s.store.GetUserByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			creatorID = user.ID
		}
		participantIDs = append(participantIDs, user.ID)
	}

	conv := &domain.Conversation{
		Kind:      req.Kind,
		Name:      req.Name,
		CreatorID: creatorID,
	}
	if req.Name != "" {
		conv.Avatar = domain.DefaultAvatarURL(req.Name)
	}

	if err := s.store.CreateConversation(ctx, conv, participantIDs); err != nil {
		return nil, err
	}
	conv.Participants = req.Participants

	l.Info().Str(log.FieldConversationID, conv.ID).Str("kind", string(conv.Kind)).Msg("conversation created")
	return conv, nil
}

func (s *chatService) GetUserConversations(ctx context.Context, username string) ([]domain.Conversation, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.store.GetUserConversations(ctx, user.ID)
}

func (s *chatService) GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return s.store.GetMessages(ctx, conversationID)
}

// SendMessage resolves the sender, checks membership, persists the message,
// and fans the persisted representation out. Participants are resolved and the
// message persisted before the registry is read, never under its lock.
func (s *chatService) SendMessage(ctx context.Context, conversationID string, req *domain.SendMessageRequest) (*domain.Message, error) {
	l := log.Ctx(ctx)

	sender, err := s.store.GetUserByUsername(ctx, req.SenderUsername)
	if err != nil {
		return nil, err
	}

	participants, err := s.store.GetConversationParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !containsUser(participants, sender.ID) {
		return nil, ErrNotParticipant
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       sender.ID,
		SenderUsername: sender.Username,
		Kind:           req.Kind,
		Text:           req.Text,
		FileURL:        req.FileURL,
		Filename:       req.Filename,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.broadcaster.Broadcast(ctx, conversationID, domain.EventNewMessage, msg); err != nil {
		l.Warn().Err(err).Str(log.FieldConversationID, conversationID).Msg("broadcast failed after persist")
	}

	l.Info().Str(log.FieldMessageID, msg.ID).Str(log.FieldConversationID, conversationID).Msg("message sent")
	return msg, nil
}

// OnConnectionOpened binds an upgraded connection to the user its session
// token belongs to. Unknown tokens are rejected and the caller closes the
// socket.
func (s *chatService) OnConnectionOpened(ctx context.Context, sessionID string, conn registry.Conn) error {
	userID, err := s.sessions.Resolve(ctx, sessionID)
	if err != nil {
		s.logger.Warn().Err(err).Str(log.FieldSessionID, sessionID).Msg("rejecting connection for unknown session")
		return err
	}

	s.registry.Register(sessionID, userID, conn)
	s.logger.Info().Str(log.FieldSessionID, sessionID).Str(log.FieldUserID, userID).Msg("connection registered")
	return nil
}

// OnInboundEvent dispatches one client event. Malformed payloads and unknown
// types are dropped with a warning; nothing here can terminate the connection
// loop or echo an error to the client.
func (s *chatService) OnInboundEvent(ctx context.Context, sessionID string, raw []byte) {
	var ev domain.InboundEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldSessionID, sessionID).Msg("dropping malformed event")
		return
	}

	switch ev.Type {
	case domain.EventUserJoin:
		s.handleJoin(ctx, sessionID, &ev)

	case domain.EventSendMessage:
		req := &domain.SendMessageRequest{
			SenderUsername: ev.SenderUsername,
			Kind:           ev.MessageKind,
			Text:           ev.Text,
		}
		if _, err := s.SendMessage(ctx, ev.ConversationID, req); err != nil {
			// Push-channel failures are never echoed back to the sender.
			s.logger.Warn().Err(err).
				Str(log.FieldSessionID, sessionID).
				Str(log.FieldConversationID, ev.ConversationID).
				Msg("dropping send_message event")
		}

	case domain.EventTyping:
		s.broadcastTyping(ctx, sessionID, &ev, true)

	case domain.EventStopTyping:
		s.broadcastTyping(ctx, sessionID, &ev, false)

	case domain.EventUserDisconnect:
		// Explicit client farewell: close the socket, the close path does the
		// unregister and presence work.
		if conn, err := s.registry.ConnFor(sessionID); err == nil {
			conn.Close()
		}

	default:
		s.logger.Warn().Str(log.FieldSessionID, sessionID).Str(log.FieldEventType, ev.Type).Msg("dropping unknown event type")
	}
}

// OnConnectionClosed unregisters the session. The registry fires the offline
// transition when this was the user's last session; no conversation is
// notified on disconnect.
func (s *chatService) OnConnectionClosed(sessionID string) {
	s.registry.Unregister(sessionID)
	s.logger.Info().Str(log.FieldSessionID, sessionID).Msg("connection unregistered")
}

func (s *chatService) handleJoin(ctx context.Context, sessionID string, ev *domain.InboundEvent) {
	err := s.broadcaster.Broadcast(ctx, ev.ConversationID, domain.EventUserJoined, &domain.UserJoinedData{
		Username:  ev.Username,
		Status:    domain.StatusOnline,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str(log.FieldSessionID, sessionID).
			Str(log.FieldConversationID, ev.ConversationID).
			Msg("dropping user_join event")
		return
	}
	s.logger.Info().
		Str(log.FieldUsername, ev.Username).
		Str(log.FieldConversationID, ev.ConversationID).
		Msg("user joined conversation")
}

func (s *chatService) broadcastTyping(ctx context.Context, sessionID string, ev *domain.InboundEvent, isTyping bool) {
	err := s.broadcaster.Broadcast(ctx, ev.ConversationID, domain.EventUserTyping, &domain.UserTypingData{
		Username: ev.Username,
		IsTyping: isTyping,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str(log.FieldSessionID, sessionID).
			Str(log.FieldConversationID, ev.ConversationID).
			Msg("dropping typing event")
	}
}

func containsUser(users []domain.User, id string) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}
