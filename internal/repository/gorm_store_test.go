package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chempion-hawk/messenger/internal/domain"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	err = db.AutoMigrate(
		&domain.UserModel{},
		&domain.ConversationModel{},
		&domain.ParticipantModel{},
		&domain.MessageModel{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return NewGormStore(db)
}

func mustCreateUser(t *testing.T, store *GormStore, username, email string) *domain.User {
	t.Helper()
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: "x",
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return user
}

func TestCreateUserAssignsID(t *testing.T) {
	store := newTestStore(t)
	user := mustCreateUser(t, store, "alice", "alice@example.com")

	if user.ID == "" {
		t.Fatal("CreateUser left ID empty")
	}
	if user.Status != domain.StatusOffline {
		t.Errorf("new user status = %q; want offline", user.Status)
	}

	got, err := store.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got.ID != user.ID || got.Email != "alice@example.com" {
		t.Errorf("read back %+v; want id %s", got, user.ID)
	}
}

func TestCreateUserConflicts(t *testing.T) {
	store := newTestStore(t)
	mustCreateUser(t, store, "alice", "alice@example.com")

	err := store.CreateUser(context.Background(), &domain.User{
		Username: "alice", Email: "other@example.com", PasswordHash: "x",
	})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("duplicate username error = %v; want ErrUsernameExists", err)
	}

	err = store.CreateUser(context.Background(), &domain.User{
		Username: "alice2", Email: "alice@example.com", PasswordHash: "x",
	})
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("duplicate email error = %v; want ErrEmailExists", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetUserByUsername(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("error = %v; want ErrUserNotFound", err)
	}
	if _, err := store.GetUserByID(context.Background(), "nope"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("error = %v; want ErrUserNotFound", err)
	}
}

func TestUpdateUserStatus(t *testing.T) {
	store := newTestStore(t)
	user := mustCreateUser(t, store, "alice", "alice@example.com")

	if err := store.UpdateUserStatus(context.Background(), user.ID, domain.StatusOnline); err != nil {
		t.Fatalf("UpdateUserStatus: %v", err)
	}

	got, _ := store.GetUserByID(context.Background(), user.ID)
	if got.Status != domain.StatusOnline {
		t.Errorf("status = %q; want online", got.Status)
	}

	if err := store.UpdateUserStatus(context.Background(), "ghost", domain.StatusOnline); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("error = %v; want ErrUserNotFound", err)
	}
}

func TestConversationLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := mustCreateUser(t, store, "alice", "alice@example.com")
	bob := mustCreateUser(t, store, "bob", "bob@example.com")

	conv := &domain.Conversation{
		Kind:      domain.ConversationDirect,
		CreatorID: alice.ID,
	}
	if err := store.CreateConversation(ctx, conv, []string{alice.ID, bob.ID}); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conv.ID == "" {
		t.Fatal("CreateConversation left ID empty")
	}

	participants, err := store.GetConversationParticipants(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversationParticipants: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("got %d participants; want 2", len(participants))
	}

	convs, err := store.GetUserConversations(ctx, bob.ID)
	if err != nil {
		t.Fatalf("GetUserConversations: %v", err)
	}
	if len(convs) != 1 || convs[0].ID != conv.ID {
		t.Fatalf("GetUserConversations = %+v; want the created conversation", convs)
	}
	if len(convs[0].Participants) != 2 {
		t.Errorf("conversation carries %d participant usernames; want 2", len(convs[0].Participants))
	}
}

func TestParticipantsOfUnknownConversation(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetConversationParticipants(context.Background(), "ghost")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("error = %v; want ErrConversationNotFound", err)
	}
}

func TestMessagesOrderedByCreationTime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := mustCreateUser(t, store, "alice", "alice@example.com")

	conv := &domain.Conversation{Kind: domain.ConversationDirect, CreatorID: alice.ID}
	if err := store.CreateConversation(ctx, conv, []string{alice.ID}); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	// Insert out of chronological order; read-back must sort by created_at.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{2 * time.Minute, 0, time.Minute} {
		msg := &domain.Message{
			ConversationID: conv.ID,
			SenderID:       alice.ID,
			Text:           fmt.Sprintf("at +%v", offset),
			CreatedAt:      base.Add(offset),
		}
		if err := store.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
		if msg.ID == "" {
			t.Fatal("CreateMessage left ID empty")
		}
	}

	messages, err := store.GetMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("got %d messages; want 3", len(messages))
	}
	for i := 1; i < len(messages); i++ {
		if messages[i].CreatedAt.Before(messages[i-1].CreatedAt) {
			t.Fatalf("messages out of order at %d: %v before %v", i, messages[i].CreatedAt, messages[i-1].CreatedAt)
		}
	}
	for _, msg := range messages {
		if msg.SenderUsername != "alice" {
			t.Errorf("message %s sender username = %q; want alice", msg.ID, msg.SenderUsername)
		}
	}
}
