package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/chempion-hawk/messenger/internal/domain"
	"github.com/chempion-hawk/messenger/internal/registry"
	"github.com/chempion-hawk/messenger/internal/repository"
)

// fakeSource serves fixed participant sets.
type fakeSource struct {
	participants map[string][]domain.User
}

func (s *fakeSource) GetConversationParticipants(ctx context.Context, id string) ([]domain.User, error) {
	users, ok := s.participants[id]
	if !ok {
		return nil, repository.ErrConversationNotFound
	}
	return users, nil
}

// fakeConn records delivered frames; failing conns simulate a dead channel.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
}

func (c *fakeConn) Enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func user(id string) domain.User {
	return domain.User{ID: id, Username: id}
}

func TestBroadcastFansOutToAllSessions(t *testing.T) {
	source := &fakeSource{participants: map[string][]domain.User{
		"c1": {user("alice"), user("bob"), user("carol")},
	}}
	reg := registry.New(nil)

	// alice: two devices, bob: one, carol: offline, mallory: not a participant.
	a1, a2, b1, m1 := &fakeConn{}, &fakeConn{}, &fakeConn{}, &fakeConn{}
	reg.Register("sa1", "alice", a1)
	reg.Register("sa2", "alice", a2)
	reg.Register("sb1", "bob", b1)
	reg.Register("sm1", "mallory", m1)

	b := New(source, reg)
	if err := b.Broadcast(context.Background(), "c1", domain.EventUserTyping, &domain.UserTypingData{Username: "alice", IsTyping: true}); err != nil {
		t.Fatalf("Broadcast returned error: %v", err)
	}

	for name, conn := range map[string]*fakeConn{"a1": a1, "a2": a2, "b1": b1} {
		if conn.count() != 1 {
			t.Errorf("session %s received %d events; want 1", name, conn.count())
		}
	}
	if m1.count() != 0 {
		t.Error("event delivered to a session outside the participant set")
	}
}

func TestBroadcastPayloadShape(t *testing.T) {
	source := &fakeSource{participants: map[string][]domain.User{
		"c1": {user("bob")},
	}}
	reg := registry.New(nil)
	conn := &fakeConn{}
	reg.Register("sb1", "bob", conn)

	b := New(source, reg)
	data := &domain.UserTypingData{Username: "alice", IsTyping: true}
	if err := b.Broadcast(context.Background(), "c1", domain.EventUserTyping, data); err != nil {
		t.Fatalf("Broadcast returned error: %v", err)
	}

	var ev struct {
		Type string `json:"type"`
		Data struct {
			Username string `json:"username"`
			IsTyping bool   `json:"is_typing"`
		} `json:"data"`
	}
	if err := json.Unmarshal(conn.frames[0], &ev); err != nil {
		t.Fatalf("delivered frame is not valid JSON: %v", err)
	}
	if ev.Type != domain.EventUserTyping || ev.Data.Username != "alice" || !ev.Data.IsTyping {
		t.Errorf("unexpected event payload: %+v", ev)
	}
}

func TestBroadcastDeliveryFaultIsolated(t *testing.T) {
	source := &fakeSource{participants: map[string][]domain.User{
		"c1": {user("alice"), user("bob"), user("carol")},
	}}
	reg := registry.New(nil)

	good1, bad, good2 := &fakeConn{}, &fakeConn{fail: true}, &fakeConn{}
	reg.Register("s1", "alice", good1)
	reg.Register("s2", "bob", bad)
	reg.Register("s3", "carol", good2)

	b := New(source, reg)
	if err := b.Broadcast(context.Background(), "c1", domain.EventUserJoined, &domain.UserJoinedData{Username: "alice"}); err != nil {
		t.Fatalf("Broadcast returned error despite per-session faults: %v", err)
	}

	if good1.count() != 1 || good2.count() != 1 {
		t.Error("a delivery fault on one session aborted delivery to others")
	}
}

func TestBroadcastUnknownConversation(t *testing.T) {
	source := &fakeSource{participants: map[string][]domain.User{}}
	reg := registry.New(nil)
	conn := &fakeConn{}
	reg.Register("s1", "alice", conn)

	b := New(source, reg)
	err := b.Broadcast(context.Background(), "ghost", domain.EventNewMessage, nil)
	if !errors.Is(err, repository.ErrConversationNotFound) {
		t.Fatalf("Broadcast(ghost) error = %v; want ErrConversationNotFound", err)
	}
	if conn.count() != 0 {
		t.Error("unknown conversation still produced deliveries")
	}
}

func TestBroadcastNoLiveSessions(t *testing.T) {
	source := &fakeSource{participants: map[string][]domain.User{
		"c1": {user("alice")},
	}}
	b := New(source, registry.New(nil))

	// Zero recipients is a legal no-op, not an error.
	if err := b.Broadcast(context.Background(), "c1", domain.EventNewMessage, nil); err != nil {
		t.Fatalf("Broadcast with no live sessions returned error: %v", err)
	}
}
