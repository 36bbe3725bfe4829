package registry

import (
	"fmt"
	"sync"
	"testing"
)

// fakeConn records enqueued frames and close calls.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *fakeConn) Enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("closed")
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// transitionRecorder captures presence transitions in the order they fire.
type transitionRecorder struct {
	mu          sync.Mutex
	transitions []string
}

func (r *transitionRecorder) record(userID string, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, fmt.Sprintf("%s:%v", userID, online))
}

func (r *transitionRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.transitions))
	copy(out, r.transitions)
	return out
}

func TestRegisterAndLookup(t *testing.T) {
	reg := New(nil)
	conn := &fakeConn{}

	reg.Register("s1", "u1", conn)

	got, err := reg.ConnFor("s1")
	if err != nil {
		t.Fatalf("ConnFor(s1) returned error: %v", err)
	}
	if got != conn {
		t.Error("ConnFor(s1) returned a different connection")
	}

	userID, err := reg.UserFor("s1")
	if err != nil || userID != "u1" {
		t.Errorf("UserFor(s1) = %q, %v; want u1, nil", userID, err)
	}

	if _, err := reg.ConnFor("missing"); err != ErrSessionNotFound {
		t.Errorf("ConnFor(missing) error = %v; want ErrSessionNotFound", err)
	}
}

func TestRegisterIdempotentPerSession(t *testing.T) {
	reg := New(nil)
	first := &fakeConn{}
	second := &fakeConn{}

	reg.Register("s1", "u1", first)
	reg.Register("s1", "u1", second)

	got, err := reg.ConnFor("s1")
	if err != nil {
		t.Fatalf("ConnFor(s1) returned error: %v", err)
	}
	if got != second {
		t.Error("re-registering a session did not replace the connection")
	}
	if !first.closed {
		t.Error("replaced connection was not closed")
	}
	if n := reg.SessionCount(); n != 1 {
		t.Errorf("SessionCount() = %d; want 1", n)
	}
}

func TestMultiSessionUser(t *testing.T) {
	rec := &transitionRecorder{}
	reg := New(rec.record)

	reg.Register("s1", "u1", &fakeConn{})
	reg.Register("s2", "u1", &fakeConn{})

	if got := reg.SessionsForUser("u1"); len(got) != 2 {
		t.Fatalf("SessionsForUser(u1) returned %d sessions; want 2", len(got))
	}

	// Second session for an already-online user must not re-fire the online
	// transition.
	if got := rec.all(); len(got) != 1 || got[0] != "u1:true" {
		t.Fatalf("transitions after two registers = %v; want [u1:true]", got)
	}

	reg.Unregister("s1")
	if got := rec.all(); len(got) != 1 {
		t.Fatalf("offline transition fired while user still had a session: %v", got)
	}
	if got := reg.SessionsForUser("u1"); len(got) != 1 {
		t.Fatalf("SessionsForUser(u1) after one unregister = %d sessions; want 1", len(got))
	}

	reg.Unregister("s2")
	want := []string{"u1:true", "u1:false"}
	got := rec.all()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("transitions = %v; want %v", got, want)
	}
}

func TestUnregisterAbsentIsNoOp(t *testing.T) {
	rec := &transitionRecorder{}
	reg := New(rec.record)

	reg.Unregister("nope")

	reg.Register("s1", "u1", &fakeConn{})
	reg.Unregister("s1")
	reg.Unregister("s1") // concurrent close/error paths may both reach here

	want := []string{"u1:true", "u1:false"}
	got := rec.all()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("transitions = %v; want %v", got, want)
	}
}

func TestUnregisterClosesConn(t *testing.T) {
	reg := New(nil)
	conn := &fakeConn{}

	reg.Register("s1", "u1", conn)
	reg.Unregister("s1")

	if !conn.closed {
		t.Error("Unregister did not close the connection")
	}
	if err := conn.Enqueue([]byte("late")); err == nil {
		t.Error("Enqueue after unregister should fail fast")
	}
}

func TestTargetsForUsers(t *testing.T) {
	reg := New(nil)
	reg.Register("s1", "alice", &fakeConn{})
	reg.Register("s2", "alice", &fakeConn{})
	reg.Register("s3", "bob", &fakeConn{})
	reg.Register("s4", "mallory", &fakeConn{})

	targets := reg.TargetsForUsers([]string{"alice", "bob", "ghost"})
	if len(targets) != 3 {
		t.Fatalf("TargetsForUsers returned %d targets; want 3", len(targets))
	}
	for _, target := range targets {
		if target.UserID == "mallory" {
			t.Error("TargetsForUsers leaked a session outside the requested set")
		}
	}
}

// TestConcurrentChurn drives concurrent connect/disconnect for the same users
// and checks the presence invariant afterwards: the final transition for each
// user must match whether any session survived.
func TestConcurrentChurn(t *testing.T) {
	rec := &transitionRecorder{}
	reg := New(rec.record)

	const workers = 8
	const rounds = 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", w%2)
			for i := 0; i < rounds; i++ {
				sid := fmt.Sprintf("s%d-%d", w, i)
				reg.Register(sid, user, &fakeConn{})
				reg.Unregister(sid)
			}
		}(w)
	}
	wg.Wait()

	if n := reg.SessionCount(); n != 0 {
		t.Fatalf("SessionCount() after churn = %d; want 0", n)
	}

	// Every user ended with zero sessions, so the last transition recorded
	// for each must be offline, and transitions must alternate per user.
	last := map[string]string{}
	prev := map[string]string{}
	for _, tr := range rec.all() {
		user, state := tr[:2], tr[3:]
		if prev[user] == state {
			t.Fatalf("user %s fired duplicate %s transitions", user, state)
		}
		prev[user] = state
		last[user] = state
	}
	for user, state := range last {
		if state != "false" {
			t.Errorf("user %s ended with transition %s; want false", user, state)
		}
	}
}
