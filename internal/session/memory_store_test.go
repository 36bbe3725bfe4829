package session

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, "tok1", "u1"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	userID, err := store.Resolve(ctx, "tok1")
	if err != nil || userID != "u1" {
		t.Fatalf("Resolve = %q, %v; want u1, nil", userID, err)
	}

	// One user may hold several tokens.
	if err := store.Save(ctx, "tok2", "u1"); err != nil {
		t.Fatalf("Save second token: %v", err)
	}
	if userID, _ := store.Resolve(ctx, "tok2"); userID != "u1" {
		t.Errorf("Resolve(tok2) = %q; want u1", userID)
	}

	if err := store.Delete(ctx, "tok1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Resolve(ctx, "tok1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Resolve after delete error = %v; want ErrSessionNotFound", err)
	}

	// Deleting an absent token is a no-op.
	if err := store.Delete(ctx, "ghost"); err != nil {
		t.Errorf("Delete(ghost) = %v; want nil", err)
	}
}
