// Package broadcast fans a conversation event out to every live session of
// the conversation's participants. Delivery is best-effort: recipients with
// no live session are skipped, and a fault on one session never aborts
// delivery to the rest.
package broadcast

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/chempion-hawk/messenger/internal/domain"
	"github.com/chempion-hawk/messenger/internal/registry"
	"github.com/chempion-hawk/messenger/pkg/log"
)

// ParticipantSource resolves a conversation's fixed participant set. Absent
// conversations yield repository.ErrConversationNotFound.
type ParticipantSource interface {
	GetConversationParticipants(ctx context.Context, id string) ([]domain.User, error)
}

// Broadcaster is the fan-out engine.
type Broadcaster struct {
	store    ParticipantSource
	registry *registry.Registry
	logger   zerolog.Logger
}

// New creates a Broadcaster.
func New(store ParticipantSource, reg *registry.Registry) *Broadcaster {
	return &Broadcaster{
		store:    store,
		registry: reg,
		logger:   log.L().With().Str(log.FieldComponent, "broadcast").Logger(),
	}
}

// Broadcast delivers {type, data} to every live session of the conversation's
// participants, including the sender's other sessions. Participants are
// resolved before the registry is read, so storage latency never overlaps the
// registry lock. Returns the participant-resolution error, if any; per-session
// delivery faults are logged and swallowed.
func (b *Broadcaster) Broadcast(ctx context.Context, conversationID, eventType string, data interface{}) error {
	payload, err := json.Marshal(domain.Event{Type: eventType, Data: data})
	if err != nil {
		return err
	}

	participants, err := b.store.GetConversationParticipants(ctx, conversationID)
	if err != nil {
		return err
	}

	userIDs := make([]string, len(participants))
	for i, p := range participants {
		userIDs[i] = p.ID
	}

	targets := b.registry.TargetsForUsers(userIDs)
	delivered := 0
	for _, t := range targets {
		if err := t.Conn.Enqueue(payload); err != nil {
			b.logger.Warn().Err(err).
				Str(log.FieldSessionID, t.SessionID).
				Str(log.FieldUserID, t.UserID).
				Str(log.FieldEventType, eventType).
				Msg("delivery fault, skipping session")
			continue
		}
		delivered++
	}

	b.logger.Debug().
		Str(log.FieldConversationID, conversationID).
		Str(log.FieldEventType, eventType).
		Int("sessions", delivered).
		Msg("event broadcast")
	return nil
}
