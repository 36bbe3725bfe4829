// Package presence persists online/offline transitions derived from the
// connection registry. The registry remains the state of record for liveness;
// the store copy exists for presence display and may be briefly stale when
// storage is down.
package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/chempion-hawk/messenger/internal/domain"
	"github.com/chempion-hawk/messenger/pkg/log"
)

// StatusStore is the slice of the storage interface the tracker needs.
type StatusStore interface {
	UpdateUserStatus(ctx context.Context, userID string, status domain.UserStatus) error
}

type transition struct {
	userID string
	online bool
}

// Tracker serializes presence transitions through a FIFO queue drained by a
// single worker, so status writes land in the order the registry observed the
// transitions without the registry lock ever being held across storage I/O.
type Tracker struct {
	store        StatusStore
	queue        chan transition
	writeTimeout time.Duration
	logger       zerolog.Logger
}

// NewTracker creates a tracker. Run must be started for transitions to be
// persisted.
func NewTracker(store StatusStore) *Tracker {
	return &Tracker{
		store:        store,
		queue:        make(chan transition, 256),
		writeTimeout: 5 * time.Second,
		logger:       log.L().With().Str(log.FieldComponent, "presence").Logger(),
	}
}

// Track enqueues a transition. Non-blocking: if the queue is full the persist
// is dropped and logged, same policy as a storage failure. Safe to call from
// the registry's transition hook.
func (t *Tracker) Track(userID string, online bool) {
	select {
	case t.queue <- transition{userID: userID, online: online}:
	default:
		t.logger.Warn().
			Str(log.FieldUserID, userID).
			Bool("online", online).
			Msg("presence queue full, dropping status persist")
	}
}

// Run drains the queue until ctx is cancelled, persisting each transition.
// Persistence failures are logged and never retried; in-memory registry state
// is not rolled back.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			t.drain()
			return nil
		case tr := <-t.queue:
			t.persist(tr)
		}
	}
}

// drain flushes whatever is still queued at shutdown.
func (t *Tracker) drain() {
	for {
		select {
		case tr := <-t.queue:
			t.persist(tr)
		default:
			return
		}
	}
}

func (t *Tracker) persist(tr transition) {
	status := domain.StatusOffline
	if tr.online {
		status = domain.StatusOnline
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.writeTimeout)
	defer cancel()

	if err := t.store.UpdateUserStatus(ctx, tr.userID, status); err != nil {
		t.logger.Error().Err(err).
			Str(log.FieldUserID, tr.userID).
			Str("status", string(status)).
			Msg("failed to persist presence transition")
		return
	}

	t.logger.Debug().
		Str(log.FieldUserID, tr.userID).
		Str("status", string(status)).
		Msg("presence transition persisted")
}
