// Package registry is the process-wide room registry: it maps room IDs to
// the mailbox channel of that room's live actor goroutine, spawning actors
// lazily and cleaning them up after a grace period once they report
// themselves closed.
//
// Grounded on the teacher's internal/v1/session/hub.go Hub: the same
// mutex-guarded map, the same pendingRoomCleanups delayed-removal timer
// pattern, generalized from *Room structs to room.Actor mailbox channels.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/logging"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/metrics"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/room"
)

// DefaultCleanupGracePeriod mirrors the teacher's Hub.cleanupGracePeriod.
const DefaultCleanupGracePeriod = 5 * time.Second

// Registry tracks every live room actor in this process.
type Registry struct {
	mu       sync.Mutex
	mailboxes map[uuid.UUID]chan<- domain.Event
	cleanups  map[uuid.UUID]*time.Timer

	storage domain.Storage
	chain   domain.ChainConnector
	deadline time.Duration
	grace    time.Duration

	// mintRoomAccess issues a fresh RoomAccess token for a participant in a
	// given room, threaded down to every room actor this registry spawns
	// (SPEC_FULL §4.5 step 3).
	mintRoomAccess func(utxoID domain.UTXOID, roomID uuid.UUID) (string, error)

	baseCtx context.Context
}

func New(ctx context.Context, storage domain.Storage, chain domain.ChainConnector, roundDeadline time.Duration, mintRoomAccess func(utxoID domain.UTXOID, roomID uuid.UUID) (string, error)) *Registry {
	return &Registry{
		mailboxes:      make(map[uuid.UUID]chan<- domain.Event),
		cleanups:       make(map[uuid.UUID]*time.Timer),
		storage:        storage,
		chain:          chain,
		deadline:       roundDeadline,
		grace:          DefaultCleanupGracePeriod,
		mintRoomAccess: mintRoomAccess,
		baseCtx:        ctx,
	}
}

// Spawn creates a new room actor seated with participants and starts its
// run loop, registering its mailbox under id. It also persists the room's
// initial snapshot so other instances can answer reads about it.
func (r *Registry) Spawn(id uuid.UUID, key domain.QueueKey, participants []domain.Participant) chan<- domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mb, ok := r.mailboxes[id]; ok {
		return mb
	}

	snapshot := &domain.Room{
		ID:           id,
		Key:          key,
		Participants: participants,
		Round:        domain.RoundPending,
		CreatedAt:    time.Now(),
	}
	if err := r.storage.InsertRoom(r.baseCtx, snapshot); err != nil {
		logging.Warn(r.baseCtx, "failed to persist new room snapshot", zap.String("room_id", id.String()), zap.Error(err))
	}

	mint := func(utxoID domain.UTXOID) (string, error) {
		return r.mintRoomAccess(utxoID, id)
	}
	actor := room.New(id, key, participants, r.storage, r.chain, r.deadline, mint, r.remove)
	r.mailboxes[id] = actor.Mailbox()

	metrics.ActiveRooms.Inc()
	metrics.RoomParticipants.WithLabelValues(id.String()).Set(float64(len(participants)))

	ctx, cancel := context.WithCancel(r.baseCtx)
	go func() {
		defer cancel()
		actor.Run(ctx)
	}()

	return actor.Mailbox()
}

// Lookup returns the mailbox for a live room, or (nil, false) if no actor
// for id is currently running in this process. Callers needing a
// cross-instance read should consult domain.Storage.GetRoom instead.
func (r *Registry) Lookup(id uuid.UUID) (chan<- domain.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mb, ok := r.mailboxes[id]
	return mb, ok
}

// GetOrSpawn implements SPEC_FULL §4.4's get_or_spawn contract: return the
// live mailbox for id if this process already owns an actor for it;
// otherwise load the room's snapshot from storage and spawn a fresh actor
// bound to it, so a request landing on an instance that didn't form the
// room (or that restarted) can still reach it. Returns (nil, false) if no
// room with this id exists in storage either.
func (r *Registry) GetOrSpawn(ctx context.Context, id uuid.UUID) (chan<- domain.Event, bool) {
	r.mu.Lock()
	if mb, ok := r.mailboxes[id]; ok {
		r.mu.Unlock()
		return mb, true
	}
	r.mu.Unlock()

	snapshot, err := r.storage.GetRoom(ctx, id)
	if err != nil {
		return nil, false
	}
	return r.Spawn(snapshot.ID, snapshot.Key, snapshot.Participants), true
}

// remove is invoked by a room actor (via room.New's onClose callback) once
// its Run loop exits. It schedules removal from the registry after a grace
// period rather than deleting immediately, mirroring Hub.removeRoom: the
// grace period exists so a reconnect racing with the room's natural close
// doesn't spawn a duplicate actor for a room that is mid-teardown.
func (r *Registry) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.cleanups[id]; ok {
		existing.Stop()
		delete(r.cleanups, id)
	}

	timer := time.AfterFunc(r.grace, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.mailboxes, id)
		delete(r.cleanups, id)
	})
	r.cleanups[id] = timer
}
