// Package storage implements domain.Storage: an in-memory implementation
// for tests and single-instance deployments, and a Redis-backed
// implementation for multi-instance deployments (redis.go).
package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
)

// Memory is an in-process implementation of domain.Storage, grounded on the
// teacher's mutex-guarded-map idiom (internal/v1/session/hub.go's room map,
// internal/v1/ratelimit's limiter map). Safe for concurrent use.
type Memory struct {
	mu           sync.Mutex
	queues       map[string][]domain.UTXOID
	rooms        map[uuid.UUID]*domain.Room
	participants map[domain.UTXOID]*domain.Participant
}

func NewMemory() *Memory {
	return &Memory{
		queues:       make(map[string][]domain.UTXOID),
		rooms:        make(map[uuid.UUID]*domain.Room),
		participants: make(map[domain.UTXOID]*domain.Participant),
	}
}

func queueKeyString(key domain.QueueKey) string {
	amt := "0"
	if key.Amount != nil {
		amt = key.Amount.String()
	}
	return string(key.Token[:]) + ":" + amt
}

func (m *Memory) PushQueue(_ context.Context, key domain.QueueKey, utxo domain.UTXOID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := queueKeyString(key)
	m.queues[k] = append(m.queues[k], utxo)
	return nil
}

func (m *Memory) DrainQueue(_ context.Context, key domain.QueueKey, n int) ([]domain.UTXOID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := queueKeyString(key)
	q := m.queues[k]
	if len(q) < n {
		return nil, false, nil
	}
	drained := append([]domain.UTXOID(nil), q[:n]...)
	m.queues[k] = q[n:]
	return drained, true, nil
}

func (m *Memory) QueueLen(_ context.Context, key domain.QueueKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[queueKeyString(key)]), nil
}

func (m *Memory) InsertRoom(_ context.Context, room *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *room
	m.rooms[room.ID] = &cp
	return nil
}

func (m *Memory) GetRoom(_ context.Context, id uuid.UUID) (*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) UpdateRoomRound(_ context.Context, id uuid.UUID, round domain.RoundState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return domain.ErrRoomNotFound
	}
	r.Round = round
	return nil
}

func (m *Memory) InsertParticipant(_ context.Context, p *domain.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.participants[p.UTXOID] = &cp
	return nil
}

func (m *Memory) GetParticipant(_ context.Context, id domain.UTXOID) (*domain.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return nil, domain.ErrUnknownUTXO
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) UpdateParticipantRoom(_ context.Context, id domain.UTXOID, roomID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return domain.ErrUnknownUTXO
	}
	p.RoomID = roomID
	return nil
}

var _ domain.Storage = (*Memory)(nil)
