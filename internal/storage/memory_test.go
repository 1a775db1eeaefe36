package storage

import (
	"context"
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
)

func TestMemoryQueuePushAndDrain(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	key := domain.QueueKey{Token: domain.TokenAddress{0x01}, Amount: big.NewInt(5)}

	for i := 0; i < 3; i++ {
		var id domain.UTXOID
		id[0] = byte(i + 1)
		require.NoError(t, m.PushQueue(ctx, key, id))
	}

	n, err := m.QueueLen(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ids, ok, err := m.DrainQueue(ctx, key, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, ids, 2)
	assert.Equal(t, byte(1), ids[0][0])
	assert.Equal(t, byte(2), ids[1][0])

	n, err = m.QueueLen(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryDrainQueueInsufficientEntriesReturnsNotOK(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	key := domain.QueueKey{Token: domain.TokenAddress{0x02}, Amount: big.NewInt(1)}

	var id domain.UTXOID
	id[0] = 0x01
	require.NoError(t, m.PushQueue(ctx, key, id))

	ids, ok, err := m.DrainQueue(ctx, key, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, ids)

	n, err := m.QueueLen(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryRoomLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	id := uuid.New()

	_, err := m.GetRoom(ctx, id)
	assert.Equal(t, domain.ErrRoomNotFound, err)

	room := &domain.Room{ID: id, Round: domain.RoundPending}
	require.NoError(t, m.InsertRoom(ctx, room))

	got, err := m.GetRoom(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundPending, got.Round)

	require.NoError(t, m.UpdateRoomRound(ctx, id, domain.RoundComplete))
	got, err = m.GetRoom(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundComplete, got.Round)
}

func TestMemoryGetRoomReturnsACopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, m.InsertRoom(ctx, &domain.Room{ID: id, Round: domain.RoundPending}))

	got, err := m.GetRoom(ctx, id)
	require.NoError(t, err)
	got.Round = domain.RoundExpired

	fresh, err := m.GetRoom(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundPending, fresh.Round, "mutating a returned room must not leak into storage")
}

func TestMemoryParticipantLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	utxoID := domain.UTXOID{0x01}

	_, err := m.GetParticipant(ctx, utxoID)
	assert.Equal(t, domain.ErrUnknownUTXO, err)

	require.NoError(t, m.InsertParticipant(ctx, &domain.Participant{UTXOID: utxoID}))

	roomID := uuid.New()
	require.NoError(t, m.UpdateParticipantRoom(ctx, utxoID, roomID))

	got, err := m.GetParticipant(ctx, utxoID)
	require.NoError(t, err)
	assert.Equal(t, roomID, got.RoomID)
}

func TestMemoryUpdateParticipantRoomUnknownUTXO(t *testing.T) {
	m := NewMemory()
	err := m.UpdateParticipantRoom(context.Background(), domain.UTXOID{0xFF}, uuid.New())
	assert.Equal(t, domain.ErrUnknownUTXO, err)
}
