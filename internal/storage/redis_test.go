package storage

import (
	"context"
	"math/big"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	r, err := NewRedis(mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedisQueuePushAndDrain(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	key := domain.QueueKey{Token: domain.TokenAddress{0x03}, Amount: big.NewInt(7)}

	for i := 0; i < 3; i++ {
		var id domain.UTXOID
		id[0] = byte(i + 1)
		require.NoError(t, r.PushQueue(ctx, key, id))
	}

	n, err := r.QueueLen(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ids, ok, err := r.DrainQueue(ctx, key, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, ids, 2)
	assert.Equal(t, byte(1), ids[0][0])
	assert.Equal(t, byte(2), ids[1][0])

	n, err = r.QueueLen(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisDrainQueueBelowThresholdIsAtomicNoOp(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	key := domain.QueueKey{Token: domain.TokenAddress{0x04}, Amount: big.NewInt(1)}

	var id domain.UTXOID
	id[0] = 0x01
	require.NoError(t, r.PushQueue(ctx, key, id))

	ids, ok, err := r.DrainQueue(ctx, key, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, ids)

	n, err := r.QueueLen(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisRoomRoundTrip(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := r.GetRoom(ctx, id)
	assert.Equal(t, domain.ErrRoomNotFound, err)

	room := &domain.Room{ID: id, Round: domain.RoundPending}
	require.NoError(t, r.InsertRoom(ctx, room))

	got, err := r.GetRoom(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, domain.RoundPending, got.Round)

	require.NoError(t, r.UpdateRoomRound(ctx, id, domain.RoundCollectingSignatures))
	got, err = r.GetRoom(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundCollectingSignatures, got.Round)
}

func TestRedisParticipantRoundTrip(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	utxoID := domain.UTXOID{0x09}

	_, err := r.GetParticipant(ctx, utxoID)
	assert.Equal(t, domain.ErrUnknownUTXO, err)

	require.NoError(t, r.InsertParticipant(ctx, &domain.Participant{UTXOID: utxoID}))

	roomID := uuid.New()
	require.NoError(t, r.UpdateParticipantRoom(ctx, utxoID, roomID))

	got, err := r.GetParticipant(ctx, utxoID)
	require.NoError(t, err)
	assert.Equal(t, roomID, got.RoomID)
}

func TestRedisPingSucceedsAgainstLiveServer(t *testing.T) {
	r := newTestRedis(t)
	assert.NoError(t, r.Ping(context.Background()))
}
