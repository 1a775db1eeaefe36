package waiter

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/storage"
)

func testKey() domain.QueueKey {
	return domain.QueueKey{Token: domain.TokenAddress{0x01}, Amount: big.NewInt(1_000_000)}
}

func TestNewRejectsTooSmallMinParticipants(t *testing.T) {
	_, err := New(storage.NewMemory(), 1)
	assert.Error(t, err)
}

func TestAddParticipantNotReadyUntilThreshold(t *testing.T) {
	w, err := New(storage.NewMemory(), 3)
	require.NoError(t, err)
	ctx := context.Background()
	key := testKey()

	for i := 0; i < 2; i++ {
		var id domain.UTXOID
		id[0] = byte(i + 1)
		batch, ready, err := w.AddParticipant(ctx, key, id)
		require.NoError(t, err)
		assert.Falsef(t, ready, "did not expect ready before threshold, got batch %v", batch)
	}
}

func TestAddParticipantDrainsExactlyMinParticipants(t *testing.T) {
	w, err := New(storage.NewMemory(), 3)
	require.NoError(t, err)
	ctx := context.Background()
	key := testKey()

	var last []domain.UTXOID
	var lastReady bool
	for i := 0; i < 3; i++ {
		var id domain.UTXOID
		id[0] = byte(i + 1)
		batch, ready, err := w.AddParticipant(ctx, key, id)
		require.NoError(t, err)
		last, lastReady = batch, ready
	}
	assert.True(t, lastReady, "expected ready after 3rd participant")
	assert.Len(t, last, 3)
}

func TestAddParticipantStartsFreshBatchAfterDrain(t *testing.T) {
	w, err := New(storage.NewMemory(), 2)
	require.NoError(t, err)
	ctx := context.Background()
	key := testKey()

	for i := 0; i < 2; i++ {
		var id domain.UTXOID
		id[0] = byte(i + 1)
		_, _, err := w.AddParticipant(ctx, key, id)
		require.NoError(t, err)
	}

	var id domain.UTXOID
	id[0] = 0xFF
	_, ready, err := w.AddParticipant(ctx, key, id)
	require.NoError(t, err)
	assert.False(t, ready, "expected a fresh batch to require its own threshold, not be immediately ready")
}
