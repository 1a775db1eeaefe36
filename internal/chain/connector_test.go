package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
)

func TestMemoryLookupUTXOUnknownReturnsNilNotError(t *testing.T) {
	m := NewMemory()
	u, err := m.LookupUTXO(context.Background(), domain.UTXOID{0x01})
	require.NoError(t, err)
	assert.Nil(t, u, "expected an unseeded utxo to report (nil, nil), not an error")
}

func TestMemoryLookupUTXOReturnsSeededCopy(t *testing.T) {
	m := NewMemory()
	id := domain.UTXOID{0x02}
	m.Seed(&domain.UTXO{ID: id, Owner: [20]byte{0xAA}})

	got, err := m.LookupUTXO(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, [20]byte{0xAA}, got.Owner)
}

func TestMemorySubmitTransactionDefaultsToZeroHash(t *testing.T) {
	m := NewMemory()
	hash, err := m.SubmitTransaction(context.Background(), []*big.Int{big.NewInt(1)}, [][]byte{[]byte("addr")})
	require.NoError(t, err)
	assert.Equal(t, [32]byte{}, hash, "expected zero hash with no OnSubmit hook")
}

func TestGobreakerConnectorPassesThroughSuccess(t *testing.T) {
	fake := NewMemory()
	id := domain.UTXOID{0x03}
	fake.Seed(&domain.UTXO{ID: id})

	c := NewGobreakerConnector(fake)
	got, err := c.LookupUTXO(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
}

func TestGobreakerConnectorOpensAfterRepeatedFailures(t *testing.T) {
	fake := NewMemory()
	c := NewGobreakerConnector(fake)
	ctx := context.Background()

	// gobreaker's default ReadyToTrip opens after more than 5 consecutive
	// failures. A missing UTXO now reports (nil, nil), not an error, so it
	// can no longer drive the breaker; use a failing SubmitTransaction hook
	// instead.
	fake.OnSubmit(func(_ context.Context, _ []*big.Int, _ [][]byte) ([32]byte, error) {
		return [32]byte{}, assert.AnError
	})
	var lastErr error
	for i := 0; i < 6; i++ {
		_, lastErr = c.SubmitTransaction(ctx, nil, nil)
	}
	assert.Equal(t, assert.AnError, lastErr, "expected the underlying error before the breaker trips")

	_, err := c.SubmitTransaction(ctx, nil, nil)
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Unavailable, st.Code())
}

func TestGobreakerConnectorSubmitTransactionPassesThrough(t *testing.T) {
	fake := NewMemory()
	var calledInputs []*big.Int
	var calledOutputs [][]byte
	fake.OnSubmit(func(_ context.Context, inputs []*big.Int, outputs [][]byte) ([32]byte, error) {
		calledInputs = inputs
		calledOutputs = outputs
		return [32]byte{0x01}, nil
	})

	c := NewGobreakerConnector(fake)
	inputs := []*big.Int{big.NewInt(42)}
	outputs := [][]byte{[]byte("addr-1")}
	hash, err := c.SubmitTransaction(context.Background(), inputs, outputs)
	require.NoError(t, err)
	assert.Equal(t, [32]byte{0x01}, hash)
	assert.Equal(t, inputs, calledInputs)
	assert.Equal(t, outputs, calledOutputs)
}
