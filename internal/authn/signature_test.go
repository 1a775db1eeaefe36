package authn

import (
	"crypto/ecdsa"
	"encoding/binary"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
)

func newTestKey(t *testing.T) (*ecdsa.PrivateKey, [20]byte) {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	return priv, [20]byte(crypto.PubkeyToAddress(priv.PublicKey))
}

func signJoinMessage(t *testing.T, utxoID domain.UTXOID, timestamp uint64, priv *ecdsa.PrivateKey) []byte {
	t.Helper()
	msg := make([]byte, 40)
	copy(msg[:32], utxoID[:])
	binary.BigEndian.PutUint64(msg[32:], timestamp)
	digest := crypto.Keccak256(msg)
	sig, err := crypto.Sign(digest, priv)
	require.NoError(t, err)
	return sig
}

func TestVerifyJoinSignatureAccepted(t *testing.T) {
	priv, owner := newTestKey(t)
	utxoID := domain.UTXOID{0xAA}
	ts := uint64(time.Now().Unix())
	sig := signJoinMessage(t, utxoID, ts, priv)

	assert.NoError(t, VerifyJoinSignature(utxoID, ts, sig, owner))
}

func TestVerifyJoinSignatureWrongOwnerRejected(t *testing.T) {
	priv, _ := newTestKey(t)
	_, otherOwner := newTestKey(t)
	utxoID := domain.UTXOID{0xAA}
	ts := uint64(time.Now().Unix())
	sig := signJoinMessage(t, utxoID, ts, priv)

	assert.Equal(t, ErrInvalidSignature, VerifyJoinSignature(utxoID, ts, sig, otherOwner))
}

func TestVerifyJoinSignatureFutureTimestampRejected(t *testing.T) {
	priv, owner := newTestKey(t)
	utxoID := domain.UTXOID{0xAA}
	ts := uint64(time.Now().Add(time.Hour).Unix())
	sig := signJoinMessage(t, utxoID, ts, priv)

	assert.ErrorIs(t, VerifyJoinSignature(utxoID, ts, sig, owner), ErrInvalidTimestamp)
}

func TestVerifyJoinSignatureStaleTimestampRejected(t *testing.T) {
	priv, owner := newTestKey(t)
	utxoID := domain.UTXOID{0xAA}
	ts := uint64(time.Now().Add(-MaxSignatureAge - time.Minute).Unix())
	sig := signJoinMessage(t, utxoID, ts, priv)

	assert.ErrorIs(t, VerifyJoinSignature(utxoID, ts, sig, owner), ErrInvalidTimestamp)
}

func TestVerifyJoinSignatureWrongLengthRejected(t *testing.T) {
	_, owner := newTestKey(t)
	utxoID := domain.UTXOID{0xAA}
	ts := uint64(time.Now().Unix())

	assert.Error(t, VerifyJoinSignature(utxoID, ts, []byte{0x01, 0x02}, owner), "expected error for malformed signature length")
}
