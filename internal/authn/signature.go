package authn

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
)

// MaxSignatureAge bounds how stale a join signature's timestamp may be,
// closing the replay window the original implementation left open (it only
// rejected signatures timestamped in the future, per
// original_source/src/service/auth.rs, not ones timestamped arbitrarily far
// in the past).
const MaxSignatureAge = 5 * time.Minute

var (
	ErrInvalidTimestamp = errors.New("authn: join signature timestamp is invalid")
	ErrInvalidSignature = errors.New("authn: join signature does not match utxo owner")
)

// joinMessage builds the 40-byte message a join signature is taken over:
// the UTXO id as a 32-byte big-endian value followed by the unix-second
// timestamp as an 8-byte big-endian value. This matches
// original_source/src/service/auth.rs's verify_join_signature byte for
// byte.
func joinMessage(utxoID domain.UTXOID, timestamp uint64) []byte {
	msg := make([]byte, 40)
	copy(msg[:32], utxoID[:])
	binary.BigEndian.PutUint64(msg[32:], timestamp)
	return msg
}

// VerifyJoinSignature proves that the holder of owner's private key signed
// (utxoID, timestamp), recovering the signer's address via Ecrecover the
// same way the original Ethereum-style verification does, and rejects
// timestamps that are in the future or stale beyond MaxSignatureAge.
func VerifyJoinSignature(utxoID domain.UTXOID, timestamp uint64, signature []byte, owner [20]byte) error {
	now := time.Now().Unix()
	if int64(timestamp) > now {
		return fmt.Errorf("%w: timestamp is in the future", ErrInvalidTimestamp)
	}
	if now-int64(timestamp) > int64(MaxSignatureAge.Seconds()) {
		return fmt.Errorf("%w: timestamp is too old", ErrInvalidTimestamp)
	}
	if len(signature) != 65 {
		return fmt.Errorf("%w: signature must be 65 bytes, got %d", ErrInvalidSignature, len(signature))
	}

	msg := joinMessage(utxoID, timestamp)
	digest := crypto.Keccak256(msg)

	// go-ethereum expects the recovery id in the last byte as 0/1; some
	// signers emit 27/28 (the legacy Ethereum convention).
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	recovered := [20]byte(crypto.PubkeyToAddress(*pubKey))
	if recovered != owner {
		return ErrInvalidSignature
	}
	return nil
}
