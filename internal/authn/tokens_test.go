package authn

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
)

func TestIssueAndValidateShuffleAccess(t *testing.T) {
	svc := NewTokenService([]byte("a-test-secret-at-least-32-bytes!!"), time.Hour)
	utxoID := domain.UTXOID{0x01, 0x02}

	token, err := svc.IssueShuffleAccess(utxoID)
	require.NoError(t, err)

	claims, err := svc.ValidateShuffleAccess(token)
	require.NoError(t, err)
	assert.Equal(t, utxoIDString(utxoID), claims.UTXOID)
}

func TestRoomAccessTokenRejectedByShuffleAccessValidator(t *testing.T) {
	svc := NewTokenService([]byte("a-test-secret-at-least-32-bytes!!"), time.Hour)
	utxoID := domain.UTXOID{0x01}
	roomID := uuid.New()

	token, err := svc.IssueRoomAccess(utxoID, roomID)
	require.NoError(t, err)

	_, err = svc.ValidateShuffleAccess(token)
	assert.Equal(t, ErrWrongTokenKind, err)
}

func TestShuffleAccessTokenRejectedByRoomAccessValidator(t *testing.T) {
	svc := NewTokenService([]byte("a-test-secret-at-least-32-bytes!!"), time.Hour)
	utxoID := domain.UTXOID{0x01}

	token, err := svc.IssueShuffleAccess(utxoID)
	require.NoError(t, err)

	_, err = svc.ValidateRoomAccess(token)
	assert.Equal(t, ErrWrongTokenKind, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	secret := []byte("a-test-secret-at-least-32-bytes!!")
	svc := NewTokenService(secret, time.Hour)

	// Hand-construct an already-expired token; IssueShuffleAccess always
	// uses the service's configured (positive) TTL, so this is the only
	// way to exercise the expiry path deterministically.
	claims := ShuffleAccessClaims{
		Kind:   kindShuffleAccess,
		UTXOID: utxoIDString(domain.UTXOID{0x01}),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = svc.ValidateShuffleAccess(token)
	assert.Equal(t, ErrTokenExpired, err)
}

func TestRoomAccessClaimsCarryRoomID(t *testing.T) {
	svc := NewTokenService([]byte("a-test-secret-at-least-32-bytes!!"), time.Hour)
	utxoID := domain.UTXOID{0x09}
	roomID := uuid.New()

	token, err := svc.IssueRoomAccess(utxoID, roomID)
	require.NoError(t, err)
	claims, err := svc.ValidateRoomAccess(token)
	require.NoError(t, err)
	assert.Equal(t, roomID.String(), claims.RoomID)
}
