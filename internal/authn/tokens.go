// Package authn mints and validates the two short-lived JWTs this
// coordinator issues (shuffle-access and room-access), and verifies the
// ECDSA join signature a participant presents to prove UTXO ownership.
package authn

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
)

// tokenKind discriminates the two claim shapes this service issues. Go's
// jwt.ParseWithClaims has no equivalent to Rust's decode::<T> failing
// closed on shape mismatch, so both claim structs below carry this field
// and every Validate* call checks it explicitly.
type tokenKind string

const (
	kindShuffleAccess tokenKind = "shuffle_access"
	kindRoomAccess    tokenKind = "room_access"
)

// DefaultTokenTTL matches the original coordinator's 24 hour token expiry.
const DefaultTokenTTL = 24 * time.Hour

var (
	ErrWrongTokenKind = errors.New("authn: token is not the expected kind")
	ErrTokenExpired   = errors.New("authn: token expired")
)

// ShuffleAccessClaims identifies a queued-but-not-yet-seated participant.
type ShuffleAccessClaims struct {
	Kind   tokenKind `json:"kind"`
	UTXOID string    `json:"utxo_id"`
	jwt.RegisteredClaims
}

// RoomAccessClaims identifies a participant seated in a specific room.
type RoomAccessClaims struct {
	Kind   tokenKind `json:"kind"`
	UTXOID string    `json:"utxo_id"`
	RoomID string    `json:"room_id"`
	jwt.RegisteredClaims
}

// TokenService issues and validates both token kinds with a single HMAC
// secret, mirroring the teacher's jwt.NewWithClaims/ParseWithClaims idiom
// in internal/v1/auth/validator.go, generalized from RS256-over-JWKS to
// HS256 with a locally held secret since this coordinator mints its own
// tokens rather than validating a third party's.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: secret, ttl: ttl}
}

func utxoIDString(id domain.UTXOID) string {
	return fmt.Sprintf("%x", id)
}

func (s *TokenService) IssueShuffleAccess(utxoID domain.UTXOID) (string, error) {
	now := time.Now()
	claims := ShuffleAccessClaims{
		Kind:   kindShuffleAccess,
		UTXOID: utxoIDString(utxoID),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenService) IssueRoomAccess(utxoID domain.UTXOID, roomID uuid.UUID) (string, error) {
	now := time.Now()
	claims := RoomAccessClaims{
		Kind:   kindRoomAccess,
		UTXOID: utxoIDString(utxoID),
		RoomID: roomID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenService) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("authn: unexpected signing method %v", t.Header["alg"])
	}
	return s.secret, nil
}

// ValidateShuffleAccess parses and validates a shuffle-access token,
// rejecting tokens of the wrong kind (e.g. a room-access token presented
// here) even though both share an HMAC secret and similar claim shapes.
func (s *TokenService) ValidateShuffleAccess(token string) (*ShuffleAccessClaims, error) {
	claims := &ShuffleAccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("authn: parse shuffle access token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("authn: invalid shuffle access token")
	}
	if claims.Kind != kindShuffleAccess {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}

func (s *TokenService) ValidateRoomAccess(token string) (*RoomAccessClaims, error) {
	claims := &RoomAccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("authn: parse room access token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("authn: invalid room access token")
	}
	if claims.Kind != kindRoomAccess {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}
