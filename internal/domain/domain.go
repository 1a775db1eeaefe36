// Package domain holds the shared types and interfaces used across the
// shuffle coordinator: UTXO identifiers, queue keys, participants, room
// state, and the collaborator interfaces (Storage, ChainConnector) that the
// rest of the service is built against.
package domain

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// TokenAddress identifies an ERC-20 style fungible token being shuffled.
// Represented as its contract address; the zero value denotes the native
// asset.
type TokenAddress [20]byte

// QueueKey identifies a waiting queue: participants are only ever shuffled
// against others depositing the same token in the same denomination.
type QueueKey struct {
	Token  TokenAddress
	Amount *big.Int
}

// UTXOID is the 256-bit identifier of a deposited UTXO, matching the
// original chain's identifier width.
type UTXOID [32]byte

// UTXO is a snapshot of a single deposit as seen by the chain connector.
type UTXO struct {
	ID    UTXOID
	Owner [20]byte // Ethereum-style address recovered from the join signature
	Token TokenAddress
	Amount *big.Int
}

// RoundState tags which phase of the shuffle protocol a room is in.
type RoundState int

const (
	RoundPending RoundState = iota
	RoundCollectingOutputs
	RoundCollectingSignatures
	RoundComplete
	RoundExpired
)

func (s RoundState) String() string {
	switch s {
	case RoundPending:
		return "pending"
	case RoundCollectingOutputs:
		return "collecting_outputs"
	case RoundCollectingSignatures:
		return "collecting_signatures"
	case RoundComplete:
		return "complete"
	case RoundExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// RSAPublicKey is the wire-opaque public key a participant layers their
// onion encryption under. The coordinator never inspects modulus/exponent
// beyond forwarding them in the correct order; only participants decrypt.
type RSAPublicKey struct {
	Modulus  []byte
	Exponent []byte
}

// Participant is one member of a shuffle room.
type Participant struct {
	UTXOID UTXOID
	Owner  [20]byte
	// RoomID is the zero UUID until this participant has been seated into
	// a room.
	RoomID uuid.UUID
	// RSAPubKey is nil until this participant connects with ConnectShuffleRoom.
	RSAPubKey *RSAPublicKey
	// EncodedOutputs is the full list of layered-encrypted destination
	// addresses this participant forwarded for the current round (the
	// entire shuffled set after this hop's re-encryption and permutation,
	// not a single address), nil until submitted.
	EncodedOutputs [][]byte
	// Signature is this participant's signature over the final transaction,
	// nil until submitted.
	Signature []byte
}

// Room is an immutable snapshot of a shuffle room's state, returned to
// callers that need to read state without talking to the room actor's
// mailbox (e.g. storage persistence, metrics).
type Room struct {
	ID           uuid.UUID
	Key          QueueKey
	Participants []Participant
	Round        RoundState
	CreatedAt    time.Time
}

// Event is the sum type of messages a room actor's mailbox accepts.
// Exactly one of the typed payload fields is meaningful per Kind.
type EventKind int

const (
	// EventConnect establishes (or re-establishes) the actor's outbound
	// stream to a seated participant, used by ConnectShuffleRoom.
	EventConnect EventKind = iota
	// EventShuffleRound submits a participant's layered-encrypted output
	// for the current round.
	EventShuffleRound
	// EventSignedOutput submits a participant's signature over the
	// finalized transaction.
	EventSignedOutput
)

// Event is sent into a room actor's mailbox channel. Reply receives
// exactly one Reply, sent by the room actor after handling.
type Event struct {
	Kind EventKind

	Participant UTXOID

	// EventConnect: the channel the actor should push ClientEvents to for
	// Participant for the lifetime of the stream.
	ClientStream chan<- ClientEvent
	// EventConnect: the RSA public key this participant will decrypt
	// layered outputs with, forwarded to earlier participants in turn
	// order once every seat has connected with a key.
	RSAPubKey *RSAPublicKey

	// EventShuffleRound: the full list of layered-encrypted destination
	// addresses this participant re-encrypted and permuted, which the actor
	// forwards to the next hop in turn order (or, on the last hop, broadcasts
	// as the finalized output set).
	ShuffleOutput [][]byte

	// EventSignedOutput
	Signature []byte

	Reply chan Reply
}

// Reply is the room actor's response to a mailbox Event.
type Reply struct {
	Err error
}

// ClientEvent is pushed out to a connected participant's outbound stream
// (the server-streaming half of ConnectShuffleRoom).
type ClientEventKind int

const (
	// ClientEventKeySet delivers the complete ordered RSA key list this
	// participant must layer its contribution under, sent to every
	// participant once all N have connected with a key (SPEC_FULL §4.5).
	ClientEventKeySet ClientEventKind = iota
	ClientEventYourTurn
	ClientEventRoundComplete
	ClientEventRoomClosed
)

type ClientEvent struct {
	Kind ClientEventKind
	// Outputs carries the current output list this participant must peel
	// and forward for ClientEventYourTurn, or the finalized output set for
	// ClientEventRoundComplete.
	Outputs [][]byte
	// Keys carries the decoding-first ordered key list for
	// ClientEventKeySet: participants[N-1], participants[N-2], ...,
	// participants[i+1], the keys this participant's sender must layer
	// under in that order.
	Keys []RSAPublicKey
	// RoomAccessToken carries a freshly minted RoomAccess token alongside
	// ClientEventKeySet (SPEC_FULL §4.5 step 3): the key set is the signal
	// that every seat is filled, so it doubles as the point a participant's
	// room membership is confirmed for the rest of the protocol.
	RoomAccessToken string
	Err             error
}

var (
	ErrQueueNotReady    = errors.New("domain: queue has not reached minimum room size")
	ErrRoomNotFound     = errors.New("domain: room not found")
	ErrParticipantExists = errors.New("domain: participant already queued or seated")
	ErrRoomClosed       = errors.New("domain: room is closed")
	ErrUnknownUTXO      = errors.New("domain: utxo not found on chain")
	ErrWrongTurn        = errors.New("domain: participant submitted output out of turn")
	ErrAlreadySigned    = errors.New("domain: participant already signed this round")
)

// ChainConnector is the read/write boundary to the chain this coordinator
// shuffles UTXOs on. Implementations must be safe for concurrent use.
type ChainConnector interface {
	// LookupUTXO fetches the current owner/token/amount for a UTXO id.
	// Returns (nil, nil), not an error, if the chain has no record of it;
	// callers distinguish "not found" from a transport failure by checking
	// the returned pointer rather than a sentinel error.
	LookupUTXO(ctx context.Context, id UTXOID) (*UTXO, error)
	// SubmitTransaction broadcasts the shuffle transaction transferring the
	// room's original UTXO inputs to the final round's shuffled output
	// addresses. Per-participant signatures are collected by the coordinator
	// before this call (EventSignedOutput) but are not themselves part of
	// this boundary; how they authorize the on-chain transfer is the
	// connector implementation's concern.
	SubmitTransaction(ctx context.Context, inputs []*big.Int, outputs [][]byte) (txHash [32]byte, err error)
}

// Storage is the persistence boundary for queues, rooms, and participants,
// allowing a single-instance in-memory implementation and a Redis-backed
// multi-instance implementation to share the same contract.
type Storage interface {
	QueueStore
	RoomStore
	ParticipantStore
}

// QueueStore manages the FIFO waiting queues participants sit in before a
// room is formed.
type QueueStore interface {
	PushQueue(ctx context.Context, key QueueKey, utxo UTXOID) error
	// DrainQueue removes and returns exactly n entries, in FIFO order, with
	// ok=true. If fewer than n are queued, it removes nothing, returns no
	// entries and ok=false.
	DrainQueue(ctx context.Context, key QueueKey, n int) (ids []UTXOID, ok bool, err error)
	QueueLen(ctx context.Context, key QueueKey) (int, error)
}

// RoomStore persists room assignment and round state so a crashed instance
// can be resumed, and so other instances can answer IsReadyForShuffle for a
// room they did not spawn the actor for.
type RoomStore interface {
	InsertRoom(ctx context.Context, room *Room) error
	GetRoom(ctx context.Context, id uuid.UUID) (*Room, error)
	UpdateRoomRound(ctx context.Context, id uuid.UUID, round RoundState) error
}

// ParticipantStore tracks a participant's room assignment and round
// progress independent of which room actor (possibly on another instance)
// is live.
type ParticipantStore interface {
	InsertParticipant(ctx context.Context, p *Participant) error
	GetParticipant(ctx context.Context, id UTXOID) (*Participant, error)
	UpdateParticipantRoom(ctx context.Context, id UTXOID, roomID uuid.UUID) error
}
