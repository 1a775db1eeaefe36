// Package rpc implements pb.ShuffleServiceServer: the gRPC façade that
// translates wire requests into domain calls (waiter, registry, room
// actor, chain connector, storage) and domain outcomes into gRPC status
// codes, per SPEC_FULL §4.6.
//
// Grounded on original_source/src/service/mod.rs for the join/ready/
// connect control flow this façade orchestrates, and the teacher's
// internal/v1/session/hub.go ServeWs for the Go idiom of doing
// auth-then-dispatch over a long-lived stream.
package rpc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/authn"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/logging"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/metrics"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/pb"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/ratelimit"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/registry"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/waiter"
)

// clientStreamBuffer matches SPEC_FULL §5's bounded-channel capacity for
// a client-bound stream: backpressure on a stalled participant should
// stall, not drop, so the room's deadline timer is the only thing that
// can time out a stuck participant.
const clientStreamBuffer = 10

// mailboxSendTimeout bounds how long a unary RPC waits to hand an event
// to a room actor's mailbox before giving up and reporting Internal.
const mailboxSendTimeout = 5 * time.Second

// Server implements pb.ShuffleServiceServer.
type Server struct {
	waiter   *waiter.Waiter
	registry *registry.Registry
	chain    domain.ChainConnector
	storage  domain.Storage
	tokens   *authn.TokenService
	limiter  *ratelimit.Limiter
}

// New constructs the RPC façade. limiter may be nil to disable per-owner
// rate limiting (e.g. in tests).
func New(w *waiter.Waiter, reg *registry.Registry, chain domain.ChainConnector, storage domain.Storage, tokens *authn.TokenService, limiter *ratelimit.Limiter) *Server {
	return &Server{
		waiter:   w,
		registry: reg,
		chain:    chain,
		storage:  storage,
		tokens:   tokens,
		limiter:  limiter,
	}
}

var _ pb.ShuffleServiceServer = (*Server)(nil)

// JoinShuffleRoom enqueues a UTXO for shuffling after verifying the caller
// owns it, per SPEC_FULL §4.1/§4.3.
func (s *Server) JoinShuffleRoom(ctx context.Context, req *pb.JoinShuffleRoomRequest) (*pb.JoinShuffleRoomResponse, error) {
	utxoID, err := decodeUTXOID(req.UtxoId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	utxo, err := s.chain.LookupUTXO(ctx, utxoID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "chain lookup failed: %v", err)
	}
	if utxo == nil {
		return nil, status.Error(codes.NotFound, "utxo not found")
	}

	if err := authn.VerifyJoinSignature(utxoID, req.Timestamp, req.Signature, utxo.Owner); err != nil {
		metrics.JoinSignatureVerifications.WithLabelValues("rejected").Inc()
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	metrics.JoinSignatureVerifications.WithLabelValues("accepted").Inc()

	if s.limiter != nil {
		if err := s.limiter.CheckOwner(ctx, utxo.Owner); err != nil {
			return nil, err
		}
	}

	if _, err := s.storage.GetParticipant(ctx, utxoID); err == nil {
		return nil, status.Error(codes.AlreadyExists, domain.ErrParticipantExists.Error())
	}
	if err := s.storage.InsertParticipant(ctx, &domain.Participant{UTXOID: utxoID, Owner: utxo.Owner}); err != nil {
		return nil, status.Errorf(codes.Internal, "persist participant: %v", err)
	}

	key := domain.QueueKey{Token: utxo.Token, Amount: cloneBig(utxo.Amount)}
	batch, ready, err := s.waiter.AddParticipant(ctx, key, utxoID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "enqueue: %v", err)
	}
	if ready {
		s.formRoom(ctx, key, batch)
	}

	token, err := s.tokens.IssueShuffleAccess(utxoID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "issue token: %v", err)
	}
	metrics.TokensIssued.WithLabelValues("shuffle_access").Inc()

	return &pb.JoinShuffleRoomResponse{ShuffleAccessToken: token}, nil
}

// formRoom seats a drained batch into a new room: a fresh room id,
// participant records updated to point at it, and a live actor spawned
// through the registry (SPEC_FULL §4.1/§4.4).
func (s *Server) formRoom(ctx context.Context, key domain.QueueKey, batch []domain.UTXOID) {
	roomID := uuid.New()
	participants := make([]domain.Participant, 0, len(batch))
	for _, id := range batch {
		p, err := s.storage.GetParticipant(ctx, id)
		if err != nil {
			logging.Error(ctx, "form room: participant vanished before seating", zap.String("utxo_id", hex.EncodeToString(id[:])), zap.Error(err))
			p = &domain.Participant{UTXOID: id}
		}
		p.RoomID = roomID
		if err := s.storage.UpdateParticipantRoom(ctx, id, roomID); err != nil {
			logging.Warn(ctx, "form room: failed to persist room assignment", zap.Error(err))
		}
		participants = append(participants, *p)
	}
	s.registry.Spawn(roomID, key, participants)
	logging.Info(ctx, "room formed", zap.String("room_id", roomID.String()), zap.Int("participants", len(participants)))
}

// IsReadyForShuffle reports whether a queued participant has a room yet,
// per SPEC_FULL §4.6. Idempotent: repeated calls with a still-valid token
// return a token carrying the same claims (testable property #7).
func (s *Server) IsReadyForShuffle(ctx context.Context, req *pb.IsReadyForShuffleRequest) (*pb.IsReadyForShuffleResponse, error) {
	claims, err := s.tokens.ValidateShuffleAccess(req.ShuffleAccessToken)
	if err != nil {
		return nil, mapTokenError(err)
	}
	utxoID, err := decodeHexUTXOID(claims.UTXOID)
	if err != nil {
		return nil, status.Error(codes.Internal, "corrupt token claims")
	}

	p, err := s.storage.GetParticipant(ctx, utxoID)
	if err != nil {
		return nil, status.Error(codes.NotFound, "participant not found")
	}

	if p.RoomID != uuid.Nil {
		token, err := s.tokens.IssueRoomAccess(utxoID, p.RoomID)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "issue token: %v", err)
		}
		metrics.TokensIssued.WithLabelValues("room_access").Inc()
		return &pb.IsReadyForShuffleResponse{Ready: true, RoomAccessToken: token}, nil
	}

	token, err := s.tokens.IssueShuffleAccess(utxoID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "issue token: %v", err)
	}
	metrics.TokensIssued.WithLabelValues("shuffle_access").Inc()
	return &pb.IsReadyForShuffleResponse{Ready: false, ShuffleAccessToken: token}, nil
}

// ConnectShuffleRoom opens the server-streaming half of the protocol.
//
// It is authenticated with the shuffle-access token minted at join time,
// carried in the RoomAccessToken wire field: a participant is not
// guaranteed to hold a room-access token yet at this point, since
// IsReadyForShuffle issues one only when polled after seating and key
// distribution issues one only after every participant has connected.
// The field keeps its original name to avoid a wire-incompatible rename;
// callers should treat it as "bearer token for this call" rather than
// inferring its kind from the name.
func (s *Server) ConnectShuffleRoom(req *pb.ConnectShuffleRoomRequest, stream pb.ShuffleService_ConnectShuffleRoomServer) error {
	ctx := stream.Context()
	claims, err := s.tokens.ValidateShuffleAccess(req.RoomAccessToken)
	if err != nil {
		return mapTokenError(err)
	}
	utxoID, err := decodeHexUTXOID(claims.UTXOID)
	if err != nil {
		return status.Error(codes.Internal, "corrupt token claims")
	}

	p, err := s.storage.GetParticipant(ctx, utxoID)
	if err != nil {
		return status.Error(codes.NotFound, "participant not found")
	}
	if p.RoomID == uuid.Nil {
		return status.Error(codes.FailedPrecondition, "participant is not yet seated in a room")
	}

	mailbox, ok := s.registry.GetOrSpawn(ctx, p.RoomID)
	if !ok {
		return status.Error(codes.NotFound, "room not found")
	}

	if req.PublicKey == nil {
		return status.Error(codes.InvalidArgument, "public_key is required to connect")
	}
	pubKey := &domain.RSAPublicKey{Modulus: req.PublicKey.Modulus, Exponent: req.PublicKey.Exponent}

	clientCh := make(chan domain.ClientEvent, clientStreamBuffer)
	reply := make(chan domain.Reply, 1)
	ev := domain.Event{
		Kind:         domain.EventConnect,
		Participant:  utxoID,
		ClientStream: clientCh,
		RSAPubKey:    pubKey,
		Reply:        reply,
	}

	if err := sendEvent(ctx, mailbox, ev); err != nil {
		return err
	}
	if err := waitReply(ctx, reply); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case ce, ok := <-clientCh:
			if !ok {
				return nil
			}
			wireEv, err := toWireEvent(ce)
			if err != nil {
				return err
			}
			if err := stream.Send(wireEv); err != nil {
				return status.Errorf(codes.Internal, "stream send: %v", err)
			}
			if ce.Kind == domain.ClientEventRoomClosed {
				return nil
			}
		}
	}
}

// ShuffleRound submits a participant's layered-encrypted output for the
// current round (SPEC_FULL §4.5 ShuffleRound handler).
func (s *Server) ShuffleRound(ctx context.Context, req *pb.ShuffleRoundRequest) (*pb.ShuffleRoundResponse, error) {
	utxoID, roomID, err := s.authenticateRoomAccess(req.RoomAccessToken)
	if err != nil {
		return nil, err
	}
	mailbox, ok := s.registry.GetOrSpawn(ctx, roomID)
	if !ok {
		return nil, status.Error(codes.NotFound, "room not found")
	}

	reply := make(chan domain.Reply, 1)
	ev := domain.Event{
		Kind:          domain.EventShuffleRound,
		Participant:   utxoID,
		ShuffleOutput: req.EncodedOutputs,
		Reply:         reply,
	}
	if err := sendEvent(ctx, mailbox, ev); err != nil {
		return nil, err
	}
	if err := waitReply(ctx, reply); err != nil {
		return nil, err
	}
	return &pb.ShuffleRoundResponse{}, nil
}

// SignShuffleTx submits a participant's signature over the finalized
// output set (SPEC_FULL §4.5 SignedOutput handler).
func (s *Server) SignShuffleTx(ctx context.Context, req *pb.SignShuffleTxRequest) (*pb.SignShuffleTxResponse, error) {
	utxoID, roomID, err := s.authenticateRoomAccess(req.RoomAccessToken)
	if err != nil {
		return nil, err
	}
	mailbox, ok := s.registry.GetOrSpawn(ctx, roomID)
	if !ok {
		return nil, status.Error(codes.NotFound, "room not found")
	}

	reply := make(chan domain.Reply, 1)
	ev := domain.Event{
		Kind:        domain.EventSignedOutput,
		Participant: utxoID,
		Signature:   req.Signature,
		Reply:       reply,
	}
	if err := sendEvent(ctx, mailbox, ev); err != nil {
		return nil, err
	}
	if err := waitReply(ctx, reply); err != nil {
		return nil, err
	}
	return &pb.SignShuffleTxResponse{}, nil
}

func (s *Server) authenticateRoomAccess(token string) (domain.UTXOID, uuid.UUID, error) {
	claims, err := s.tokens.ValidateRoomAccess(token)
	if err != nil {
		return domain.UTXOID{}, uuid.Nil, mapTokenError(err)
	}
	utxoID, err := decodeHexUTXOID(claims.UTXOID)
	if err != nil {
		return domain.UTXOID{}, uuid.Nil, status.Error(codes.Internal, "corrupt token claims")
	}
	roomID, err := uuid.Parse(claims.RoomID)
	if err != nil {
		return domain.UTXOID{}, uuid.Nil, status.Error(codes.Internal, "corrupt token claims")
	}
	return utxoID, roomID, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, authn.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "token expired")
	case errors.Is(err, authn.ErrWrongTokenKind):
		return status.Error(codes.Unauthenticated, "wrong token kind for this endpoint")
	default:
		return status.Error(codes.Unauthenticated, "invalid token")
	}
}

func decodeUTXOID(raw []byte) (domain.UTXOID, error) {
	var id domain.UTXOID
	if len(raw) != len(id) {
		return id, fmt.Errorf("rpc: utxo_id must be %d bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

func decodeHexUTXOID(s string) (domain.UTXOID, error) {
	var id domain.UTXOID
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(id) {
		return id, fmt.Errorf("rpc: malformed utxo id claim %q", s)
	}
	copy(id[:], raw)
	return id, nil
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// toWireEvent converts a room actor's outbound ClientEvent into the wire
// ShuffleEvent shape.
func toWireEvent(ce domain.ClientEvent) (*pb.ShuffleEvent, error) {
	out := &pb.ShuffleEvent{Outputs: ce.Outputs}
	switch ce.Kind {
	case domain.ClientEventKeySet:
		out.Kind = pb.ShuffleEventKindKeySet
		out.Keys = make([]*pb.RSAPublicKey, 0, len(ce.Keys))
		for _, k := range ce.Keys {
			out.Keys = append(out.Keys, &pb.RSAPublicKey{Modulus: k.Modulus, Exponent: k.Exponent})
		}
		out.RoomAccessToken = ce.RoomAccessToken
	case domain.ClientEventYourTurn:
		out.Kind = pb.ShuffleEventKindYourTurn
	case domain.ClientEventRoundComplete:
		out.Kind = pb.ShuffleEventKindRoundComplete
	case domain.ClientEventRoomClosed:
		out.Kind = pb.ShuffleEventKindRoomClosed
	default:
		return nil, status.Errorf(codes.Internal, "rpc: unknown client event kind %d", ce.Kind)
	}
	return out, nil
}

// sendEvent delivers ev to a room's mailbox, mapping a full mailbox to
// Internal per SPEC_FULL §7's "bounded channel send failure is fatal for
// the affected request" taxonomy.
func sendEvent(ctx context.Context, mailbox chan<- domain.Event, ev domain.Event) error {
	select {
	case mailbox <- ev:
		return nil
	case <-ctx.Done():
		return status.FromContextError(ctx.Err()).Err()
	case <-time.After(mailboxSendTimeout):
		return status.Error(codes.Internal, "room mailbox is full")
	}
}

func waitReply(ctx context.Context, reply chan domain.Reply) error {
	select {
	case r, ok := <-reply:
		if !ok {
			return status.Error(codes.Internal, "room actor exited before replying")
		}
		if r.Err != nil {
			return mapDomainError(r.Err)
		}
		return nil
	case <-ctx.Done():
		return status.FromContextError(ctx.Err()).Err()
	}
}

// mapDomainError implements SPEC_FULL §7's error taxonomy mapping.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownUTXO):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrWrongTurn), errors.Is(err, domain.ErrAlreadySigned):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrRoomClosed), errors.Is(err, domain.ErrRoomNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Errorf(codes.Internal, "%v", err)
	}
}
