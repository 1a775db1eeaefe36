package room

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/chain"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func threeParticipants() []domain.Participant {
	return []domain.Participant{
		{UTXOID: domain.UTXOID{0x01}},
		{UTXOID: domain.UTXOID{0x02}},
		{UTXOID: domain.UTXOID{0x03}},
	}
}

func newTestActor(t *testing.T, deadline time.Duration) (*Actor, *chain.Memory) {
	t.Helper()
	fake := chain.NewMemory()
	store := storage.NewMemory()
	mint := func(domain.UTXOID) (string, error) { return "room-access-token", nil }
	a := New(uuid.New(), domain.QueueKey{}, threeParticipants(), store, fake, deadline, mint, nil)
	return a, fake
}

func connect(t *testing.T, a *Actor, id domain.UTXOID, key *domain.RSAPublicKey) chan domain.ClientEvent {
	t.Helper()
	stream := make(chan domain.ClientEvent, 8)
	reply := make(chan domain.Reply, 1)
	done := a.handle(context.Background(), domain.Event{
		Kind:         domain.EventConnect,
		Participant:  id,
		ClientStream: stream,
		RSAPubKey:    key,
		Reply:        reply,
	})
	require.False(t, done, "connect should never end the room")
	r := <-reply
	require.NoError(t, r.Err)
	return stream
}

func drainNonBlocking(ch chan domain.ClientEvent) []domain.ClientEvent {
	var out []domain.ClientEvent
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestKeyDistributionWaitsForAllParticipants(t *testing.T) {
	a, _ := newTestActor(t, time.Hour)
	k1 := &domain.RSAPublicKey{Modulus: []byte{1}, Exponent: []byte{1}}
	k2 := &domain.RSAPublicKey{Modulus: []byte{2}, Exponent: []byte{1}}

	s1 := connect(t, a, domain.UTXOID{0x01}, k1)
	assert.Empty(t, drainNonBlocking(s1), "expected no events before all keys in")

	connect(t, a, domain.UTXOID{0x02}, k2)
	assert.Equal(t, domain.RoundPending, a.round, "expected round still pending with one key missing")
}

func TestKeyDistributionOrderIsDecodingFirst(t *testing.T) {
	a, _ := newTestActor(t, time.Hour)
	k1 := &domain.RSAPublicKey{Modulus: []byte{0x11}, Exponent: []byte{1}}
	k2 := &domain.RSAPublicKey{Modulus: []byte{0x22}, Exponent: []byte{1}}
	k3 := &domain.RSAPublicKey{Modulus: []byte{0x33}, Exponent: []byte{1}}

	s1 := connect(t, a, domain.UTXOID{0x01}, k1)
	s2 := connect(t, a, domain.UTXOID{0x02}, k2)
	s3 := connect(t, a, domain.UTXOID{0x03}, k3)

	require.Equal(t, domain.RoundCollectingOutputs, a.round, "expected round to advance once all keys in")

	ev1 := drainNonBlocking(s1)
	require.Len(t, ev1, 2, "expected participant 0 to get KeySet then YourTurn")
	assert.Equal(t, domain.ClientEventKeySet, ev1[0].Kind)
	require.Len(t, ev1[0].Keys, 2, "participant 0 should receive 2 keys (participants 2 and 1)")
	assert.Equal(t, k3.Modulus, ev1[0].Keys[0].Modulus, "expected decoding-first order: last participant's key first")
	assert.Equal(t, k2.Modulus, ev1[0].Keys[1].Modulus, "expected second key to belong to participant 1")
	assert.Equal(t, domain.ClientEventYourTurn, ev1[1].Kind, "expected participant 0 (first in turn order) to be told YourTurn")

	ev2 := drainNonBlocking(s2)
	require.Len(t, ev2, 1)
	assert.Equal(t, domain.ClientEventKeySet, ev2[0].Kind)
	require.Len(t, ev2[0].Keys, 1, "participant 1 should receive exactly participant 2's key")
	assert.Equal(t, k3.Modulus, ev2[0].Keys[0].Modulus)

	ev3 := drainNonBlocking(s3)
	require.Len(t, ev3, 1)
	assert.Empty(t, ev3[0].Keys, "last participant has nobody to decode for")
}

func TestShuffleRoundEnforcesTurnOrder(t *testing.T) {
	a, _ := newTestActor(t, time.Hour)
	k := &domain.RSAPublicKey{Modulus: []byte{1}, Exponent: []byte{1}}
	s1 := connect(t, a, domain.UTXOID{0x01}, k)
	s2 := connect(t, a, domain.UTXOID{0x02}, k)
	connect(t, a, domain.UTXOID{0x03}, k)
	drainNonBlocking(s1)
	drainNonBlocking(s2)

	require.Equal(t, domain.RoundCollectingOutputs, a.round)

	reply := make(chan domain.Reply, 1)
	a.handle(context.Background(), domain.Event{
		Kind:        domain.EventShuffleRound,
		Participant: domain.UTXOID{0x02},
		Reply:       reply,
	})
	r := <-reply
	assert.Equal(t, domain.ErrWrongTurn, r.Err)
}

func TestShuffleRoundAdvancesToSignaturesAfterLastHop(t *testing.T) {
	a, _ := newTestActor(t, time.Hour)
	k := &domain.RSAPublicKey{Modulus: []byte{1}, Exponent: []byte{1}}
	s1 := connect(t, a, domain.UTXOID{0x01}, k)
	s2 := connect(t, a, domain.UTXOID{0x02}, k)
	s3 := connect(t, a, domain.UTXOID{0x03}, k)
	drainNonBlocking(s1)
	drainNonBlocking(s2)
	drainNonBlocking(s3)

	submit := func(id domain.UTXOID, outputs [][]byte) {
		reply := make(chan domain.Reply, 1)
		a.handle(context.Background(), domain.Event{
			Kind:          domain.EventShuffleRound,
			Participant:   id,
			ShuffleOutput: outputs,
			Reply:         reply,
		})
		r := <-reply
		require.NoError(t, r.Err)
	}

	submit(domain.UTXOID{0x01}, [][]byte{[]byte("layer-1-out-a"), []byte("layer-1-out-b")})
	submit(domain.UTXOID{0x02}, [][]byte{[]byte("layer-2-out-a"), []byte("layer-2-out-b")})
	submit(domain.UTXOID{0x03}, [][]byte{[]byte("layer-3-out-a"), []byte("layer-3-out-b")})

	require.Equal(t, domain.RoundCollectingSignatures, a.round)
	for _, s := range []chan domain.ClientEvent{s1, s2, s3} {
		evs := drainNonBlocking(s)
		found := false
		for _, e := range evs {
			if e.Kind == domain.ClientEventRoundComplete {
				found = true
			}
		}
		assert.True(t, found, "expected every participant to be told the round completed")
	}
}

func TestSignedOutputRejectsDoubleSignature(t *testing.T) {
	a, _ := newTestActor(t, time.Hour)
	a.round = domain.RoundCollectingSignatures
	a.participants[0].Signature = []byte("sig-1")

	reply := make(chan domain.Reply, 1)
	a.handle(context.Background(), domain.Event{
		Kind:        domain.EventSignedOutput,
		Participant: domain.UTXOID{0x01},
		Signature:   []byte("sig-1-again"),
		Reply:       reply,
	})
	r := <-reply
	assert.Equal(t, domain.ErrAlreadySigned, r.Err)
}

func TestSignedOutputSubmitsOnceAllSigned(t *testing.T) {
	a, fake := newTestActor(t, time.Hour)
	a.round = domain.RoundCollectingSignatures
	a.finalOutputs = [][]byte{[]byte("final-out-a"), []byte("final-out-b")}

	var submittedInputs []*big.Int
	var submittedOutputs [][]byte
	fake.OnSubmit(func(_ context.Context, inputs []*big.Int, outputs [][]byte) ([32]byte, error) {
		submittedInputs = inputs
		submittedOutputs = outputs
		return [32]byte{0xAA}, nil
	})

	sign := func(id domain.UTXOID, sig []byte) bool {
		reply := make(chan domain.Reply, 1)
		done := a.handle(context.Background(), domain.Event{
			Kind:        domain.EventSignedOutput,
			Participant: id,
			Signature:   sig,
			Reply:       reply,
		})
		r := <-reply
		require.NoError(t, r.Err)
		return done
	}

	assert.False(t, sign(domain.UTXOID{0x01}, []byte("sig-1")), "should not finish with one of three signatures")
	assert.False(t, sign(domain.UTXOID{0x02}, []byte("sig-2")), "should not finish with two of three signatures")
	assert.True(t, sign(domain.UTXOID{0x03}, []byte("sig-3")), "expected the room to finish once all three have signed")

	assert.Equal(t, domain.RoundComplete, a.round)
	require.Len(t, submittedInputs, 3, "expected one chain input per participant")
	for i, p := range threeParticipants() {
		assert.Equal(t, new(big.Int).SetBytes(p.UTXOID[:]), submittedInputs[i])
	}
	assert.Equal(t, a.finalOutputs, submittedOutputs)
}

func TestUnknownParticipantRejectedOnConnect(t *testing.T) {
	a, _ := newTestActor(t, time.Hour)
	reply := make(chan domain.Reply, 1)
	a.handle(context.Background(), domain.Event{
		Kind:        domain.EventConnect,
		Participant: domain.UTXOID{0xFF},
		Reply:       reply,
	})
	r := <-reply
	assert.Equal(t, domain.ErrUnknownUTXO, r.Err)
}

func TestRunExpiresRoomAfterDeadline(t *testing.T) {
	a, _ := newTestActor(t, 20*time.Millisecond)
	k := &domain.RSAPublicKey{Modulus: []byte{1}, Exponent: []byte{1}}
	s1 := connect(t, a, domain.UTXOID{0x01}, k)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected Run to return after the round deadline elapsed")
	}

	found := false
	for _, ev := range drainNonBlocking(s1) {
		if ev.Kind == domain.ClientEventRoomClosed {
			found = true
		}
	}
	assert.True(t, found, "expected the connected participant to be told the room closed")
}
