// Package chain implements domain.ChainConnector: the read/write boundary
// to the chain this coordinator shuffles UTXOs on.
package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/metrics"
)

// GobreakerConnector wraps any domain.ChainConnector with a circuit
// breaker, grounded on the teacher's pkg/sfu.SFUClient: the same
// gobreaker.Settings shape, the same "map breaker-open to
// codes.Unavailable" error translation, and the same per-service
// CircuitBreakerState/CircuitBreakerFailures metric labels (labeled "chain"
// instead of "rust-sfu").
type GobreakerConnector struct {
	inner domain.ChainConnector
	cb    *gobreaker.CircuitBreaker
}

func NewGobreakerConnector(inner domain.ChainConnector) *GobreakerConnector {
	st := gobreaker.Settings{
		Name:        "chain",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("chain").Set(stateVal)
		},
	}
	return &GobreakerConnector{inner: inner, cb: gobreaker.NewCircuitBreaker(st)}
}

func (c *GobreakerConnector) LookupUTXO(ctx context.Context, id domain.UTXOID) (*domain.UTXO, error) {
	resp, err := c.cb.Execute(func() (any, error) {
		return c.inner.LookupUTXO(ctx, id)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("chain").Inc()
			metrics.ChainConnectorCalls.WithLabelValues("lookup_utxo", "breaker_open").Inc()
			return nil, status.Error(codes.Unavailable, "chain connector circuit breaker open")
		}
		metrics.ChainConnectorCalls.WithLabelValues("lookup_utxo", "error").Inc()
		return nil, err
	}
	metrics.ChainConnectorCalls.WithLabelValues("lookup_utxo", "ok").Inc()
	return resp.(*domain.UTXO), nil
}

func (c *GobreakerConnector) SubmitTransaction(ctx context.Context, inputs []*big.Int, outputs [][]byte) ([32]byte, error) {
	resp, err := c.cb.Execute(func() (any, error) {
		return c.inner.SubmitTransaction(ctx, inputs, outputs)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("chain").Inc()
			metrics.ChainConnectorCalls.WithLabelValues("submit_transaction", "breaker_open").Inc()
			return [32]byte{}, status.Error(codes.Unavailable, "chain connector circuit breaker open")
		}
		metrics.ChainConnectorCalls.WithLabelValues("submit_transaction", "error").Inc()
		return [32]byte{}, err
	}
	metrics.ChainConnectorCalls.WithLabelValues("submit_transaction", "ok").Inc()
	return resp.([32]byte), nil
}

var _ domain.ChainConnector = (*GobreakerConnector)(nil)

// Memory is an in-memory domain.ChainConnector for tests, seeded directly
// with the UTXOs it should report as present.
type Memory struct {
	utxos  map[domain.UTXOID]*domain.UTXO
	submit func(ctx context.Context, inputs []*big.Int, outputs [][]byte) ([32]byte, error)
}

func NewMemory() *Memory {
	return &Memory{utxos: make(map[domain.UTXOID]*domain.UTXO)}
}

func (m *Memory) Seed(u *domain.UTXO) {
	m.utxos[u.ID] = u
}

func (m *Memory) OnSubmit(fn func(ctx context.Context, inputs []*big.Int, outputs [][]byte) ([32]byte, error)) {
	m.submit = fn
}

// LookupUTXO returns (nil, nil), not an error, when id is unseeded: absence
// on the chain is not itself a failure.
func (m *Memory) LookupUTXO(_ context.Context, id domain.UTXOID) (*domain.UTXO, error) {
	u, ok := m.utxos[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	if cp.Amount != nil {
		cp.Amount = new(big.Int).Set(cp.Amount)
	}
	return &cp, nil
}

func (m *Memory) SubmitTransaction(ctx context.Context, inputs []*big.Int, outputs [][]byte) ([32]byte, error) {
	if m.submit != nil {
		return m.submit(ctx, inputs, outputs)
	}
	return [32]byte{}, nil
}

var _ domain.ChainConnector = (*Memory)(nil)
