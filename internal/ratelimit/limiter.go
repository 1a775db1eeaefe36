// Package ratelimit enforces per-endpoint rate limits over gRPC,
// grounded on the teacher's internal/v1/ratelimit/limiter.go: the same
// ulule/limiter named-limiter-per-endpoint pattern and Redis-vs-memory
// store selection, adapted from Gin middleware to gRPC unary
// interceptors keyed on peer IP or UTXO owner address instead of a user
// subject claim.
package ratelimit

import (
	"context"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/logging"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/metrics"
)

// Limiter holds the per-endpoint rate limiter instances this coordinator
// enforces: JoinShuffleRoom by caller IP (unauthenticated, the endpoint a
// queue-flooding attacker would hit) and by UTXO owner address (so one
// owner can't monopolize a queue with many UTXOs faster than legitimate
// participants).
type Limiter struct {
	joinByIP    *limiter.Limiter
	joinByOwner *limiter.Limiter
}

// New builds a Limiter. ipRate/ownerRate are ulule/limiter formatted
// strings (e.g. "20-M" for 20 per minute). redisClient may be nil, in
// which case an in-process memory store is used — fine for a
// single-instance deployment, same fallback the teacher's NewRateLimiter
// takes when Redis is disabled.
func New(ipRate, ownerRate string, redisClient *redis.Client) (*Limiter, error) {
	ipr, err := limiter.NewRateFromFormatted(ipRate)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: invalid join-by-ip rate %q: %w", ipRate, err)
	}
	ownerr, err := limiter.NewRateFromFormatted(ownerRate)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: invalid join-by-owner rate %q: %w", ownerRate, err)
	}

	var store limiter.Store
	if redisClient != nil {
		store, err = sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "shuffle:ratelimit:"})
		if err != nil {
			return nil, fmt.Errorf("ratelimit: create redis store: %w", err)
		}
	} else {
		store = memory.NewStore()
	}

	return &Limiter{
		joinByIP:    limiter.New(store, ipr),
		joinByOwner: limiter.New(store, ownerr),
	}, nil
}

// JoinShuffleRoomInterceptor rate-limits the JoinShuffleRoom RPC by caller
// IP before authentication runs (there is no token yet at this endpoint),
// failing open on a limiter store error the same way the teacher's
// GlobalMiddleware does, since a store outage should not itself become a
// denial-of-service vector.
func (l *Limiter) JoinShuffleRoomInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if info.FullMethod != "/shuffle.v1.ShuffleService/JoinShuffleRoom" {
		return handler(ctx, req)
	}

	key := peerAddr(ctx)
	metrics.RateLimitRequests.WithLabelValues(info.FullMethod).Inc()

	result, err := l.joinByIP.Get(ctx, key)
	if err != nil {
		logging.Warn(ctx, "rate limiter store unavailable, failing open")
		return handler(ctx, req)
	}
	if result.Reached {
		metrics.RateLimitExceeded.WithLabelValues(info.FullMethod, "ip").Inc()
		return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded for %s, retry after %d", info.FullMethod, result.Reset)
	}
	return handler(ctx, req)
}

// CheckOwner enforces the per-owner join rate, called explicitly by the
// RPC façade once it has recovered the UTXO owner's address from the join
// signature (too late to be a generic interceptor, since the address isn't
// known until the handler has already decoded and verified the request).
func (l *Limiter) CheckOwner(ctx context.Context, owner [20]byte) error {
	key := fmt.Sprintf("%x", owner)
	result, err := l.joinByOwner.Get(ctx, key)
	if err != nil {
		logging.Warn(ctx, "rate limiter store unavailable, failing open")
		return nil
	}
	if result.Reached {
		metrics.RateLimitExceeded.WithLabelValues("JoinShuffleRoom", "owner").Inc()
		return status.Errorf(codes.ResourceExhausted, "rate limit exceeded for owner, retry after %d", result.Reset)
	}
	return nil
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr := p.Addr.String()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			return host
		}
		return addr
	}
	return "unknown"
}
