package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/metrics"
)

// drainIfFullScript atomically pops exactly n entries from the list at
// KEYS[1] if and only if its length is already >= n, returning the popped
// entries or an empty array otherwise. Draining must be atomic across
// concurrent callers, which a separate LLEN+LPOP pair is not.
const drainIfFullScript = `
local len = redis.call('LLEN', KEYS[1])
if len < tonumber(ARGV[1]) then
  return {}
end
local out = {}
for i = 1, tonumber(ARGV[1]) do
  out[i] = redis.call('LPOP', KEYS[1])
end
return out
`

// Redis is a multi-instance implementation of domain.Storage, grounded on
// the teacher's internal/v1/bus.Service: a *redis.Client wrapped in a
// gobreaker.CircuitBreaker, with nil-receiver-safe graceful degradation so
// a coordinator can run with Redis down in degraded (single-instance-only)
// mode rather than crash.
type Redis struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
	drain  *redis.Script
}

func NewRedis(addr, password string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("storage: connect to redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
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
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateVal)
		},
	}

	return &Redis{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
		drain:  redis.NewScript(drainIfFullScript),
	}, nil
}

func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.client == nil {
		return nil
	}
	_, err := r.cb.Execute(func() (any, error) {
		return nil, r.client.Ping(ctx).Err()
	})
	return degrade(err, "ping")
}

func queueRedisKey(key domain.QueueKey) string {
	amt := "0"
	if key.Amount != nil {
		amt = key.Amount.String()
	}
	return fmt.Sprintf("shuffle:queue:%x:%s", key.Token, amt)
}

func roomRedisKey(id uuid.UUID) string {
	return "shuffle:room:" + id.String()
}

func participantRedisKey(id domain.UTXOID) string {
	return fmt.Sprintf("shuffle:participant:%x", id)
}

// degrade maps a circuit-breaker-open error to a nil error for operations
// where the caller can tolerate silently skipping persistence (graceful
// degradation, matching bus.Service); other errors are wrapped and
// returned to the caller.
func degrade(err error, op string) error {
	if err == nil {
		return nil
	}
	if err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
		metrics.RedisOperationsTotal.WithLabelValues(op, "circuit_open").Inc()
		return nil
	}
	metrics.RedisOperationsTotal.WithLabelValues(op, "error").Inc()
	return fmt.Errorf("storage: redis %s: %w", op, err)
}

func (r *Redis) PushQueue(ctx context.Context, key domain.QueueKey, utxo domain.UTXOID) error {
	if r == nil || r.client == nil {
		return nil
	}
	start := time.Now()
	_, err := r.cb.Execute(func() (any, error) {
		return nil, r.client.RPush(ctx, queueRedisKey(key), utxo[:]).Err()
	})
	metrics.RedisOperationDuration.WithLabelValues("push_queue").Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.RedisOperationsTotal.WithLabelValues("push_queue", "ok").Inc()
	}
	return degrade(err, "push_queue")
}

func (r *Redis) DrainQueue(ctx context.Context, key domain.QueueKey, n int) ([]domain.UTXOID, bool, error) {
	if r == nil || r.client == nil {
		return nil, false, nil
	}
	start := time.Now()
	res, err := r.cb.Execute(func() (any, error) {
		return r.drain.Run(ctx, r.client, []string{queueRedisKey(key)}, n).Result()
	})
	metrics.RedisOperationDuration.WithLabelValues("drain_queue").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, false, degrade(err, "drain_queue")
	}
	metrics.RedisOperationsTotal.WithLabelValues("drain_queue", "ok").Inc()

	raw, ok := res.([]any)
	if !ok || len(raw) == 0 {
		return nil, false, nil
	}
	ids := make([]domain.UTXOID, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok || len(s) != 32 {
			return nil, false, fmt.Errorf("storage: unexpected drain element %v", v)
		}
		var id domain.UTXOID
		copy(id[:], s)
		ids = append(ids, id)
	}
	return ids, true, nil
}

func (r *Redis) QueueLen(ctx context.Context, key domain.QueueKey) (int, error) {
	if r == nil || r.client == nil {
		return 0, nil
	}
	res, err := r.cb.Execute(func() (any, error) {
		return r.client.LLen(ctx, queueRedisKey(key)).Result()
	})
	if err != nil {
		return 0, degrade(err, "queue_len")
	}
	return int(res.(int64)), nil
}

func (r *Redis) InsertRoom(ctx context.Context, room *domain.Room) error {
	if r == nil || r.client == nil {
		return nil
	}
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("storage: marshal room: %w", err)
	}
	_, err = r.cb.Execute(func() (any, error) {
		return nil, r.client.Set(ctx, roomRedisKey(room.ID), data, 0).Err()
	})
	return degrade(err, "insert_room")
}

func (r *Redis) GetRoom(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	if r == nil || r.client == nil {
		return nil, domain.ErrRoomNotFound
	}
	res, err := r.cb.Execute(func() (any, error) {
		return r.client.Get(ctx, roomRedisKey(id)).Result()
	})
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrRoomNotFound
		}
		if err := degrade(err, "get_room"); err != nil {
			return nil, err
		}
		return nil, domain.ErrRoomNotFound
	}
	var room domain.Room
	if err := json.Unmarshal([]byte(res.(string)), &room); err != nil {
		return nil, fmt.Errorf("storage: unmarshal room: %w", err)
	}
	return &room, nil
}

func (r *Redis) UpdateRoomRound(ctx context.Context, id uuid.UUID, round domain.RoundState) error {
	room, err := r.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	room.Round = round
	return r.InsertRoom(ctx, room)
}

func (r *Redis) InsertParticipant(ctx context.Context, p *domain.Participant) error {
	if r == nil || r.client == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("storage: marshal participant: %w", err)
	}
	_, err = r.cb.Execute(func() (any, error) {
		return nil, r.client.Set(ctx, participantRedisKey(p.UTXOID), data, 0).Err()
	})
	return degrade(err, "insert_participant")
}

func (r *Redis) GetParticipant(ctx context.Context, id domain.UTXOID) (*domain.Participant, error) {
	if r == nil || r.client == nil {
		return nil, domain.ErrUnknownUTXO
	}
	res, err := r.cb.Execute(func() (any, error) {
		return r.client.Get(ctx, participantRedisKey(id)).Result()
	})
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrUnknownUTXO
		}
		if err := degrade(err, "get_participant"); err != nil {
			return nil, err
		}
		return nil, domain.ErrUnknownUTXO
	}
	var p domain.Participant
	if err := json.Unmarshal([]byte(res.(string)), &p); err != nil {
		return nil, fmt.Errorf("storage: unmarshal participant: %w", err)
	}
	return &p, nil
}

func (r *Redis) UpdateParticipantRoom(ctx context.Context, id domain.UTXOID, roomID uuid.UUID) error {
	p, err := r.GetParticipant(ctx, id)
	if err != nil {
		return err
	}
	p.RoomID = roomID
	return r.InsertParticipant(ctx, p)
}

var _ domain.Storage = (*Redis)(nil)
