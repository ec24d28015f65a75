package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pendingMarker = "pending"

type State int

const (
	// StateReserved means the caller now owns the key and should place the order.
	StateReserved State = iota
	// StateInFlight means another request holds the key and has not finished.
	StateInFlight
	// StateCompleted means the key is bound to an existing order.
	StateCompleted
)

func InitRedis(addr string, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	if err := redisotel.InstrumentTracing(rdb); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", addr))
	return rdb, nil
}

// Store binds Idempotency-Key values to order ids in Redis.
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func redisKey(userID, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", userID, key)
}

// Reserve claims key for userID. When the key is already completed the bound
// order id is returned.
func (s *Store) Reserve(ctx context.Context, userID, key string) (State, int64, error) {
	k := redisKey(userID, key)

	ok, err := s.rdb.SetNX(ctx, k, pendingMarker, s.ttl).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return StateReserved, 0, nil
	}

	val, err := s.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		ok, err = s.rdb.SetNX(ctx, k, pendingMarker, s.ttl).Result()
		if err != nil {
			return 0, 0, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if ok {
			return StateReserved, 0, nil
		}
		return StateInFlight, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read idempotency key: %w", err)
	}
	if val == pendingMarker {
		return StateInFlight, 0, nil
	}

	orderID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("corrupt idempotency key %s: %w", k, err)
	}
	return StateCompleted, orderID, nil
}

// Complete binds key to orderID for the rest of the TTL.
func (s *Store) Complete(ctx context.Context, userID, key string, orderID int64) error {
	return s.rdb.Set(ctx, redisKey(userID, key), strconv.FormatInt(orderID, 10), s.ttl).Err()
}

// Release drops a reservation that never produced an order so the caller can retry.
func (s *Store) Release(ctx context.Context, userID, key string) error {
	return s.rdb.Del(ctx, redisKey(userID, key)).Err()
}
