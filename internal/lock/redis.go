package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"docqa/internal/contextutil"
)

const lockPrefix = "docqa:lock:"

// DefaultPollInterval is how often a blocked Lock retries SETNX.
const DefaultPollInterval = 50 * time.Millisecond

// RedisLocker implements Locker using Redis SETNX with TTL.
// Each acquisition stores a unique token so only its holder can release or extend it.
// While held, the TTL is renewed every ttl/3 so long writes keep the lock.
type RedisLocker struct {
	client            *redis.Client
	ttl               time.Duration
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	ownerID           string
	seq               atomic.Uint64
}

// NewRedisLocker creates a Redis-backed locker.
// ttl bounds how long a crashed holder can keep a source locked.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:            client,
		ttl:               ttl,
		pollInterval:      DefaultPollInterval,
		heartbeatInterval: ttl / 3,
		ownerID:           generateOwnerID(),
	}
}

// generateOwnerID creates a unique identifier for this process.
// Format: hostname:pid:random
func generateOwnerID() string {
	hostname, _ := os.Hostname()
	randomBytes := make([]byte, 8)
	_, _ = rand.Read(randomBytes)
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(randomBytes))
}

// Lock polls SETNX until it acquires name or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, name string) (func(), error) {
	key := lockPrefix + name
	token := fmt.Sprintf("%s:%d", l.ownerID, l.seq.Add(1))

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.heartbeat(ctx, name, key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// Release even when the caller's ctx is already cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.release(releaseCtx, key, token); err != nil {
				contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to release lock", "name", name, "error", err)
			}
		})
	}, nil
}

// heartbeat extends the lock TTL until stop is closed or the lock is lost.
func (l *RedisLocker) heartbeat(ctx context.Context, name, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if l.heartbeatInterval <= 0 {
		return
	}
	logger := contextutil.LoggerFromContext(ctx)

	ticker := time.NewTicker(l.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		extendCtx, cancel := context.WithTimeout(context.Background(), l.heartbeatInterval)
		err := l.extend(extendCtx, key, token)
		cancel()
		if errors.Is(err, ErrLockLost) {
			logger.ErrorContext(ctx, "lock expired while held", "name", name)
			return
		}
		if err != nil {
			// Retried on the next tick while the TTL lasts
			logger.WarnContext(ctx, "failed to extend lock", "name", name, "error", err)
		}
	}
}

// ErrLockLost is returned when a lock is no longer held by its acquirer.
var ErrLockLost = errors.New("lock not held")

// extendScript resets the TTL only if the key still holds our token.
var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

func (l *RedisLocker) extend(ctx context.Context, key, token string) error {
	result, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", key, err)
	}
	if result == 0 {
		return fmt.Errorf("extend lock %s: %w", key, ErrLockLost)
	}
	return nil
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	_, err := releaseScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
