package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy is returned when another holder keeps the lock past the wait budget.
var ErrLockBusy = errors.New("ticket lock is held by another request")

const lockPollInterval = 25 * time.Millisecond

// ReleaseFunc gives a lock back.
type ReleaseFunc func(ctx context.Context) error

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisTicketLocker serializes mutations of one ticket across service instances.
type RedisTicketLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisTicketLocker builds a locker whose leases expire after ttl.
func NewRedisTicketLocker(client *redis.Client, prefix string, ttl, wait time.Duration) *RedisTicketLocker {
	return &RedisTicketLocker{client: client, prefix: prefix, ttl: ttl, wait: wait}
}

// Acquire takes the lock for key, polling until the wait budget is spent.
func (l *RedisTicketLocker) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	redisKey := l.prefix + key
	token := uuid.NewString()
	err := pollUntil(ctx, l.wait, func() (bool, error) {
		return l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	})
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
	}, nil
}

// LocalTicketLocker is the single-process fallback used without Redis.
type LocalTicketLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
	wait time.Duration
}

// NewLocalTicketLocker returns an in-process locker.
func NewLocalTicketLocker(wait time.Duration) *LocalTicketLocker {
	return &LocalTicketLocker{held: make(map[string]struct{}), wait: wait}
}

// Acquire takes the lock for key, polling until the wait budget is spent.
func (l *LocalTicketLocker) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	err := pollUntil(ctx, l.wait, func() (bool, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, busy := l.held[key]; busy {
			return false, nil
		}
		l.held[key] = struct{}{}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

func pollUntil(ctx context.Context, wait time.Duration, try func() (bool, error)) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrLockBusy
		}
		timer := time.NewTimer(lockPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
