package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/iptv-reseller-automation/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LeaderLockPrefix namespaces scheduler job locks in redis
const LeaderLockPrefix = "iptv:scheduler:"

// ErrLeaseLost is returned by Extend once the lock expired or moved to another holder
var ErrLeaseLost = errors.New("leader lease lost")

// Lease is a held leader lock
type Lease interface {
	// Extend moves the expiry to now+ttl while the lease is still ours
	Extend(ctx context.Context, ttl time.Duration) error
	Release()
}

// LeaderLock guarantees a job runs on one instance at a time
type LeaderLock interface {
	// TryAcquire returns ok=false without error when another holder owns the lock
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (lease Lease, ok bool, err error)
}

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript refreshes the ttl only while the key still holds our token
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLeaderLock implements LeaderLock with SET NX PX
type RedisLeaderLock struct {
	client redis.UniversalClient
}

func NewRedisLeaderLock(client redis.UniversalClient) *RedisLeaderLock {
	return &RedisLeaderLock{client: client}
}

func (l *RedisLeaderLock) TryAcquire(ctx context.Context, name string, ttl time.Duration) (Lease, bool, error) {
	key := LeaderLockPrefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire leader lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{client: l.client, key: key, token: token}, true, nil
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to extend leader lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (l *redisLease) Release() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

// LocalLeaderLock is an in-process lock used when redis is disabled or unreachable.
// Entries expire after their ttl like the redis keys do.
type LocalLeaderLock struct {
	mu    sync.Mutex
	held  map[string]localHold
	clock func() time.Time
}

type localHold struct {
	token string
	until time.Time
}

func NewLocalLeaderLock() *LocalLeaderLock {
	return &LocalLeaderLock{held: make(map[string]localHold), clock: utils.UTCNow}
}

func (l *LocalLeaderLock) TryAcquire(_ context.Context, name string, ttl time.Duration) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	for k, h := range l.held {
		if !h.until.After(now) {
			delete(l.held, k)
		}
	}
	if _, ok := l.held[name]; ok {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.held[name] = localHold{token: token, until: now.Add(ttl)}
	return &localLease{lock: l, name: name, token: token}, true, nil
}

type localLease struct {
	lock  *LocalLeaderLock
	name  string
	token string
}

func (l *localLease) Extend(_ context.Context, ttl time.Duration) error {
	l.lock.mu.Lock()
	defer l.lock.mu.Unlock()
	now := l.lock.clock()
	h, ok := l.lock.held[l.name]
	if !ok || h.token != l.token || !h.until.After(now) {
		return ErrLeaseLost
	}
	h.until = now.Add(ttl)
	l.lock.held[l.name] = h
	return nil
}

func (l *localLease) Release() {
	l.lock.mu.Lock()
	defer l.lock.mu.Unlock()
	if h, ok := l.lock.held[l.name]; ok && h.token == l.token {
		delete(l.lock.held, l.name)
	}
}
