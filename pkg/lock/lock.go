// Package lock 提供按 key 的互斥锁：单实例用进程内锁，多实例部署用 Redis。
package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrNotAcquired = errors.New("lock: not acquired")

// Locker serializes work on a key. The returned func releases the lock and is
// safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// LocalLocker 进程内按 key 互斥
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localEntry)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.unref(key, e)
		})
	}, nil
}

func (l *LocalLocker) unref(key string, e *localEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// 仅当 value 仍是自己的 token 时才删除，防止误删其他实例续上的锁
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

const defaultTTL = 5 * time.Second

// RedisLocker 基于 SET NX PX 的分布式锁
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    atomic.Int64
	retry  time.Duration
}

func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	l := &RedisLocker{client: client, prefix: prefix, retry: 20 * time.Millisecond}
	l.SetTTL(ttl)
	return l
}

// SetTTL changes the expiry used by later Lock calls; locks already held keep
// their old expiry. Non-positive values fall back to the default.
func (l *RedisLocker) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	l.ttl.Store(int64(ttl))
}

func (l *RedisLocker) TTL() time.Duration {
	return time.Duration(l.ttl.Load())
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.New().String()
	ttl := l.TTL()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// 释放不跟随调用方 ctx，避免请求取消后锁残留到 TTL
			releaseScript.Run(context.Background(), l.client, []string{fullKey}, token)
		})
	}, nil
}
