package lock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockTimeout = errors.New("获取锁超时")
	ErrLockLost    = errors.New("锁在释放前已失效")
)

// Locker 为某个键提供互斥访问，返回的 unlock 必须被调用
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedMutex 是进程内的按键互斥锁，适用于单实例部署和测试
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, errors.Join(ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			m.release(key, e)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, e *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}

// 只有持有者才能删除锁
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker 基于 SET NX PX 实现跨实例的互斥锁
type RedisLocker struct {
	rdb        *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		rdb:        rdb,
		ttl:        ttl,
		retryDelay: 20 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	key = "lock_" + key
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrLockTimeout, ctx.Err())
			}
			return nil, err
		}
		if ok {
			break
		}

		select {
		case <-time.After(l.retryDelay):
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		}
	}

	// 持有期间定期续期，临界区耗时超过 ttl 时锁也不会被别的实例抢走
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(stop, l.ttl/3, func() (bool, error) {
			return l.extend(key, token)
		}, func(err error) {
			slog.Warn("续期锁失败", slog.String("key", key), slog.String("error", err.Error()))
		})
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// 释放锁不应受调用方 ctx 取消的影响
			releaseCtx, cancel := context.WithTimeout(context.Background(), l.ttl)
			defer cancel()
			_ = unlockScript.Run(releaseCtx, l.rdb, []string{key}, token).Err()
		})
	}, nil
}

// 只有持有者才能续期
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

func (l *RedisLocker) extend(key, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
	defer cancel()

	n, err := extendScript.Run(ctx, l.rdb, []string{key}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// keepAlive 每隔 interval 调用一次 extend，直到 stop 被关闭
// extend 出错时通过 onErr 报告并继续重试；extend 返回 false 说明锁已不属于自己，报告 ErrLockLost 后退出
func keepAlive(stop <-chan struct{}, interval time.Duration, extend func() (bool, error), onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ok, err := extend()
			if err != nil {
				onErr(err)
				continue
			}
			if !ok {
				onErr(ErrLockLost)
				return
			}
		}
	}
}
