package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/metrics"
)

// Locker serializes writers of the same products. Acquire takes every lock
// in ascending id order and waits at most the configured bound.
type Locker interface {
	Acquire(ctx context.Context, productIDs []uuid.UUID) (release func(), err error)
}

// LocalLocker guards products inside one process.
type LocalLocker struct {
	mu      sync.Mutex
	slots   map[uuid.UUID]chan struct{}
	wait    time.Duration
	metrics *metrics.EngineMetrics
}

// NewLocalLocker builds an in-process locker.
func NewLocalLocker(wait time.Duration, m *metrics.EngineMetrics) *LocalLocker {
	return &LocalLocker{
		slots:   make(map[uuid.UUID]chan struct{}),
		wait:    wait,
		metrics: m,
	}
}

func (l *LocalLocker) slot(id uuid.UUID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[id] = ch
	}
	return ch
}

func (l *LocalLocker) Acquire(ctx context.Context, productIDs []uuid.UUID) (func(), error) {
	ctx, cancel := withWait(ctx, l.wait)
	defer cancel()

	start := time.Now()
	held := make([]chan struct{}, 0, len(productIDs))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, id := range lockOrder(productIDs) {
		slot := l.slot(id)
		select {
		case slot <- struct{}{}:
			held = append(held, slot)
		case <-ctx.Done():
			release()
			l.metrics.IncStockConflict(metrics.ConflictLockTimeout)
			return nil, lockWaitError(id, ctx.Err())
		}
	}
	l.metrics.ObserveLockWait("local", time.Since(start))
	return release, nil
}

// RedisLocker guards products across processes with redislock.
type RedisLocker struct {
	client  *redislock.Client
	keyFor  func(id uuid.UUID) string
	owner   string
	ttl     time.Duration
	wait    time.Duration
	retry   time.Duration
	metrics *metrics.EngineMetrics
}

type lockKeyer interface {
	LockKey(kind, id string) string
	Scripter() redis.Scripter
}

// NewRedisLocker wires redislock against the shared redis client.
func NewRedisLocker(store lockKeyer, owner string, ttl, wait time.Duration, m *metrics.EngineMetrics) (*RedisLocker, error) {
	if store == nil || store.Scripter() == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive")
	}
	return &RedisLocker{
		client: redislock.New(store.Scripter()),
		keyFor: func(id uuid.UUID) string {
			return store.LockKey("product", id.String())
		},
		owner:   owner,
		ttl:     ttl,
		wait:    wait,
		retry:   25 * time.Millisecond,
		metrics: m,
	}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, productIDs []uuid.UUID) (func(), error) {
	waitCtx, cancel := withWait(ctx, l.wait)
	defer cancel()

	start := time.Now()
	held := make([]*redislock.Lock, 0, len(productIDs))
	release := func() {
		// Released on a fresh context so a cancelled request still frees its keys.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Release(releaseCtx)
		}
	}

	opts := &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
		Metadata:      ":" + l.owner,
	}
	for _, id := range lockOrder(productIDs) {
		lock, err := l.client.Obtain(waitCtx, l.keyFor(id), l.ttl, opts)
		if err != nil {
			release()
			if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
				l.metrics.IncStockConflict(metrics.ConflictLockTimeout)
				return nil, lockWaitError(id, context.DeadlineExceeded)
			}
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "obtain product lock")
		}
		held = append(held, lock)
	}
	l.metrics.ObserveLockWait("redis", time.Since(start))
	return release, nil
}

func withWait(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, wait)
}

// lockOrder dedupes ids and sorts them so concurrent callers never deadlock.
func lockOrder(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

func lockWaitError(id uuid.UUID, cause error) error {
	if errors.Is(cause, context.Canceled) {
		return cause
	}
	return pkgerrors.Wrap(pkgerrors.CodeTimeout, cause, "timed out waiting for product lock").
		WithDetails(map[string]any{"product_id": id.String()})
}
