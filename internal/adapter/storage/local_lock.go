package storage

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is a per-item mutex for a single process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[int64]*itemLock
}

type itemLock struct {
	held chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[int64]*itemLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, itemID int64) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[itemID]
	if !ok {
		lock = &itemLock{held: make(chan struct{}, 1)}
		l.locks[itemID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.held <- struct{}{}:
	case <-ctx.Done():
		l.release(itemID, lock)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lock.held
			l.release(itemID, lock)
		})
	}, nil
}

func (l *LocalLocker) release(itemID int64, lock *itemLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, itemID)
	}
}

const pruneThreshold = 4096

// LocalIdempotency keeps idempotency keys in memory until they expire.
type LocalIdempotency struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	keys map[string]time.Time
}

func NewLocalIdempotency(ttl time.Duration) *LocalIdempotency {
	if ttl <= 0 {
		ttl = idempotencyKeyTTL
	}
	return &LocalIdempotency{
		ttl:  ttl,
		now:  time.Now,
		keys: make(map[string]time.Time),
	}
}

func (s *LocalIdempotency) SetIdempotency(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expires, ok := s.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	if len(s.keys) >= pruneThreshold {
		for k, expires := range s.keys {
			if !now.Before(expires) {
				delete(s.keys, k)
			}
		}
	}
	s.keys[key] = now.Add(s.ttl)
	return true, nil
}

func (s *LocalIdempotency) ClearIdempotency(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}
