// Package locks serializes work on a single entity across goroutines and,
// with Redis, across processes.
package locks

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotAcquired is returned by TryAcquire when another holder owns the key.
var ErrNotAcquired = errors.New("locks: not acquired")

// Locker hands out exclusive, expiring locks by key. The returned release
// func is safe to call more than once.
type Locker interface {
	// Acquire waits until the lock is free or ctx is done.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
	// TryAcquire returns ErrNotAcquired instead of waiting.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// ClientKey is the lock key for every write to one client's record.
func ClientKey(id string) string { return "client:" + id }

// ClientEmailKey guards creation of a client with email. Holders that go on
// to write the record take ClientKey afterwards, never before.
func ClientEmailKey(email string) string { return "client-email:" + email }

// AppointmentKey is the lock key for one appointment.
func AppointmentKey(id string) string { return "appointment:" + id }

// SweepKey guards the reminder sweep.
const SweepKey = "reminders:sweep"

// Local is an in-process Locker. TTLs are not enforced; a lock is held until
// released.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	s := l.ref(key)
	select {
	case s.ch <- struct{}{}:
		return l.releaser(key, s), nil
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
}

func (l *Local) TryAcquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	s := l.ref(key)
	select {
	case s.ch <- struct{}{}:
		return l.releaser(key, s), nil
	default:
		l.unref(key, s)
		return nil, ErrNotAcquired
	}
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *Local) releaser(key string, s *slot) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}
}
