package locker

import (
	"context"
	"sync"

	"github.com/pandodao/token-bridge/core"
	"golang.org/x/sync/semaphore"
)

func New() core.Locker {
	return &locker{entries: map[string]*entry{}}
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

type locker struct {
	mux     sync.Mutex
	entries map[string]*entry
}

func (l *locker) acquire(key string) *entry {
	l.mux.Lock()
	defer l.mux.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}

	e.refs++
	return e
}

func (l *locker) release(key string, e *entry) {
	l.mux.Lock()
	defer l.mux.Unlock()

	if e.refs--; e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *locker) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquire(key)
	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.release(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.release(key, e)
		})
	}, nil
}
