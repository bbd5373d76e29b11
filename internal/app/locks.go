package app

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// propertyLocks serialises operations per property. Entries are dropped once
// no holder or waiter remains.
type propertyLocks struct {
	mu sync.Mutex
	m  map[string]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newPropertyLocks() *propertyLocks {
	return &propertyLocks{m: map[string]*lockEntry{}}
}

// acquire blocks until the property is free or ctx is done.
func (l *propertyLocks) acquire(ctx context.Context, propertyID string) (func(), error) {
	l.mu.Lock()
	e, ok := l.m[propertyID]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.m[propertyID] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.drop(propertyID, e)
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.drop(propertyID, e)
		})
	}, nil
}

func (l *propertyLocks) drop(propertyID string, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.m, propertyID)
	}
	l.mu.Unlock()
}

func (l *propertyLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
