package client

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// lazy memoizes the result of init. Concurrent callers share one in-flight
// init; errors are returned to every waiter but not memoized, so the next
// call runs init again.
type lazy[T any] struct {
	init func(context.Context) (T, error)

	group singleflight.Group

	mu         sync.Mutex
	value      T
	resolved   bool
	generation uint64
}

const lazyKey = "init"

// get returns the memoized value, running init if needed. The shared init
// does not observe ctx cancellation; each waiter stops waiting when its own
// ctx is done.
func (l *lazy[T]) get(ctx context.Context) (T, error) {
	if v, ok := l.peek(); ok {
		return v, nil
	}

	ch := l.group.DoChan(lazyKey, func() (interface{}, error) {
		l.mu.Lock()
		if l.resolved {
			v := l.value
			l.mu.Unlock()
			return v, nil
		}
		generation := l.generation
		l.mu.Unlock()

		v, err := l.init(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		if generation == l.generation {
			l.value = v
			l.resolved = true
		}
		l.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (l *lazy[T]) peek() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.resolved
}

// reset drops the memoized value. An init already in flight still answers
// its waiters but does not repopulate the cache.
func (l *lazy[T]) reset() {
	l.mu.Lock()
	var zero T
	l.value = zero
	l.resolved = false
	l.generation++
	l.mu.Unlock()
	l.group.Forget(lazyKey)
}
