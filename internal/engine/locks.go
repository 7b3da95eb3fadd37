package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// lockTable hands out one single-slot semaphore per key (account id or
// request id). Operations that touch disjoint key sets run in parallel.
type lockTable struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
	wait time.Duration
}

func newLockTable(wait time.Duration) *lockTable {
	return &lockTable{
		sems: make(map[string]chan struct{}),
		wait: wait,
	}
}

func (t *lockTable) sem(key string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sems[key]
	if !ok {
		s = make(chan struct{}, 1)
		t.sems[key] = s
	}
	return s
}

// acquire takes the semaphores for all keys in sorted order, so two
// operations over the same accounts can never lock in opposite order. The
// timer bounds the total wait: a contended operation fails with
// ErrResourceBusy instead of deadlocking.
func (t *lockTable) acquire(ctx context.Context, keys ...string) (func(), error) {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	timer := time.NewTimer(t.wait)
	defer timer.Stop()

	var held []chan struct{}
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, key := range sorted {
		s := t.sem(key)
		select {
		case s <- struct{}{}:
			held = append(held, s)
		case <-timer.C:
			release()
			return nil, fmt.Errorf("%w: %s", ErrResourceBusy, key)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}

	return release, nil
}
