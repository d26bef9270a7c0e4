// AngelaMos | 2026
// locks.go

package mutation

import (
	"context"
	"sort"
	"sync"
)

// keyLocks serializes mutations per target id. Multi-target mutations lock
// in sorted order so two bulk operations cannot deadlock.
type keyLocks struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{slots: make(map[string]*slot)}
}

func (l *keyLocks) acquire(ctx context.Context, ids []string) (func(), error) {
	sorted := dedupeSorted(ids)

	held := make([]string, 0, len(sorted))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(held[i])
		}
	}

	for _, id := range sorted {
		s := l.ref(id)
		select {
		case s.ch <- struct{}{}:
			held = append(held, id)
		case <-ctx.Done():
			l.unref(id)
			unlock()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(unlock) }, nil
}

func (l *keyLocks) ref(id string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[id]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[id] = s
	}
	s.refs++
	return s
}

func (l *keyLocks) unref(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.slots[id]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, id)
	}
}

func (l *keyLocks) release(id string) {
	l.mu.Lock()
	s := l.slots[id]
	l.mu.Unlock()

	<-s.ch
	l.unref(id)
}

func (l *keyLocks) busy(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[id]
	return ok && len(s.ch) > 0
}

func dedupeSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
