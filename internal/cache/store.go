// AngelaMos | 2026
// store.go

package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/carterperez-dev/templates/user-admin/internal/metrics"
)

// Fetcher loads the value for one key from the system of record.
type Fetcher func(ctx context.Context) (any, error)

type record struct {
	entry   Entry
	gen     uint64
	fetcher Fetcher
}

type suspension struct {
	prefix Key
	count  int
}

// Store is the shared key-addressed cache. Writes are synchronous and
// visible to the next Read. Stored values are treated as immutable: callers
// replace values, they never mutate what Read returned.
type Store struct {
	mu         sync.Mutex
	records    map[string]*record
	listeners  map[string]map[uint64]Listener
	suspended  map[string]*suspension
	seq        uint64
	refetching int

	group     singleflight.Group
	staleTime time.Duration
	logger    *slog.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Store)

// WithStaleTime ages entries out after d. Zero keeps entries fresh until
// they are invalidated.
func WithStaleTime(d time.Duration) Option {
	return func(s *Store) {
		s.staleTime = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		records:   make(map[string]*record),
		listeners: make(map[string]map[uint64]Listener),
		suspended: make(map[string]*suspension),
		logger:    slog.Default(),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) Read(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key.String()]
	if !ok {
		return Entry{}, false
	}
	return rec.entry, true
}

func (s *Store) Write(key Key, value any) {
	s.mu.Lock()
	rec := s.recordLocked(key)
	s.setValueLocked(rec, value)
	ev := Event{Type: EventUpdated, Entry: rec.entry}
	ls := s.listenersLocked(key)
	s.mu.Unlock()

	notify(ls, ev)
}

// Update applies fn to the current value of key under the store lock. fn
// reports whether a write should happen; it must not call back into the
// store.
func (s *Store) Update(key Key, fn func(old any, ok bool) (any, bool)) bool {
	s.mu.Lock()
	var (
		old any
		has bool
	)
	if rec, ok := s.records[key.String()]; ok && rec.entry.HasValue {
		old, has = rec.entry.Value, true
	}

	value, write := fn(old, has)
	if !write {
		s.mu.Unlock()
		return false
	}

	rec := s.recordLocked(key)
	s.setValueLocked(rec, value)
	ev := Event{Type: EventUpdated, Entry: rec.entry}
	ls := s.listenersLocked(key)
	s.mu.Unlock()

	notify(ls, ev)
	return true
}

// Keys lists cached keys under prefix in lexical order.
func (s *Store) Keys(prefix Key) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []Key
	for _, rec := range s.records {
		if rec.entry.Key.HasPrefix(prefix) {
			keys = append(keys, rec.entry.Key)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Invalidate marks every entry under the prefixes stale. Entries that have
// subscribers are refetched in the background unless suspended; the rest
// refetch on their next Fetch. Fetches already in flight for these keys
// are discarded, and the next load starts a new call.
func (s *Store) Invalidate(prefixes ...Key) int {
	s.mu.Lock()
	var (
		events  []keyedEvent
		refetch []Key
	)
	for k, rec := range s.records {
		if !matchesAny(rec.entry.Key, prefixes) {
			continue
		}
		s.retireLocked(k, rec)
		rec.entry.Stale = true
		events = append(events, s.eventLocked(EventInvalidated, rec))
		if s.activeLocked(rec) && !s.suspendedLocked(rec.entry.Key) {
			refetch = append(refetch, rec.entry.Key)
		}
	}
	s.mu.Unlock()

	notifyAll(events)
	for _, key := range refetch {
		s.refetch(key)
	}
	return len(events)
}

func (s *Store) Remove(prefixes ...Key) int {
	s.mu.Lock()
	var events []keyedEvent
	for k, rec := range s.records {
		if !matchesAny(rec.entry.Key, prefixes) {
			continue
		}
		delete(s.records, k)
		events = append(events, s.eventLocked(EventRemoved, rec))
	}
	s.mu.Unlock()

	notifyAll(events)
	return len(events)
}

// Subscribe registers fn for events on the exact key. The returned function
// unsubscribes and is safe to call more than once.
func (s *Store) Subscribe(key Key, fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	s.seq++
	id := s.seq
	if s.listeners[k] == nil {
		s.listeners[k] = make(map[uint64]Listener)
	}
	s.listeners[k][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners[k], id)
			if len(s.listeners[k]) == 0 {
				delete(s.listeners, k)
			}
		})
	}
}

// Fetch returns the cached value for key, loading it with fetcher when
// nothing is cached. A stale value is returned as is and refreshed in the
// background.
func (s *Store) Fetch(ctx context.Context, key Key, fetcher Fetcher) (any, error) {
	s.mu.Lock()
	rec := s.recordLocked(key)
	rec.fetcher = fetcher

	if rec.entry.HasValue {
		value := rec.entry.Value
		expired := s.expiredLocked(rec)
		background := expired && !s.suspendedLocked(key)
		s.mu.Unlock()

		if !expired {
			metrics.CacheFetchesTotal.WithLabelValues("hit").Inc()
			return value, nil
		}

		metrics.CacheFetchesTotal.WithLabelValues("stale").Inc()
		if background {
			s.refetch(key)
		}
		return value, nil
	}
	s.mu.Unlock()

	metrics.CacheFetchesTotal.WithLabelValues("miss").Inc()
	return s.load(ctx, key, fetcher)
}

func (s *Store) load(ctx context.Context, key Key, fetcher Fetcher) (any, error) {
	k := key.String()

	s.mu.Lock()
	rec := s.recordLocked(key)
	gen := rec.gen
	if !rec.entry.HasValue {
		rec.entry.Status = StatusPending
	}
	s.mu.Unlock()

	value, err, _ := s.group.Do(k, func() (any, error) {
		return fetcher(ctx)
	})

	s.mu.Lock()
	rec, ok := s.records[k]
	if !ok || rec.gen != gen || s.suspendedLocked(key) {
		var (
			current any
			has     bool
		)
		if ok {
			current, has = rec.entry.Value, rec.entry.HasValue
			if !has && rec.entry.Status == StatusPending {
				rec.entry.Status = StatusIdle
			}
		}
		s.mu.Unlock()

		metrics.CacheFetchesTotal.WithLabelValues("dropped").Inc()
		s.logger.Debug("discarded fetch result started before invalidation", "key", k)

		if err != nil {
			return nil, err
		}
		if has {
			return current, nil
		}
		return value, nil
	}

	if err != nil {
		rec.entry.Err = err
		rec.entry.Status = StatusError
	} else {
		s.setValueLocked(rec, value)
	}
	ev := Event{Type: EventUpdated, Entry: rec.entry}
	ls := s.listenersLocked(key)
	s.mu.Unlock()

	notify(ls, ev)

	if err != nil {
		metrics.CacheFetchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	return value, nil
}

func (s *Store) refetch(key Key) {
	s.mu.Lock()
	rec, ok := s.records[key.String()]
	if !ok || rec.fetcher == nil || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	fetcher := rec.fetcher
	s.refetching++
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.refetching--
			s.mu.Unlock()
		}()

		if _, err := s.load(s.ctx, key, fetcher); err != nil {
			s.logger.Warn("background refetch failed",
				"key", key.String(),
				"error", err,
			)
		}
	}()
}

// Suspend holds back refetches for keys under the prefixes and discards the
// result of any fetch already in flight for them. The returned release is
// idempotent; on release, stale subscribed entries are refetched.
func (s *Store) Suspend(prefixes ...Key) func() {
	s.mu.Lock()
	for _, p := range prefixes {
		k := p.String()
		sus, ok := s.suspended[k]
		if !ok {
			sus = &suspension{prefix: p}
			s.suspended[k] = sus
		}
		sus.count++
	}
	for k, rec := range s.records {
		if matchesAny(rec.entry.Key, prefixes) {
			s.retireLocked(k, rec)
		}
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.resume(prefixes)
		})
	}
}

func (s *Store) resume(prefixes []Key) {
	s.mu.Lock()
	for _, p := range prefixes {
		k := p.String()
		if sus, ok := s.suspended[k]; ok {
			sus.count--
			if sus.count <= 0 {
				delete(s.suspended, k)
			}
		}
	}

	var refetch []Key
	for _, rec := range s.records {
		if !matchesAny(rec.entry.Key, prefixes) {
			continue
		}
		if rec.entry.Stale && s.activeLocked(rec) && !s.suspendedLocked(rec.entry.Key) {
			refetch = append(refetch, rec.entry.Key)
		}
	}
	s.mu.Unlock()

	for _, key := range refetch {
		s.refetch(key)
	}
}

// Snapshot captures every entry under the prefixes.
func (s *Store) Snapshot(prefixes ...Key) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		prefixes: append([]Key(nil), prefixes...),
		entries:  make(map[string]Entry),
	}
	for k, rec := range s.records {
		if matchesAny(rec.entry.Key, snap.prefixes) {
			snap.entries[k] = rec.entry
		}
	}
	return snap
}

// Restore puts every key under the snapshot's prefixes back to its captured
// state. Keys created after the snapshot are removed.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	var events []keyedEvent
	for k, rec := range s.records {
		if !matchesAny(rec.entry.Key, snap.prefixes) {
			continue
		}
		if _, ok := snap.entries[k]; !ok {
			delete(s.records, k)
			events = append(events, s.eventLocked(EventRemoved, rec))
		}
	}
	for k, entry := range snap.entries {
		rec, ok := s.records[k]
		if !ok {
			rec = &record{gen: s.nextGenLocked()}
			s.records[k] = rec
		}
		rec.entry = entry
		events = append(events, s.eventLocked(EventUpdated, rec))
	}
	s.mu.Unlock()

	notifyAll(events)
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Entries:    len(s.records),
		Suspended:  len(s.suspended),
		Refetching: s.refetching,
	}
	for _, rec := range s.records {
		if s.expiredLocked(rec) {
			st.Stale++
		}
	}
	for _, ls := range s.listeners {
		st.Subscribers += len(ls)
	}
	return st
}

// Wait blocks until background refetches started so far have finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

func (s *Store) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Store) recordLocked(key Key) *record {
	k := key.String()
	rec, ok := s.records[k]
	if !ok {
		rec = &record{
			entry: Entry{Key: append(Key(nil), key...)},
			gen:   s.nextGenLocked(),
		}
		s.records[k] = rec
	}
	return rec
}

func (s *Store) setValueLocked(rec *record, value any) {
	rec.entry.Value = value
	rec.entry.HasValue = true
	rec.entry.Err = nil
	rec.entry.Status = StatusSuccess
	rec.entry.Stale = false
	rec.entry.UpdatedAt = s.now()
}

// retireLocked makes results of loads started before now unstorable and
// detaches later loads from the in-flight call.
func (s *Store) retireLocked(k string, rec *record) {
	rec.gen = s.nextGenLocked()
	s.group.Forget(k)
}

func (s *Store) nextGenLocked() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) expiredLocked(rec *record) bool {
	if rec.entry.Stale {
		return true
	}
	if s.staleTime <= 0 || !rec.entry.HasValue {
		return false
	}
	return s.now().Sub(rec.entry.UpdatedAt) > s.staleTime
}

func (s *Store) activeLocked(rec *record) bool {
	return rec.fetcher != nil && len(s.listeners[rec.entry.Key.String()]) > 0
}

func (s *Store) suspendedLocked(key Key) bool {
	for _, sus := range s.suspended {
		if key.HasPrefix(sus.prefix) {
			return true
		}
	}
	return false
}

func (s *Store) listenersLocked(key Key) []Listener {
	set := s.listeners[key.String()]
	if len(set) == 0 {
		return nil
	}
	ls := make([]Listener, 0, len(set))
	for _, fn := range set {
		ls = append(ls, fn)
	}
	return ls
}

type keyedEvent struct {
	event     Event
	listeners []Listener
}

func (s *Store) eventLocked(t EventType, rec *record) keyedEvent {
	return keyedEvent{
		event:     Event{Type: t, Entry: rec.entry},
		listeners: s.listenersLocked(rec.entry.Key),
	}
}

func notify(ls []Listener, ev Event) {
	for _, fn := range ls {
		fn(ev)
	}
}

func notifyAll(events []keyedEvent) {
	for _, ke := range events {
		notify(ke.listeners, ke.event)
	}
}

func matchesAny(key Key, prefixes []Key) bool {
	for _, p := range prefixes {
		if key.HasPrefix(p) {
			return true
		}
	}
	return false
}
