package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-datastate/pkg/activity"
	"github.com/goliatone/go-datastate/pkg/bus"
	"github.com/goliatone/go-datastate/snapshot"
)

// Store maps state paths to values. The zero value is not usable; construct
// stores with New or use Default.
type Store struct {
	mu         sync.Mutex
	values     map[string]any
	counts     map[string]int
	publishing map[string]bool
	pending    map[string][]Mutation

	bus     *bus.Bus
	logger  Logger
	emitter *activity.Emitter
	now     func() time.Time
	commit  ChangeFunc
}

// New constructs an empty store.
func New(opts ...Option) *Store {
	cfg := applyOptions(opts)
	s := &Store{
		values:     map[string]any{},
		counts:     map[string]int{},
		publishing: map[string]bool{},
		pending:    map[string][]Mutation{},
		bus:        cfg.bus,
		logger:     cfg.logger,
		emitter:    cfg.emitter,
		now:        cfg.now,
	}
	var commit ChangeFunc = s.apply
	for i := len(cfg.middleware) - 1; i >= 0; i-- {
		commit = cfg.middleware[i](commit)
	}
	s.commit = commit
	return s
}

// Get returns a copy of the value stored at path. The boolean is false when
// the path holds no value, which is distinct from a stored nil or zero value.
func (s *Store) Get(path string) (any, bool) {
	s.mu.Lock()
	value, ok := s.values[path]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return snapshot.Clone(value), true
}

// Change stores value at path and notifies path subscribers, then global
// subscribers. The write is committed before any listener runs; the returned
// error joins listener and middleware failures and never means the write was
// rolled back.
//
// A Change for a path that is already publishing is queued and applied once
// the current publish finishes. Queued writes are dropped when the path loses
// its last owner before they run.
func (s *Store) Change(origin any, reason, path string, value any) error {
	if path == "" {
		return ErrPathRequired
	}
	mutation := Mutation{Origin: origin, Reason: reason, Path: path, Value: value}

	s.mu.Lock()
	if s.publishing[path] {
		s.pending[path] = append(s.pending[path], mutation)
		s.mu.Unlock()
		s.logger.LogStore(LogEvent{Op: OpQueue, Path: path, Reason: reason, Origin: OriginID(origin)})
		return nil
	}
	s.publishing[path] = true
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			delete(s.publishing, path)
			delete(s.pending, path)
			s.mu.Unlock()
			panic(r)
		}
	}()

	var errs []error
	owned := false
	for {
		s.mu.Lock()
		owned = owned || s.counts[path] > 0
		s.mu.Unlock()

		if err := s.commit(mutation); err != nil {
			errs = append(errs, err)
		}

		s.mu.Lock()
		queue := s.pending[path]
		var dropped []Mutation
		// Queued writes for a path released during this cycle are dropped so
		// the released entry is not recreated without an owner.
		if owned && s.counts[path] == 0 {
			dropped, queue = queue, nil
		}
		if len(queue) == 0 {
			delete(s.pending, path)
			delete(s.publishing, path)
			s.mu.Unlock()
			for _, m := range dropped {
				s.logger.LogStore(LogEvent{Op: OpDrop, Path: path, Reason: m.Reason, Origin: OriginID(m.Origin)})
			}
			break
		}
		mutation = queue[0]
		s.pending[path] = queue[1:]
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (s *Store) apply(m Mutation) error {
	if m.Path == "" {
		return ErrPathRequired
	}
	start := s.now()
	stored := snapshot.Clone(m.Value)

	s.mu.Lock()
	_, existed := s.values[m.Path]
	s.values[m.Path] = stored
	root := make(map[string]any, len(s.values))
	for key, value := range s.values {
		root[key] = value
	}
	refs := s.counts[m.Path]
	s.mu.Unlock()

	var errs []error
	if err := s.bus.Publish(pathTopic(m.Path), PathChange{Origin: m.Origin, Path: m.Path, Value: stored}); err != nil {
		errs = append(errs, err)
	}
	rootChange := RootChange{Reason: m.Reason, Origin: m.Origin, Path: m.Path, Value: stored, Root: root}
	if err := s.bus.Publish(RootTopic, rootChange); err != nil {
		errs = append(errs, err)
	}
	err := errors.Join(errs...)

	originID := OriginID(m.Origin)
	s.logger.LogStore(LogEvent{
		Op:       OpChange,
		Path:     m.Path,
		Reason:   m.Reason,
		Origin:   originID,
		RefCount: refs,
		Duration: s.now().Sub(start),
		Err:      err,
	})

	input := activity.StateEventInput{
		OriginID:   originID,
		Path:       m.Path,
		Reason:     m.Reason,
		RefCount:   refs,
		Value:      stored,
		OccurredAt: start,
	}
	if existed {
		s.emit(activity.BuildStateChangedEvent(input))
	} else {
		s.emit(activity.BuildStateCreatedEvent(input))
	}
	return err
}

// SubscribeToPath registers listener for writes to path until token is
// cancelled and counts it as an owner of the path. When the last owner is
// cancelled the path is deleted. It reports false when nothing was
// registered, for instance because token was already cancelled.
func (s *Store) SubscribeToPath(path string, listener PathListener, token *bus.Token) bool {
	if path == "" || listener == nil {
		return false
	}
	wrapped := func(payload any) error {
		change, ok := payload.(PathChange)
		if !ok {
			return nil
		}
		change.Value = snapshot.Clone(change.Value)
		return listener(change)
	}
	if !s.bus.Subscribe(pathTopic(path), wrapped, token) {
		return false
	}

	s.mu.Lock()
	s.counts[path]++
	refs := s.counts[path]
	s.mu.Unlock()
	s.logger.LogStore(LogEvent{Op: OpSubscribe, Path: path, RefCount: refs})

	if token != nil {
		var once sync.Once
		release := func() { once.Do(func() { s.release(path) }) }
		if !token.OnCancel(release) {
			release()
		}
	}
	return true
}

// SubscribeToAnyChange registers listener for every write until token is
// cancelled. Global listeners never keep a path alive.
func (s *Store) SubscribeToAnyChange(listener RootListener, token *bus.Token) bool {
	if listener == nil {
		return false
	}
	return s.bus.Subscribe(RootTopic, func(payload any) error {
		change, ok := payload.(RootChange)
		if !ok {
			return nil
		}
		change.Value = snapshot.Clone(change.Value)
		change.Root = snapshot.CloneMap(change.Root)
		return listener(change)
	}, token)
}

func (s *Store) release(path string) {
	s.mu.Lock()
	count, ok := s.counts[path]
	if !ok || count <= 0 {
		s.mu.Unlock()
		return
	}
	count--
	removed := false
	var last any
	if count == 0 {
		delete(s.counts, path)
		last, removed = s.values[path]
		delete(s.values, path)
	} else {
		s.counts[path] = count
	}
	s.mu.Unlock()

	s.logger.LogStore(LogEvent{Op: OpUnsubscribe, Path: path, RefCount: count})
	if !removed {
		return
	}
	s.logger.LogStore(LogEvent{Op: OpRelease, Path: path})
	s.emit(activity.BuildStateReleasedEvent(activity.StateEventInput{
		Path:       path,
		Value:      last,
		OccurredAt: s.now(),
	}))
}

func (s *Store) emit(event activity.Event) {
	if !s.emitter.Enabled() {
		return
	}
	if err := s.emitter.Emit(context.Background(), event); err != nil {
		s.logger.LogStore(LogEvent{Op: OpActivity, Path: event.ObjectID, Reason: event.Verb, Err: err})
	}
}

// RefCount returns the number of path subscriptions currently owning path.
func (s *Store) RefCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[path]
}

// Has reports whether path currently holds a value.
func (s *Store) Has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[path]
	return ok
}

// Keys returns the stored paths sorted alphabetically.
func (s *Store) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Snapshot returns a deep copy of the whole mapping.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot.CloneMap(s.values)
}
