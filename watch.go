package datastate

import (
	"fmt"

	"github.com/goliatone/go-datastate/pkg/bus"
	"github.com/goliatone/go-datastate/pkg/store"
)

// Watch subscribes listener to every change in s for which expression
// evaluates to true. A nil store means store.Default(). Filter errors are
// returned to the writer like any other listener error.
//
// Watchers never own a path: they do not affect reference counts. When token
// is already cancelled the returned filter is valid but never invoked.
func Watch(s *store.Store, expression string, listener store.RootListener, token *bus.Token, opts ...WatchOption) (*Filter, error) {
	if listener == nil {
		return nil, ErrNoListener
	}
	filter, err := NewFilter(expression, opts...)
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = store.Default()
	}
	s.SubscribeToAnyChange(func(change store.RootChange) error {
		matched, err := filter.Match(change)
		if err != nil {
			return err
		}
		if !matched {
			return nil
		}
		return listener(change)
	}, token)
	return filter, nil
}

// WatchPath is Watch restricted to a single path. It does not reference
// count path.
func WatchPath(s *store.Store, path string, listener store.RootListener, token *bus.Token, opts ...WatchOption) (*Filter, error) {
	return Watch(s, fmt.Sprintf("path == %q", path), listener, token, opts...)
}
