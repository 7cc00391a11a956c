package store

import "sync"

var (
	defaultOnce  sync.Once
	defaultStore *Store
)

// Default returns the process-wide store shared by controllers that are not
// given a store explicitly.
func Default() *Store {
	defaultOnce.Do(func() {
		defaultStore = New()
	})
	return defaultStore
}
