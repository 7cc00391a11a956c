package bus

import "sync"

// Token scopes any number of subscriptions so they can be cancelled together.
// Cleanups registered through OnCancel run exactly once, in registration
// order, when Cancel is first called.
type Token struct {
	mu        sync.Mutex
	cancelled bool
	cleanups  []func()
}

// NewToken returns an active token.
func NewToken() *Token {
	return &Token{}
}

// OnCancel registers fn to run on cancellation. It reports false, and does
// not register fn, when the token is already cancelled.
func (t *Token) OnCancel(fn func()) bool {
	if t == nil || fn == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	t.cleanups = append(t.cleanups, fn)
	return true
}

// Cancel runs all registered cleanups. Subsequent calls are no-ops.
func (t *Token) Cancel() {
	if t == nil {
		return
	}
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	cleanups := t.cleanups
	t.cleanups = nil
	t.mu.Unlock()

	for _, fn := range cleanups {
		fn()
	}
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}
