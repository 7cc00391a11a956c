package bus

import (
	"errors"
	"sync"
)

// Listener receives a payload published on a topic.
type Listener func(payload any) error

type subscription struct {
	listener Listener
	removed  bool
}

// Bus is a topic keyed listener registry. Publishing is synchronous: every
// listener registered for the topic runs on the caller's goroutine, in
// registration order, before Publish returns.
type Bus struct {
	mu     sync.Mutex
	topics map[string][]*subscription
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{topics: map[string][]*subscription{}}
}

// Subscribe registers listener for topic until token is cancelled. A nil
// token keeps the subscription for the lifetime of the bus. Subscribing with
// a cancelled token is a no-op and reports false.
func (b *Bus) Subscribe(topic string, listener Listener, token *Token) bool {
	if listener == nil {
		return false
	}
	sub := &subscription{listener: listener}

	b.mu.Lock()
	if token.Cancelled() {
		b.mu.Unlock()
		return false
	}
	if b.topics == nil {
		b.topics = map[string][]*subscription{}
	}
	b.topics[topic] = append(b.topics[topic], sub)
	b.mu.Unlock()

	if token != nil && !token.OnCancel(func() { b.remove(topic, sub) }) {
		// cancelled between the check above and registration
		b.remove(topic, sub)
		return false
	}
	return true
}

// Publish delivers payload to the listeners currently registered for topic.
// Listeners added during delivery are not invoked; listeners removed during
// delivery are skipped if not yet reached. Listener errors do not stop
// delivery and are returned joined.
func (b *Bus) Publish(topic string, payload any) error {
	b.mu.Lock()
	current := b.topics[topic]
	subs := make([]*subscription, len(current))
	copy(subs, current)
	b.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if b.isRemoved(sub) {
			continue
		}
		if err := sub.listener(payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Listeners returns the number of active listeners for topic.
func (b *Bus) Listeners(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

func (b *Bus) isRemoved(sub *subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sub.removed
}

func (b *Bus) remove(topic string, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.removed {
		return
	}
	sub.removed = true
	subs := b.topics[topic]
	for i, candidate := range subs {
		if candidate == sub {
			b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
}
