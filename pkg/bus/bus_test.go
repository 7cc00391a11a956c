package bus

import (
	"errors"
	"reflect"
	"testing"
)

func TestPublishRunsListenersInRegistrationOrder(t *testing.T) {
	b := New()
	var calls []string
	for _, name := range []string{"first", "second", "third"} {
		b.Subscribe("topic", func(payload any) error {
			calls = append(calls, name+":"+payload.(string))
			return nil
		}, nil)
	}
	b.Subscribe("other", func(any) error {
		t.Fatalf("listener for other topic must not run")
		return nil
	}, nil)

	if err := b.Publish("topic", "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"first:x", "second:x", "third:x"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("expected %v, got %v", want, calls)
	}
}

func TestTokenCancelRemovesAllScopedListeners(t *testing.T) {
	b := New()
	token := NewToken()
	count := 0
	listener := func(any) error { count++; return nil }
	b.Subscribe("a", listener, token)
	b.Subscribe("b", listener, token)
	b.Subscribe("a", listener, nil)

	token.Cancel()
	token.Cancel()

	_ = b.Publish("a", nil)
	_ = b.Publish("b", nil)
	if count != 1 {
		t.Fatalf("expected only the unscoped listener to run, got %d calls", count)
	}
	if b.Listeners("a") != 1 || b.Listeners("b") != 0 {
		t.Fatalf("unexpected listener counts a=%d b=%d", b.Listeners("a"), b.Listeners("b"))
	}
}

func TestSubscribeWithCancelledTokenIsNoop(t *testing.T) {
	b := New()
	token := NewToken()
	token.Cancel()
	if b.Subscribe("topic", func(any) error { return nil }, token) {
		t.Fatalf("expected subscribe to report false")
	}
	if b.Listeners("topic") != 0 {
		t.Fatalf("expected no listeners")
	}
}

func TestListenerCancelledDuringPublishIsSkipped(t *testing.T) {
	b := New()
	token := NewToken()
	var calls []string
	b.Subscribe("topic", func(any) error {
		calls = append(calls, "canceller")
		token.Cancel()
		return nil
	}, nil)
	b.Subscribe("topic", func(any) error {
		calls = append(calls, "cancelled")
		return nil
	}, token)
	b.Subscribe("topic", func(any) error {
		calls = append(calls, "late")
		b.Subscribe("topic", func(any) error {
			calls = append(calls, "added")
			return nil
		}, nil)
		return nil
	}, nil)

	_ = b.Publish("topic", nil)
	want := []string{"canceller", "late"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("expected %v, got %v", want, calls)
	}
}

func TestPublishJoinsListenerErrors(t *testing.T) {
	b := New()
	errA := errors.New("a")
	errB := errors.New("b")
	reached := false
	b.Subscribe("topic", func(any) error { return errA }, nil)
	b.Subscribe("topic", func(any) error { reached = true; return errB }, nil)

	err := b.Publish("topic", nil)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !reached {
		t.Fatalf("expected delivery to continue after an error")
	}
}

func TestTokenCleanupsRunOnceInOrder(t *testing.T) {
	token := NewToken()
	var order []int
	token.OnCancel(func() { order = append(order, 1) })
	token.OnCancel(func() { order = append(order, 2) })

	token.Cancel()
	token.Cancel()

	if !reflect.DeepEqual(order, []int{1, 2}) {
		t.Fatalf("expected cleanups once in order, got %v", order)
	}
	if token.OnCancel(func() { order = append(order, 3) }) {
		t.Fatalf("expected registration on cancelled token to fail")
	}
	if !token.Cancelled() {
		t.Fatalf("expected token to report cancelled")
	}
}
