package datastate

import (
	"fmt"

	"github.com/goliatone/go-datastate/internal/hydrate"
)

// Accessor reads and writes one component property on behalf of a
// controller. It replaces dynamic property lookup: the binding layer supplies
// one accessor per tracked name.
type Accessor struct {
	Get func() any
	Set func(any) error
}

// Accessors maps tracked property names to their accessors.
type Accessors map[string]Accessor

func (a Accessor) valid() bool {
	return a.Get != nil && a.Set != nil
}

func (a Accessors) clone() Accessors {
	out := make(Accessors, len(a))
	for name, accessor := range a {
		out[name] = accessor
	}
	return out
}

// BindOption configures a typed accessor built by Bind.
type BindOption[T any] func(*bindConfig[T])

type bindConfig[T any] struct {
	decoderOpts []hydrate.DecoderOption[T]
}

// BindStrict rejects map payloads carrying keys that T does not declare.
func BindStrict[T any]() BindOption[T] {
	return func(cfg *bindConfig[T]) {
		cfg.decoderOpts = append(cfg.decoderOpts, hydrate.WithDisallowUnknownFields[T]())
	}
}

// BindNormalize rewrites map payloads before they are decoded into T.
func BindNormalize[T any](fn func(map[string]any) (map[string]any, error)) BindOption[T] {
	return func(cfg *bindConfig[T]) {
		if fn == nil {
			return
		}
		cfg.decoderOpts = append(cfg.decoderOpts, hydrate.WithPreHook[T](func(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
			return fn(payload)
		}))
	}
}

// BindValidate checks values decoded from map payloads before they are
// assigned.
func BindValidate[T any](fn func(*T) error) BindOption[T] {
	return func(cfg *bindConfig[T]) {
		if fn == nil {
			return
		}
		cfg.decoderOpts = append(cfg.decoderOpts, hydrate.WithPostHook[T](func(_ hydrate.Context, value *T) error {
			return fn(value)
		}))
	}
}

// Bind returns an accessor over target. Stored values of type T are assigned
// directly, nil resets target to its zero value and map[string]any payloads
// (for example state seeded from JSON by tooling) are decoded into T.
func Bind[T any](target *T, opts ...BindOption[T]) Accessor {
	cfg := bindConfig[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	decoder := hydrate.NewDecoder(cfg.decoderOpts...)

	return Accessor{
		Get: func() any {
			return *target
		},
		Set: func(value any) error {
			switch typed := value.(type) {
			case T:
				*target = typed
				return nil
			case nil:
				var zero T
				*target = zero
				return nil
			case map[string]any:
				decoded, err := decoder.Decode(hydrate.Context{}, typed)
				if err != nil {
					return err
				}
				*target = decoded
				return nil
			default:
				var zero T
				return fmt.Errorf("%w: have %T, want %T", ErrTypeMismatch, value, zero)
			}
		},
	}
}
