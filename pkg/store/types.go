package store

import (
	"errors"
	"time"

	"github.com/goliatone/go-datastate/pkg/activity"
	"github.com/goliatone/go-datastate/pkg/bus"
)

// RootTopic is the bus topic carrying every RootChange.
const RootTopic = "rootstate-change"

const pathTopicPrefix = "state:"

// ErrPathRequired is returned when a change or subscription names no path.
var ErrPathRequired = errors.New("store: path is required")

// Identified is implemented by origins that expose a stable identifier, such
// as controllers. It is used for logging and activity attribution only; echo
// suppression compares origins by identity.
type Identified interface {
	ID() string
}

// PathChange is published on a path topic after each write to that path.
type PathChange struct {
	Origin any
	Path   string
	Value  any
}

// RootChange is published on RootTopic after each write, carrying a deep copy
// of the whole store as it was right after the write.
type RootChange struct {
	Reason string
	Origin any
	Path   string
	Value  any
	Root   map[string]any
}

// PathListener observes writes to one path.
type PathListener func(PathChange) error

// RootListener observes every write.
type RootListener func(RootChange) error

// Mutation is the unit passed through the middleware chain.
type Mutation struct {
	Origin any
	Reason string
	Path   string
	Value  any
}

// ChangeFunc commits a mutation.
type ChangeFunc func(Mutation) error

// Middleware wraps every committed mutation.
type Middleware func(next ChangeFunc) ChangeFunc

// Option configures a Store.
type Option func(*config)

type config struct {
	bus        *bus.Bus
	logger     Logger
	emitter    *activity.Emitter
	middleware []Middleware
	now        func() time.Time
}

// WithBus publishes notifications on b instead of a private bus.
func WithBus(b *bus.Bus) Option {
	return func(cfg *config) {
		if b != nil {
			cfg.bus = b
		}
	}
}

// WithLogger attaches a logger that records store operations.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithEmitter forwards created, changed and released events to emitter.
func WithEmitter(emitter *activity.Emitter) Option {
	return func(cfg *config) {
		cfg.emitter = emitter
	}
}

// WithMiddleware appends middleware to the change chain. The first middleware
// given is the outermost.
func WithMiddleware(middleware ...Middleware) Option {
	return func(cfg *config) {
		for _, mw := range middleware {
			if mw != nil {
				cfg.middleware = append(cfg.middleware, mw)
			}
		}
	}
}

func applyOptions(opts []Option) config {
	cfg := config{
		logger: noopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.bus == nil {
		cfg.bus = bus.New()
	}
	return cfg
}

func pathTopic(path string) string {
	return pathTopicPrefix + path
}

// OriginID describes origin for logs and activity events.
func OriginID(origin any) string {
	switch o := origin.(type) {
	case nil:
		return ""
	case Identified:
		return o.ID()
	case string:
		return o
	default:
		return ""
	}
}
