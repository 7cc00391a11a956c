package datastate

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-datastate/pkg/bus"
	"github.com/goliatone/go-datastate/pkg/store"
	"github.com/google/uuid"
)

// Controller lifecycle operations recorded through store.Logger.
const (
	OpAttach  = "attach"
	OpDetach  = "detach"
	OpRebind  = "rebind"
	OpPublish = "publish"
)

// Host is the component a controller is bound to.
type Host interface {
	// Kind returns the registered kind; its name owns every state path.
	Kind() *Kind
	// InstanceID returns the value of the instance-scoping property, or ""
	// when the instance is not scoped.
	InstanceID() string
	// RequestRender asks the component to re-render.
	RequestRender()
}

// BindingState is the lifecycle state of one tracked property.
type BindingState int

const (
	Unbound BindingState = iota
	Initializing
	Synced
	Detached
)

func (s BindingState) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Initializing:
		return "initializing"
	case Synced:
		return "synced"
	case Detached:
		return "detached"
	default:
		return "unknown"
	}
}

// ControllerOption configures a Controller.
type ControllerOption func(*controllerConfig)

type controllerConfig struct {
	store  *store.Store
	logger store.Logger
}

// WithStore binds the controller to s instead of store.Default().
func WithStore(s *store.Store) ControllerOption {
	return func(cfg *controllerConfig) {
		cfg.store = s
	}
}

// WithLogger records attach, detach, rebind and publish operations.
func WithLogger(logger store.Logger) ControllerOption {
	return func(cfg *controllerConfig) {
		cfg.logger = logger
	}
}

type binding struct {
	path  string
	state BindingState
}

// Controller binds the tracked properties of one component instance to the
// store. It is not safe for concurrent use; drive it from the goroutine that
// owns the component.
type Controller struct {
	id        string
	host      Host
	store     *store.Store
	logger    store.Logger
	accessors Accessors
	tracked   []string
	bindings  map[string]*binding
	token     *bus.Token
	attached  bool
}

// NewController creates a detached controller for host. accessors supplies a
// getter/setter pair for every property that may be tracked.
func NewController(host Host, accessors Accessors, opts ...ControllerOption) (*Controller, error) {
	if host == nil || host.Kind() == nil {
		return nil, ErrHostRequired
	}
	cfg := controllerConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.store == nil {
		cfg.store = store.Default()
	}
	if cfg.logger == nil {
		cfg.logger = store.LoggerFunc(nil)
	}
	return &Controller{
		id:        uuid.NewString(),
		host:      host,
		store:     cfg.store,
		logger:    cfg.logger,
		accessors: accessors.clone(),
		bindings:  map[string]*binding{},
		token:     bus.NewToken(),
	}, nil
}

// ID identifies the controller as a change origin in logs and activity.
func (c *Controller) ID() string {
	return c.id
}

// Store returns the store the controller publishes to.
func (c *Controller) Store() *store.Store {
	return c.store
}

// Track registers name as a state property. Tracking while attached binds the
// property immediately.
func (c *Controller) Track(name string) error {
	accessor, ok := c.accessors[name]
	if !ok || !accessor.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	if _, exists := c.bindings[name]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyTracked, name)
	}
	b := &binding{state: Unbound}
	c.tracked = append(c.tracked, name)
	c.bindings[name] = b
	if c.attached {
		return c.initState(name, b)
	}
	return nil
}

// Tracked returns the tracked names in registration order.
func (c *Controller) Tracked() []string {
	out := make([]string, len(c.tracked))
	copy(out, c.tracked)
	return out
}

// Attached reports whether the controller currently holds subscriptions.
func (c *Controller) Attached() bool {
	return c.attached
}

// State returns the lifecycle state of name; untracked names are Unbound.
func (c *Controller) State(name string) BindingState {
	if b, ok := c.bindings[name]; ok {
		return b.state
	}
	return Unbound
}

// StatePath returns the path name is bound to, or the path it would bind to
// on the next attach.
func (c *Controller) StatePath(name string) string {
	if b, ok := c.bindings[name]; ok && c.attached && b.path != "" {
		return b.path
	}
	return c.computePath(name)
}

// Attach binds every tracked property: the first controller on a path seeds
// the store with its current value, later ones adopt the stored value. All
// subscriptions are scoped to the controller token. Attaching an attached
// controller is a no-op.
func (c *Controller) Attach() error {
	if c.attached {
		return nil
	}
	c.attached = true

	var errs []error
	for _, name := range c.tracked {
		if err := c.initState(name, c.bindings[name]); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	c.log(OpAttach, "", err)
	return err
}

// Detach cancels every subscription of the controller, releasing its
// reference on each path, and renews the token so the controller can attach
// again. Calling Detach on a detached controller is a no-op.
func (c *Controller) Detach() {
	if !c.attached {
		return
	}
	c.token.Cancel()
	c.token = bus.NewToken()
	c.attached = false
	for _, name := range c.tracked {
		c.bindings[name].state = Detached
	}
	c.log(OpDetach, "", nil)
}

// RequestUpdate publishes the current value of every tracked property,
// whether or not it differs from the stored one, then asks the host to
// re-render. reason is forwarded to global listeners.
func (c *Controller) RequestUpdate(reason string) error {
	if !c.attached {
		return ErrNotAttached
	}
	var errs []error
	for _, name := range c.tracked {
		path := c.bindings[name].path
		if err := c.store.Change(c, reason, path, c.accessors[name].Get()); err != nil {
			errs = append(errs, err)
		}
	}
	c.host.RequestRender()
	err := errors.Join(errs...)
	c.log(OpPublish, reason, err)
	return err
}

// Refresh re-binds the controller after the host instance id changed. When a
// tracked path moved, the old subscriptions are released first (deleting
// paths nobody else owns) and the new paths are initialised.
func (c *Controller) Refresh() error {
	if !c.attached {
		return nil
	}
	moved := false
	for _, name := range c.tracked {
		if c.bindings[name].path != c.computePath(name) {
			moved = true
			break
		}
	}
	if !moved {
		return nil
	}
	c.Detach()
	err := c.Attach()
	c.log(OpRebind, c.host.InstanceID(), err)
	return err
}

func (c *Controller) initState(name string, b *binding) error {
	b.state = Initializing
	b.path = c.computePath(name)
	accessor := c.accessors[name]

	var errs []error
	if stored, ok := c.store.Get(b.path); ok {
		if err := accessor.Set(stored); err != nil {
			errs = append(errs, fmt.Errorf("datastate: apply %s to %q: %w", b.path, name, err))
		}
	} else {
		reason := fmt.Sprintf("%s.Track(%s)", c.host.Kind().Name(), name)
		if err := c.store.Change(c, reason, b.path, accessor.Get()); err != nil {
			errs = append(errs, err)
		}
	}

	c.store.SubscribeToPath(b.path, func(change store.PathChange) error {
		if change.Origin == c {
			return nil
		}
		if err := accessor.Set(change.Value); err != nil {
			return fmt.Errorf("datastate: apply %s to %q: %w", change.Path, name, err)
		}
		c.host.RequestRender()
		return nil
	}, c.token)
	b.state = Synced
	return errors.Join(errs...)
}

func (c *Controller) computePath(name string) string {
	return c.host.Kind().StatePath(name, c.host.InstanceID())
}

func (c *Controller) log(op, reason string, err error) {
	c.logger.LogStore(store.LogEvent{
		Op:     op,
		Path:   c.host.Kind().Name(),
		Reason: reason,
		Origin: c.id,
		Err:    err,
	})
}
