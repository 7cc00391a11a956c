package datastate

import "fmt"

// ElementOption configures an Element.
type ElementOption func(*elementConfig)

type elementConfig struct {
	instanceID     string
	render         func()
	controllerOpts []ControllerOption
}

// WithInstanceID sets the initial value of the instance-scoping property.
func WithInstanceID(id string) ElementOption {
	return func(cfg *elementConfig) {
		cfg.instanceID = id
	}
}

// WithRenderFunc runs fn each time the element is asked to re-render.
func WithRenderFunc(fn func()) ElementOption {
	return func(cfg *elementConfig) {
		cfg.render = fn
	}
}

// WithControllerOptions forwards opts to the element's controller.
func WithControllerOptions(opts ...ControllerOption) ElementOption {
	return func(cfg *elementConfig) {
		cfg.controllerOpts = append(cfg.controllerOpts, opts...)
	}
}

// Element is a component base that owns a controller and tracks every data
// property declared by its kind.
type Element struct {
	kind       *Kind
	instanceID string
	render     func()
	renders    int
	controller *Controller
}

// NewElement creates a disconnected element of kind. accessors must cover
// every declared data property.
func NewElement(kind *Kind, accessors Accessors, opts ...ElementOption) (*Element, error) {
	if kind == nil {
		return nil, ErrHostRequired
	}
	cfg := elementConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	e := &Element{
		kind:       kind,
		instanceID: cfg.instanceID,
		render:     cfg.render,
	}
	controller, err := NewController(e, accessors, cfg.controllerOpts...)
	if err != nil {
		return nil, err
	}
	for _, prop := range kind.DataProperties() {
		if err := controller.Track(prop.Name); err != nil {
			return nil, fmt.Errorf("datastate: element %q: %w", kind.Name(), err)
		}
	}
	e.controller = controller
	return e, nil
}

// Kind implements Host.
func (e *Element) Kind() *Kind {
	return e.kind
}

// InstanceID implements Host.
func (e *Element) InstanceID() string {
	return e.instanceID
}

// RequestRender implements Host.
func (e *Element) RequestRender() {
	e.renders++
	if e.render != nil {
		e.render()
	}
}

// Renders returns how many times the element was asked to re-render.
func (e *Element) Renders() int {
	return e.renders
}

// Controller returns the element's controller.
func (e *Element) Controller() *Controller {
	return e.controller
}

// Connect attaches the element's controller.
func (e *Element) Connect() error {
	return e.controller.Attach()
}

// Disconnect detaches the element's controller.
func (e *Element) Disconnect() {
	e.controller.Detach()
}

// Connected reports whether the element is attached.
func (e *Element) Connected() bool {
	return e.controller.Attached()
}

// Dispatch handles a component event. When event is the change event of a
// declared data property the element publishes its state and reports true.
func (e *Element) Dispatch(event string) (bool, error) {
	if len(e.kind.PropertiesForEvent(event)) == 0 {
		return false, nil
	}
	return true, e.controller.RequestUpdate(event)
}

// SetInstanceID updates the instance-scoping value and re-binds state paths
// that depend on it.
func (e *Element) SetInstanceID(id string) error {
	if id == e.instanceID {
		return nil
	}
	e.instanceID = id
	return e.controller.Refresh()
}

// StatePath returns the path property is bound to.
func (e *Element) StatePath(property string) string {
	return e.controller.StatePath(property)
}
