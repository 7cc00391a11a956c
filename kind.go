package datastate

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DataProperty is the registration metadata for one shared property of a
// kind. It carries no runtime state.
type DataProperty struct {
	Name string
	// ChangeEvent is the component event that publishes the property.
	ChangeEvent string
	// InstanceScoped appends the host instance id to the state path.
	InstanceScoped bool
}

// KindOption configures a kind at definition time.
type KindOption func(*kindConfig)

// PropertyOption configures a single data property.
type PropertyOption func(*propertyConfig)

type kindConfig struct {
	instanceProperty string
	properties       []propertyConfig
}

type propertyConfig struct {
	name        string
	changeEvent string
	shared      bool
}

// WithInstanceProperty names the component property whose value scopes state
// per instance. Every data property of the kind is instance scoped unless it
// opts out with WithSharedState.
func WithInstanceProperty(name string) KindOption {
	return func(cfg *kindConfig) {
		cfg.instanceProperty = strings.TrimSpace(name)
	}
}

// WithDataProperty declares a shared property. Declaration order is kept.
func WithDataProperty(name string, opts ...PropertyOption) KindOption {
	return func(cfg *kindConfig) {
		prop := propertyConfig{name: strings.TrimSpace(name)}
		for _, opt := range opts {
			if opt != nil {
				opt(&prop)
			}
		}
		cfg.properties = append(cfg.properties, prop)
	}
}

// WithChangeEvent overrides the default "<name>-changed" event.
func WithChangeEvent(event string) PropertyOption {
	return func(cfg *propertyConfig) {
		cfg.changeEvent = strings.TrimSpace(event)
	}
}

// WithSharedState keeps a property shared by every instance of the kind even
// when the kind has an instance property.
func WithSharedState() PropertyOption {
	return func(cfg *propertyConfig) {
		cfg.shared = true
	}
}

// Kind is the registered identity of a component class: its name is the
// owner segment of every state path its instances bind to.
type Kind struct {
	name             string
	instanceProperty string
	properties       []DataProperty
	index            map[string]int
}

// NewKind validates and builds a kind without registering it.
func NewKind(name string, opts ...KindOption) (*Kind, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrKindNameRequired
	}
	if strings.Contains(name, ".") {
		return nil, fmt.Errorf("%w: kind %q", ErrInvalidName, name)
	}

	cfg := kindConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	kind := &Kind{
		name:             name,
		instanceProperty: cfg.instanceProperty,
		properties:       make([]DataProperty, 0, len(cfg.properties)),
		index:            make(map[string]int, len(cfg.properties)),
	}
	for _, prop := range cfg.properties {
		if prop.name == "" || strings.Contains(prop.name, ".") {
			return nil, fmt.Errorf("%w: property %q of %q", ErrInvalidName, prop.name, name)
		}
		if _, exists := kind.index[prop.name]; exists {
			return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateProperty, name, prop.name)
		}
		event := prop.changeEvent
		if event == "" {
			event = prop.name + "-changed"
		}
		kind.index[prop.name] = len(kind.properties)
		kind.properties = append(kind.properties, DataProperty{
			Name:           prop.name,
			ChangeEvent:    event,
			InstanceScoped: cfg.instanceProperty != "" && !prop.shared,
		})
	}
	return kind, nil
}

// Name returns the registered kind name.
func (k *Kind) Name() string {
	return k.name
}

// InstanceProperty returns the name of the instance-scoping property, if any.
func (k *Kind) InstanceProperty() string {
	return k.instanceProperty
}

// DataProperties returns the declared properties in declaration order.
func (k *Kind) DataProperties() []DataProperty {
	out := make([]DataProperty, len(k.properties))
	copy(out, k.properties)
	return out
}

// DataProperty returns the metadata declared for name.
func (k *Kind) DataProperty(name string) (DataProperty, bool) {
	i, ok := k.index[name]
	if !ok {
		return DataProperty{}, false
	}
	return k.properties[i], true
}

// InstanceScoped reports whether name is bound per instance. Properties that
// were tracked without being declared follow the instance id whenever one is
// present.
func (k *Kind) InstanceScoped(name string) bool {
	if prop, ok := k.DataProperty(name); ok {
		return prop.InstanceScoped
	}
	return true
}

// StatePath returns "<kind>.<property>" or, for instance-scoped properties
// with a non-empty instance id, "<kind>.<property>.<instanceID>".
func (k *Kind) StatePath(property, instanceID string) string {
	path := k.name + "." + property
	if instanceID != "" && k.InstanceScoped(property) {
		path += "." + instanceID
	}
	return path
}

// PropertiesForEvent returns the properties published by event.
func (k *Kind) PropertiesForEvent(event string) []string {
	var names []string
	for _, prop := range k.properties {
		if prop.ChangeEvent == event {
			names = append(names, prop.Name)
		}
	}
	return names
}

// SplitStatePath breaks a path built by StatePath into its segments.
func SplitStatePath(path string) (kind, property, instanceID string) {
	parts := strings.SplitN(path, ".", 3)
	switch len(parts) {
	case 3:
		return parts[0], parts[1], parts[2]
	case 2:
		return parts[0], parts[1], ""
	default:
		return parts[0], "", ""
	}
}

// Registry stores kinds keyed by name.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]*Kind
}

// DefaultRegistry backs DefineKind and LookupKind.
var DefaultRegistry = NewRegistry()

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: map[string]*Kind{}}
}

// Define builds a kind and registers it, guarding against duplicates.
func (r *Registry) Define(name string, opts ...KindOption) (*Kind, error) {
	kind, err := NewKind(name, opts...)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kinds == nil {
		r.kinds = map[string]*Kind{}
	}
	if _, exists := r.kinds[kind.name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrKindExists, kind.name)
	}
	r.kinds[kind.name] = kind
	return kind, nil
}

// Lookup returns the kind registered under name.
func (r *Registry) Lookup(name string) (*Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.kinds[name]
	return kind, ok
}

// Names returns registered kind names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefineKind registers a kind in DefaultRegistry.
func DefineKind(name string, opts ...KindOption) (*Kind, error) {
	return DefaultRegistry.Define(name, opts...)
}

// LookupKind finds a kind in DefaultRegistry.
func LookupKind(name string) (*Kind, bool) {
	return DefaultRegistry.Lookup(name)
}
