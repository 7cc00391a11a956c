package datastate

import "errors"

var (
	// ErrKindNameRequired indicates a kind was defined without a name.
	ErrKindNameRequired = errors.New("datastate: kind name is required")
	// ErrInvalidName indicates a kind or property name contains a path separator.
	ErrInvalidName = errors.New("datastate: names must not contain '.'")
	// ErrKindExists indicates a registry already holds a kind with that name.
	ErrKindExists = errors.New("datastate: kind already defined")
	// ErrDuplicateProperty indicates a kind declared the same data property twice.
	ErrDuplicateProperty = errors.New("datastate: data property declared twice")
	// ErrHostRequired indicates a controller was created without a host or kind.
	ErrHostRequired = errors.New("datastate: host with a kind is required")
	// ErrUnknownProperty indicates a tracked name has no accessor.
	ErrUnknownProperty = errors.New("datastate: no accessor for property")
	// ErrAlreadyTracked indicates a property was tracked twice.
	ErrAlreadyTracked = errors.New("datastate: property already tracked")
	// ErrNotAttached indicates a publish was requested while detached.
	ErrNotAttached = errors.New("datastate: controller is not attached")
	// ErrTypeMismatch indicates a stored value cannot be assigned to a property.
	ErrTypeMismatch = errors.New("datastate: stored value does not match property type")
	// ErrFilterResult indicates a watch expression produced a non-boolean.
	ErrFilterResult = errors.New("datastate: filter expression must evaluate to a boolean")
	// ErrNoListener indicates a watcher was registered without a listener.
	ErrNoListener = errors.New("datastate: listener is required")
)
