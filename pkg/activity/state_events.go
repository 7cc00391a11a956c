package activity

import (
	"strings"
	"time"
)

const (
	VerbStateCreated  = "state.created"
	VerbStateChanged  = "state.changed"
	VerbStateReleased = "state.released"

	// ObjectTypeState is the object type of every state event.
	ObjectTypeState = "state"
)

// StateEventInput describes the common fields for state lifecycle events.
type StateEventInput struct {
	OriginID   string
	Path       string
	Reason     string
	Channel    string
	RefCount   int
	Value      any
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildStateCreatedEvent describes the first write to a path.
func BuildStateCreatedEvent(input StateEventInput) Event {
	return buildStateEvent(VerbStateCreated, input)
}

// BuildStateChangedEvent describes a write to a path that already held state.
func BuildStateChangedEvent(input StateEventInput) Event {
	return buildStateEvent(VerbStateChanged, input)
}

// BuildStateReleasedEvent describes the deletion of a path after its last
// subscriber detached.
func BuildStateReleasedEvent(input StateEventInput) Event {
	return buildStateEvent(VerbStateReleased, input)
}

func buildStateEvent(verb string, input StateEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["ref_count"] = input.RefCount
	if input.Value != nil {
		metadata["value"] = input.Value
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.OriginID),
		ObjectType: ObjectTypeState,
		ObjectID:   strings.TrimSpace(input.Path),
		Channel:    strings.TrimSpace(input.Channel),
		Reason:     strings.TrimSpace(input.Reason),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
