package model

import (
	"time"

	"github.com/google/uuid"
)

// LLMEvent is the LLM Event of spec.md §3: a single tagged update carried
// on a prompt's event channel, wrapping one of Progress, Completion, Error,
// Other, or the ChannelClose terminator.
type LLMEvent struct {
	StreamID      uuid.UUID
	Timestamp     time.Time
	CallTimestamp time.Time
	Parameters    map[string]any
	Input         string
	ModelUUID     uuid.UUID
	Session       Session
	Payload       EventPayload
}

// EventPayload is the closed tagged variant of LLMEvent's body.
type EventPayload interface{ isEventPayload() }

// Progress carries the next incremental token(s) of a generation.
type Progress struct {
	Previous string
	Next     string
}

func (Progress) isEventPayload() {}

// Completion marks the end of a successful generation.
type Completion struct {
	Previous string
}

func (Completion) isEventPayload() {}

// Error marks the end of a failed generation.
type Error struct {
	Message string
}

func (Error) isEventPayload() {}

// Other carries a backend-specific event that doesn't fit Progress,
// Completion, or Error — e.g. an adapter-level diagnostic or a connector
// extension payload the core doesn't interpret, only relays.
type Other struct {
	Kind string
	Data map[string]any
}

func (Other) isEventPayload() {}

// ChannelClose is the explicit terminator every adapter must send after its
// last Progress/Completion/Error event, so that receivers never rely on the
// channel being closed by the sender going out of scope.
type ChannelClose struct{}

func (ChannelClose) isEventPayload() {}
