// Package events implements the Event Pipeline: a generic fan-out from a
// typed channel of adapter-internal events to the externally published
// Envelope shape, always terminated by an explicit ChannelClose marker.
//
// Grounded on original_source/src-tauri/src/emitter.rs's send_events.
package events

import (
	"context"

	"github.com/modelfleet/fleetd/pkg/logging"
)

// EventType is the closed tagged variant of an Envelope's payload, carried
// over the external event bus (spec.md §6).
type EventType string

const (
	PromptProgress   EventType = "prompt_progress"
	PromptCompletion EventType = "prompt_completion"
	PromptError      EventType = "prompt_error"
	PromptOther      EventType = "prompt_other"
	DownloadProgress EventType = "download_progress"
	DownloadCompletion EventType = "download_completion"
	DownloadError    EventType = "download_error"
	ChannelClose     EventType = "channel_close"
)

// Envelope is one message published on an external event bus channel.
type Envelope struct {
	StreamID string
	Type     EventType
	Previous string
	Next     string
	Progress string
	Message  string
	Kind     string
	Data     map[string]any
}

// Bus is the narrow publish interface the pipeline depends on; it is
// supplied by the out-of-scope front door (spec.md §6).
type Bus interface {
	Publish(channel string, envelope Envelope)
}

// Convert maps one adapter-internal event of type T into an Envelope. A
// false second return drops the event silently, matching spec.md §4.5's
// "conversion failures are dropped silently" rule.
type Convert[T any] func(streamID string, event T) (Envelope, bool)

// Forward drains in, converting and publishing each item on channel via
// bus, until in closes — at which point it publishes a ChannelClose
// envelope and returns. Forward never returns early on a conversion
// failure; it only stops when in is closed or ctx is done.
func Forward[T any](ctx context.Context, log logging.Logger, bus Bus, channel, streamID string, in <-chan T, convert Convert[T]) {
	for {
		select {
		case <-ctx.Done():
			bus.Publish(channel, Envelope{StreamID: streamID, Type: ChannelClose})
			return
		case item, ok := <-in:
			if !ok {
				bus.Publish(channel, Envelope{StreamID: streamID, Type: ChannelClose})
				return
			}
			envelope, ok := convert(streamID, item)
			if !ok {
				if log != nil {
					log.WithField("stream_id", streamID).Debugf("events: dropped unconvertible event")
				}
				continue
			}
			bus.Publish(channel, envelope)
		}
	}
}
