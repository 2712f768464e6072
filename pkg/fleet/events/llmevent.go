package events

import "github.com/modelfleet/fleetd/pkg/fleet/model"

// ConvertLLMEvent adapts a model.LLMEvent into the bus Envelope shape. It
// never rejects an event — every LLMEvent payload variant has a direct
// Envelope encoding.
func ConvertLLMEvent(streamID string, ev model.LLMEvent) (Envelope, bool) {
	switch p := ev.Payload.(type) {
	case model.Progress:
		return Envelope{StreamID: streamID, Type: PromptProgress, Previous: p.Previous, Next: p.Next}, true
	case model.Completion:
		return Envelope{StreamID: streamID, Type: PromptCompletion, Previous: p.Previous}, true
	case model.Error:
		return Envelope{StreamID: streamID, Type: PromptError, Message: p.Message}, true
	case model.Other:
		return Envelope{StreamID: streamID, Type: PromptOther, Kind: p.Kind, Data: p.Data}, true
	case model.ChannelClose:
		return Envelope{StreamID: streamID, Type: ChannelClose}, true
	default:
		return Envelope{}, false
	}
}
