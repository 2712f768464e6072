// Package backend defines the Backend Adapter contract of spec.md §4.1: a
// closed tagged-variant interface with one implementation per backend kind
// (remote-hosted, local-inference, generic-http).
//
// Grounded on _examples/ericcurtin-model-runner/pkg/inference/backend.go's
// Backend interface shape and original_source/src-tauri/src/connectors/mod.rs's
// LLMInternalWrapper trait.
package backend

import (
	"context"

	"github.com/google/uuid"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
)

// Adapter is implemented once per backend kind. All methods must honor
// cancellation promptly: PromptSession selects on the supplied token at
// least once per produced token, per spec.md §4.1/§5.
type Adapter interface {
	// Load validates the descriptor's Config (and, for the local backend,
	// the model file at ModelPath) and prepares the adapter to serve
	// sessions. Load failures are terminal for the owning worker only.
	Load(ctx context.Context, descriptor *model.Descriptor) error

	// Unload releases any resources Load acquired. Called once, from the
	// worker's Unloading state.
	Unload(ctx context.Context) error

	// CreateSession opens a new session with the given reconciled session
	// parameters, returning its id.
	CreateSession(ctx context.Context, userID uuid.UUID, sessionParameters map[string]any) (uuid.UUID, error)

	// GetSessions returns the sessions this adapter currently holds for
	// user (or all sessions, if the adapter does not scope by user).
	GetSessions(ctx context.Context, userID uuid.UUID) ([]model.Session, error)

	// PromptSession starts a generation against an existing session. It
	// returns a channel of model.LLMEvent terminated by a model.ChannelClose
	// payload; the adapter must always send that terminator, even on error
	// or cancellation.
	PromptSession(ctx context.Context, req PromptRequest) (<-chan model.LLMEvent, error)
}

// PromptRequest bundles a PromptSession call's arguments.
type PromptRequest struct {
	SessionID  uuid.UUID
	UserID     uuid.UUID
	Prompt     string
	Parameters map[string]any
	Cancel     *model.CancelToken
}

// Factory constructs an Adapter for one Model Descriptor. Exactly one
// Factory exists per model.BackendKind; the supervisor selects among them
// when it constructs a worker (spec.md §9's closed tagged variant).
type Factory func(descriptor *model.Descriptor) (Adapter, error)
