// Package facade implements the Activation Facade of spec.md §4.4: the
// per-model entry point callers use once a model has been activated,
// reconciling caller parameters against the descriptor's defaults and
// tracking single-shot cancellation tokens keyed by (session, user).
//
// Grounded on original_source/src-tauri/src/llm.rs's LLMActivated —
// activate_llm, create_session, prompt_session, call_llm, and
// interrupt_session are ported near line-for-line in control flow.
package facade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelfleet/fleetd/pkg/fleet/backend"
	"github.com/modelfleet/fleetd/pkg/fleet/ferrors"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/modelfleet/fleetd/pkg/fleet/supervisor"
)

// Info is the get_info/status response of spec.md §4.4.
type Info struct {
	Status string
}

// CreateSessionResult is create_session's response.
type CreateSessionResult struct {
	SessionID         uuid.UUID
	SessionParameters map[string]any
}

// PromptSessionResult is prompt_session's response.
type PromptSessionResult struct {
	Events     <-chan model.LLMEvent
	Parameters map[string]any
}

// CallLLMResult is call_llm's response: create_session immediately
// followed by prompt_session, exactly as the original's call_llm shortcut.
type CallLLMResult struct {
	SessionID         uuid.UUID
	SessionParameters map[string]any
	Parameters        map[string]any
	Events            <-chan model.LLMEvent
}

type cancelKey struct {
	sessionID uuid.UUID
	userID    uuid.UUID
}

// Activated is the Activation Facade for one model: it wraps the model's
// Worker Handle, its immutable Descriptor, and the cancellation-token
// registry, the Go analogue of LLMActivated's Arc<DashMap<(Uuid,Uuid),
// Vec<CancellationToken>>>.
type Activated struct {
	descriptor     *model.Descriptor
	activatedReason string
	activatedTime  time.Time
	sup            *supervisor.Supervisor

	mu         sync.Mutex
	interrupts map[cancelKey][]*model.CancelToken
}

// Activate is activate_llm: it ensures a worker is registered with the
// supervisor (via the idempotent CreateWorker) and, if it hasn't already
// completed Load, loads it before handing back the facade wrapping it.
func Activate(ctx context.Context, descriptor *model.Descriptor, sup *supervisor.Supervisor) (*Activated, error) {
	h, err := sup.CreateWorker(descriptor)
	if err != nil {
		return nil, err
	}
	if err := h.Load(ctx); err != nil {
		return nil, err
	}
	return &Activated{
		descriptor: descriptor, activatedReason: "user request", activatedTime: time.Now().UTC(),
		sup: sup, interrupts: make(map[cancelKey][]*model.CancelToken),
	}, nil
}

// GetInfo is get_info.
func (a *Activated) GetInfo() Info {
	return Info{Status: fmt.Sprintf("ID: %s, Name: %s, Description: %s", a.descriptor.ID, a.descriptor.Name, a.descriptor.Description)}
}

// Ping is ping: it probes the worker's mailbox and reports WorkerDead if
// the worker is no longer registered with the supervisor.
func (a *Activated) Ping(ctx context.Context) (string, error) {
	h, ok := a.sup.GetWorker(a.descriptor.UUID)
	if !ok {
		return "", ferrors.New(ferrors.WorkerDead, "worker is no longer registered")
	}
	return h.Identify(ctx), nil
}

// GetSessions is get_sessions, gated on the "view" permission bit
// (spec.md §3/§4.1).
func (a *Activated) GetSessions(ctx context.Context, user model.User) ([]model.Session, error) {
	if !user.Permissions.Allows(model.OpView) {
		return nil, ferrors.New(ferrors.PermissionDenied, "user lacks view permission")
	}

	h, ok := a.sup.GetWorker(a.descriptor.UUID)
	if !ok {
		return nil, ferrors.New(ferrors.WorkerDead, "worker is no longer registered")
	}
	return h.GetSessions(ctx, user.ID)
}

// CreateSession is create_session, gated on the "session" permission bit
// (spec.md §3 notes a single session bit covers both create_session and
// prompt_session). It reconciles session parameters from the descriptor's
// defaults, overlaying only the allow-listed UserSessionParameters keys
// the caller supplied, then asks the worker to open the session.
func (a *Activated) CreateSession(ctx context.Context, callerParams map[string]any, user model.User) (CreateSessionResult, error) {
	if !user.Permissions.Allows(model.OpSession) {
		return CreateSessionResult{}, ferrors.New(ferrors.PermissionDenied, "user lacks session permission")
	}

	armed := reconcile(a.descriptor.SessionParameters, a.descriptor.UserSessionParameters, callerParams)

	h, ok := a.sup.GetWorker(a.descriptor.UUID)
	if !ok {
		return CreateSessionResult{}, ferrors.New(ferrors.WorkerDead, "worker is no longer registered")
	}
	sessionID, err := h.CreateSession(ctx, user.ID, armed)
	if err != nil {
		return CreateSessionResult{}, err
	}
	return CreateSessionResult{SessionID: sessionID, SessionParameters: armed}, nil
}

// PromptSession is prompt_session, gated on the "session" permission bit.
// It reconciles prompt parameters from the descriptor's defaults, registers
// a fresh cancellation token under (sessionID, userID), and asks the
// worker to prompt — returning as soon as the worker has accepted the
// request (spec.md's backpressure rule; the worker itself, not the facade,
// spawns the adapter call onto its own goroutine).
func (a *Activated) PromptSession(ctx context.Context, sessionID uuid.UUID, prompt string, callerParams map[string]any, user model.User) (PromptSessionResult, error) {
	if !user.Permissions.Allows(model.OpSession) {
		return PromptSessionResult{}, ferrors.New(ferrors.PermissionDenied, "user lacks session permission")
	}

	armed := reconcile(a.descriptor.Parameters, a.descriptor.UserParameters, callerParams)

	h, ok := a.sup.GetWorker(a.descriptor.UUID)
	if !ok {
		return PromptSessionResult{}, ferrors.New(ferrors.WorkerDead, "worker is no longer registered")
	}

	token := model.NewCancelToken()
	key := cancelKey{sessionID: sessionID, userID: user.ID}
	a.mu.Lock()
	a.interrupts[key] = append(a.interrupts[key], token)
	a.mu.Unlock()

	events, err := h.PromptSession(ctx, backend.PromptRequest{
		SessionID: sessionID, UserID: user.ID, Prompt: prompt, Parameters: armed, Cancel: token,
	})
	if err != nil {
		return PromptSessionResult{}, err
	}
	return PromptSessionResult{Events: events, Parameters: armed}, nil
}

// CallLLM is call_llm: it delegates to CreateSession immediately followed
// by PromptSession, exactly matching the original's simplified-redirect
// implementation (the commented-out separate implementation in llm.rs was
// never finished and is not reproduced here). Both delegated calls perform
// their own permission check, so CallLLM enforces the same "session" gate
// without duplicating it here.
func (a *Activated) CallLLM(ctx context.Context, message string, sessionParameters, parameters map[string]any, user model.User) (CallLLMResult, error) {
	created, err := a.CreateSession(ctx, sessionParameters, user)
	if err != nil {
		return CallLLMResult{}, err
	}
	prompted, err := a.PromptSession(ctx, created.SessionID, message, parameters, user)
	if err != nil {
		return CallLLMResult{}, err
	}
	return CallLLMResult{
		SessionID: created.SessionID, SessionParameters: created.SessionParameters,
		Parameters: prompted.Parameters, Events: prompted.Events,
	}, nil
}

// InterruptSession is interrupt_session, gated on the "session" permission
// bit (cancelling a generation is part of the same session privilege that
// started it). It cancels every outstanding token registered under
// (sessionID, userID) and reports whether any existed to cancel.
func (a *Activated) InterruptSession(ctx context.Context, sessionID uuid.UUID, user model.User) (bool, error) {
	if !user.Permissions.Allows(model.OpSession) {
		return false, ferrors.New(ferrors.PermissionDenied, "user lacks session permission")
	}

	key := cancelKey{sessionID: sessionID, userID: user.ID}

	a.mu.Lock()
	defer a.mu.Unlock()
	tokens, ok := a.interrupts[key]
	if !ok || len(tokens) == 0 {
		return false, nil
	}
	for _, t := range tokens {
		t.Cancel()
	}
	delete(a.interrupts, key)
	return true, nil
}

// reconcile copies defaults and overlays only the keys named in allowList
// that caller supplied — spec.md §4.4's parameter-reconciliation rule:
// every key not in allowList is silently dropped, even if the caller sent
// it.
func reconcile(defaults map[string]any, allowList []string, caller map[string]any) map[string]any {
	armed := make(map[string]any, len(defaults))
	for k, v := range defaults {
		armed[k] = v
	}
	for _, key := range allowList {
		if v, ok := caller[key]; ok {
			armed[key] = v
		}
	}
	return armed
}
