// Package supervisor implements the Fleet Supervisor of spec.md §4.3: the
// registry of running Model Workers, with an idempotent get-or-create
// CreateWorker (spawn + register only — loading is the caller's separate
// step) and a Ping inventory operation.
//
// Grounded on original_source/src-tauri/src/connectors/llm_manager.rs
// (LLMManagerActor / CreateLLMActorMessage / PingMessage), resolving its
// ctx.get_or_create_child gap (spec.md §9 Open Question (c)) with
// golang.org/x/sync/singleflight so concurrent CreateWorker calls for the
// same model collapse into one construction.
package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/modelfleet/fleetd/pkg/fleet/backend"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/modelfleet/fleetd/pkg/fleet/worker"
	"github.com/modelfleet/fleetd/pkg/logging"
	"golang.org/x/sync/singleflight"
)

// BackendFactories maps a Model Descriptor's BackendKind to the Factory
// that constructs its Adapter, realizing spec.md §9's closed tagged
// variant for the backend.
type BackendFactories map[model.BackendKind]backend.Factory

// Supervisor owns the fleet's set of running Model Workers.
type Supervisor struct {
	ctx        context.Context
	log        logging.Logger
	factories  BackendFactories

	mu      sync.RWMutex
	workers map[uuid.UUID]*worker.Handle

	group singleflight.Group
}

// New constructs a Supervisor bound to ctx: cancelling ctx stops every
// worker's mailbox goroutine.
func New(ctx context.Context, log logging.Logger, factories BackendFactories) *Supervisor {
	return &Supervisor{ctx: ctx, log: log, factories: factories, workers: make(map[uuid.UUID]*worker.Handle)}
}

// CreateWorker is idempotent get-or-create: if a worker already exists for
// descriptor.UUID, it is returned unchanged; otherwise exactly one worker
// is spawned (in Fresh state) and inserted into the registry, even under
// concurrent callers. CreateWorker never calls Load — loading the worker
// is a distinct step the caller invokes explicitly (see facade.Activate),
// so a worker that fails to load still stays registered here and a
// repeated Load attempt observes the same failure rather than losing the
// handle, per spec.md §8.
func (s *Supervisor) CreateWorker(descriptor *model.Descriptor) (*worker.Handle, error) {
	s.mu.RLock()
	if h, ok := s.workers[descriptor.UUID]; ok {
		s.mu.RUnlock()
		return h, nil
	}
	s.mu.RUnlock()

	result, err, _ := s.group.Do(descriptor.UUID.String(), func() (any, error) {
		s.mu.RLock()
		if h, ok := s.workers[descriptor.UUID]; ok {
			s.mu.RUnlock()
			return h, nil
		}
		s.mu.RUnlock()

		factory, ok := s.factories[descriptor.Backend]
		if !ok {
			return nil, fmt.Errorf("supervisor: no backend factory registered for kind %q", descriptor.Backend)
		}

		h := worker.Spawn(s.ctx, s.log, descriptor, factory)

		s.mu.Lock()
		s.workers[descriptor.UUID] = h
		s.mu.Unlock()

		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*worker.Handle), nil
}

// GetWorker returns the worker for modelUUID, if one exists.
func (s *Supervisor) GetWorker(modelUUID uuid.UUID) (*worker.Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.workers[modelUUID]
	return h, ok
}

// RemoveWorker unloads and forgets the worker for modelUUID, if one exists.
func (s *Supervisor) RemoveWorker(modelUUID uuid.UUID) error {
	s.mu.Lock()
	h, ok := s.workers[modelUUID]
	if ok {
		delete(s.workers, modelUUID)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return h.Unload(s.ctx)
}

// Ping returns a human-readable inventory line per active worker, the Go
// analogue of the original's PingMessage handler.
func (s *Supervisor) Ping() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := make([]string, 0, len(s.workers))
	for id, h := range s.workers {
		lines = append(lines, fmt.Sprintf("%s: %s", id, h.Identify(s.ctx)))
	}
	return lines
}
