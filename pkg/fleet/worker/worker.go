// Package worker implements the Model Worker of spec.md §4.2: a
// single-threaded mailbox actor owning exactly one Backend Adapter
// instance, moving through the state machine Fresh -> Ready -> Unloading ->
// Gone.
//
// Grounded on original_source/src-tauri/src/connectors/llm_actor.rs
// (LLMActor / ID / Load messages) and
// _examples/ericcurtin-model-runner/pkg/inference/scheduling/scheduler.go's
// errgroup-supervised run loop, reimplementing the Rust actor-framework
// mailbox as a goroutine draining a channel of closures.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelfleet/fleetd/pkg/fleet/backend"
	"github.com/modelfleet/fleetd/pkg/fleet/ferrors"
	"github.com/modelfleet/fleetd/pkg/fleet/metrics"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/modelfleet/fleetd/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// State is the Model Worker's lifecycle state, per spec.md §4.2.
type State string

const (
	Fresh     State = "fresh"
	Ready     State = "ready"
	Unloading State = "unloading"
	Gone      State = "gone"
)

// Handle is the externally visible reference to a running Worker: the
// Worker Handle of spec.md §3. All methods are safe for concurrent use —
// they serialize through the worker's mailbox, except PromptSession, whose
// adapter call runs on its own goroutine so concurrent prompts to
// independent sessions genuinely run concurrently (spec.md §4.2).
type Handle struct {
	ModelUUID uuid.UUID
	Descriptor *model.Descriptor

	mailbox   chan func()
	cancelRun context.CancelFunc
	group     *errgroup.Group

	w *worker
}

// worker holds everything only ever touched from the mailbox goroutine.
type worker struct {
	log        logging.Logger
	descriptor *model.Descriptor
	factory    backend.Factory
	adapter    backend.Adapter
	state      State
	loadErr    error
}

// Spawn constructs a Handle and starts its mailbox goroutine in Fresh
// state. Callers must call Load before any other operation succeeds.
func Spawn(ctx context.Context, log logging.Logger, descriptor *model.Descriptor, factory backend.Factory) *Handle {
	runCtx, cancel := context.WithCancel(ctx)
	group, runCtx := errgroup.WithContext(runCtx)

	w := &worker{log: log, descriptor: descriptor, factory: factory, state: Fresh}
	h := &Handle{
		ModelUUID: descriptor.UUID, Descriptor: descriptor,
		mailbox: make(chan func(), 32), cancelRun: cancel, group: group, w: w,
	}

	group.Go(func() error {
		for {
			select {
			case <-runCtx.Done():
				return nil
			case fn, ok := <-h.mailbox:
				if !ok {
					return nil
				}
				w.dispatch(fn)
			}
		}
	})

	return h
}

// dispatch recovers an InternalInvariant panic into a Failed (Gone)
// transition, per spec.md §7's rule that InternalInvariant is the only
// kind a worker mailbox goroutine may panic with.
func (w *worker) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.state = Gone
		}
	}()
	fn()
}

// call runs fn on the mailbox goroutine and blocks the caller until it
// completes — the "ask" pattern.
func (h *Handle) call(fn func()) {
	done := make(chan struct{})
	h.mailbox <- func() {
		fn()
		close(done)
	}
	<-done
}

// State returns the worker's current lifecycle state.
func (h *Handle) State() State {
	var s State
	h.call(func() { s = h.w.state })
	return s
}

// Identify is the ID message of the original actor: a liveness probe
// returning a human-readable worker identity as long as the mailbox is
// still being serviced.
func (h *Handle) Identify(ctx context.Context) string {
	var result string
	h.call(func() { result = fmt.Sprintf("worker<%s:%s>", h.ModelUUID, h.w.state) })
	return result
}

// Load is the Load message of the original actor: it moves Fresh -> Ready
// by constructing and loading the backend adapter. Load is idempotent: a
// call against an already-Ready worker is a no-op, and a call repeated
// after a failed Load returns the same cached error rather than
// re-attempting construction, matching spec.md §8's scenario of a
// CreateWorker that succeeds while Load keeps failing with the same
// error. A load failure is terminal for this worker only (spec.md §4.1):
// the worker moves to Gone and every subsequent non-Load call returns
// WorkerDead.
func (h *Handle) Load(ctx context.Context) error {
	var err error
	var transitioned bool
	h.call(func() {
		switch h.w.state {
		case Ready:
			return
		case Fresh:
			adapter, ferr := h.w.factory(h.w.descriptor)
			if ferr != nil {
				h.w.state = Gone
				h.w.loadErr = ferr
				err = ferr
				return
			}
			if lerr := adapter.Load(ctx, h.w.descriptor); lerr != nil {
				h.w.state = Gone
				h.w.loadErr = lerr
				err = lerr
				return
			}
			h.w.adapter = adapter
			h.w.state = Ready
			transitioned = true
		default:
			if h.w.loadErr != nil {
				err = h.w.loadErr
				return
			}
			err = ferrors.New(ferrors.InternalInvariant, "Load called outside Fresh state")
		}
	})
	if transitioned {
		metrics.Default().ActiveWorkers.Add(ctx, 1)
	}
	return err
}

// Unload moves Ready -> Unloading -> Gone, releasing the backend adapter.
// Called at most once per worker. The mailbox keeps being serviced after
// Unload, so later calls report the Gone state (WorkerDead) instead of
// blocking; the mailbox goroutine stops when the Spawn context is cancelled.
func (h *Handle) Unload(ctx context.Context) error {
	var err error
	var unloaded bool
	h.call(func() {
		if h.w.state != Ready {
			err = ferrors.New(ferrors.WorkerDead, "Unload called on a worker that is not Ready")
			return
		}
		h.w.state = Unloading
		if uerr := h.w.adapter.Unload(ctx); uerr != nil {
			err = uerr
		}
		h.w.state = Gone
		unloaded = true
	})
	if unloaded {
		metrics.Default().ActiveWorkers.Add(ctx, -1)
	}
	return err
}

// GetSessions delegates to the adapter, requiring Ready state.
func (h *Handle) GetSessions(ctx context.Context, userID uuid.UUID) ([]model.Session, error) {
	var sessions []model.Session
	var err error
	h.call(func() {
		if h.w.state != Ready {
			err = deadErr(h.w.state)
			return
		}
		sessions, err = h.w.adapter.GetSessions(ctx, userID)
	})
	return sessions, err
}

// CreateSession delegates to the adapter, requiring Ready state.
func (h *Handle) CreateSession(ctx context.Context, userID uuid.UUID, sessionParameters map[string]any) (uuid.UUID, error) {
	var id uuid.UUID
	var err error
	h.call(func() {
		if h.w.state != Ready {
			err = deadErr(h.w.state)
			return
		}
		id, err = h.w.adapter.CreateSession(ctx, userID, sessionParameters)
	})
	if err == nil {
		metrics.Default().ActiveSessions.Add(ctx, 1)
	}
	return id, err
}

// PromptSession launches the adapter call on its own goroutine (never the
// mailbox goroutine) so that prompts to distinct sessions run concurrently
// and a slow/blocked generation never stalls the mailbox — the backpressure
// rule of spec.md §4.4/§5. It returns as soon as the adapter has accepted
// the request, before the first token is produced.
func (h *Handle) PromptSession(ctx context.Context, req backend.PromptRequest) (<-chan model.LLMEvent, error) {
	type result struct {
		events <-chan model.LLMEvent
		err    error
	}
	resultCh := make(chan result, 1)

	h.call(func() {
		if h.w.state != Ready {
			resultCh <- result{err: deadErr(h.w.state)}
			return
		}
		adapter := h.w.adapter
		go func() {
			events, err := adapter.PromptSession(ctx, req)
			resultCh <- result{events: events, err: err}
		}()
	})

	res := <-resultCh
	if res.err != nil {
		return nil, res.err
	}
	metrics.Default().RecordPromptStarted(ctx, h.ModelUUID.String())
	return observePromptOutcome(h.ModelUUID.String(), req.Cancel, res.events), nil
}

// observePromptOutcome wraps the adapter's event channel in a pass-through
// forwarding goroutine that records the prompt's terminal outcome and
// latency once the channel closes, without altering the events a caller
// sees or their ordering.
func observePromptOutcome(modelID string, cancel *model.CancelToken, in <-chan model.LLMEvent) <-chan model.LLMEvent {
	out := make(chan model.LLMEvent)
	started := time.Now()

	go func() {
		defer close(out)
		outcome := "completed"
		for ev := range in {
			if _, ok := ev.Payload.(model.Error); ok {
				outcome = "errored"
			}
			out <- ev
		}
		if outcome == "completed" && cancel != nil && cancel.Cancelled() {
			outcome = "cancelled"
		}
		metrics.Default().RecordPromptEnded(context.Background(), modelID, outcome, time.Since(started).Seconds())
	}()

	return out
}

func deadErr(s State) error {
	if s == Fresh {
		return ferrors.New(ferrors.NotLoaded, "worker has not completed Load")
	}
	return ferrors.New(ferrors.WorkerDead, fmt.Sprintf("worker is in state %s", s))
}
