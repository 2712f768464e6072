// Package local implements the local-inference Backend Adapter: a
// GGUF-backed model running in-process on a dedicated per-model goroutine,
// per spec.md §5's "dedicated blocking thread" requirement.
//
// Grounded on original_source/src-tauri/src/connectors/llmrs.rs's sampler
// config contract (top_k/top_p/repeat_penalty/temperature/bias_tokens/
// repetition_penalty_last_n) and vocabulary-source mutual exclusion rule,
// and on _examples/ericcurtin-model-runner/pkg/distribution/format/gguf.go's
// GGUF parsing calls.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	parser "github.com/gpustack/gguf-parser-go"
	"github.com/google/uuid"
	"github.com/modelfleet/fleetd/pkg/fleet/backend"
	"github.com/modelfleet/fleetd/pkg/fleet/ferrors"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/modelfleet/fleetd/pkg/logging"
)

// Sampler holds the per-model generation knobs, defaulted the way the
// original's llm::samplers::TopPTopK::default() is, then overridden from
// config.
type Sampler struct {
	TopK                   int
	TopP                   float64
	RepeatPenalty          float64
	Temperature            float64
	BiasTokens             string
	RepetitionPenaltyLastN int
}

func defaultSampler() Sampler {
	return Sampler{TopK: 40, TopP: 0.95, RepeatPenalty: 1.3, Temperature: 0.8, RepetitionPenaltyLastN: 64}
}

// Engine runs one generation to completion, emitting tokens on out and
// honoring cancel. Swappable so tests don't require a real GGUF weight
// file and a real llama.cpp-equivalent runtime.
type Engine interface {
	Generate(ctx context.Context, prompt string, sampler Sampler, cancel *model.CancelToken, emit func(token string) bool)
}

// EchoEngine is a deterministic Engine used by default and by tests: it
// emits the prompt back token-by-token (split on spaces), one call to emit
// per token.
type EchoEngine struct{}

func (EchoEngine) Generate(ctx context.Context, prompt string, sampler Sampler, cancel *model.CancelToken, emit func(token string) bool) {
	tokens := splitTokens(prompt)
	for _, tok := range tokens {
		select {
		case <-cancel.Done():
			return
		case <-ctx.Done():
			return
		default:
		}
		if !emit(tok) {
			return
		}
	}
}

func splitTokens(s string) []string {
	var tokens []string
	var cur []rune
	for _, r := range s {
		if r == ' ' {
			if len(cur) > 0 {
				tokens = append(tokens, string(cur)+" ")
				cur = nil
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		tokens = append(tokens, string(cur))
	}
	return tokens
}

// Backend is the local-inference Adapter. Each prompt runs the engine on
// its own goroutine; prompts on different sessions run concurrently, and a
// second prompt on a session that already has one in flight is rejected
// with BusySession (Open Question resolution, see DESIGN.md).
type Backend struct {
	log     logging.Logger
	engine  Engine
	sampler Sampler

	mu       sync.Mutex // guards sessions and busy
	sessions map[uuid.UUID]*model.Session
	busy     map[uuid.UUID]bool
	modelUUID uuid.UUID
}

// New validates descriptor.Config at construction time (architecture,
// model path, vocabulary source mutual exclusion) and returns a Factory.
// When engine is nil, EchoEngine is used.
func New(log logging.Logger, engine Engine) backend.Factory {
	if engine == nil {
		engine = EchoEngine{}
	}
	return func(descriptor *model.Descriptor) (backend.Adapter, error) {
		if _, ok := descriptor.Config["model_architecture"].(string); !ok {
			return nil, ferrors.New(ferrors.ConfigInvalid, "local backend requires config[\"model_architecture\"]")
		}
		if descriptor.ModelPath == "" {
			return nil, ferrors.New(ferrors.ConfigInvalid, "local backend requires Descriptor.ModelPath")
		}
		_, hasVocabPath := descriptor.Config["vocabulary_path"]
		_, hasVocabRepo := descriptor.Config["vocabulary_repository"]
		if hasVocabPath && hasVocabRepo {
			return nil, ferrors.New(ferrors.ConfigInvalid, "cannot specify both vocabulary_path and vocabulary_repository")
		}

		s := defaultSampler()
		applySamplerConfig(&s, descriptor.Config)

		return &Backend{
			log: log, engine: engine, sampler: s,
			sessions: make(map[uuid.UUID]*model.Session),
			busy:     make(map[uuid.UUID]bool),
			modelUUID: descriptor.UUID,
		}, nil
	}
}

func applySamplerConfig(s *Sampler, config map[string]any) {
	if v, ok := asInt(config["top_k"]); ok {
		s.TopK = v
	}
	if v, ok := asFloat(config["top_p"]); ok {
		s.TopP = v
	}
	if v, ok := asFloat(config["repeat_penalty"]); ok {
		s.RepeatPenalty = v
	}
	if v, ok := asFloat(config["temperature"]); ok {
		s.Temperature = v
	}
	if v, ok := config["bias_tokens"].(string); ok {
		s.BiasTokens = v
	}
	if v, ok := asInt(config["repetition_penalty_last_n"]); ok {
		s.RepetitionPenaltyLastN = v
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Load parses the GGUF header at descriptor.ModelPath to validate the
// weight file and to populate Descriptor.Config["architecture"] /
// ["parameters"] when the caller didn't supply them.
func (b *Backend) Load(ctx context.Context, descriptor *model.Descriptor) error {
	shards := parser.CompleteShardGGUFFilename(descriptor.ModelPath)
	path := descriptor.ModelPath
	if len(shards) > 0 {
		path = shards[0]
	}

	gguf, err := parser.ParseGGUFFile(path)
	if err != nil {
		return ferrors.Wrap(ferrors.ConfigInvalid, err, fmt.Sprintf("parsing GGUF file %s", path))
	}

	meta := gguf.Metadata()
	if _, ok := descriptor.Config["architecture"]; !ok {
		descriptor.Config["architecture"] = meta.Architecture
	}
	if _, ok := descriptor.Config["parameters"]; !ok {
		descriptor.Config["parameters"] = meta.Parameters.String()
	}
	return nil
}

func (b *Backend) Unload(ctx context.Context) error {
	return nil
}

func (b *Backend) CreateSession(ctx context.Context, userID uuid.UUID, sessionParameters map[string]any) (uuid.UUID, error) {
	now := time.Now().UTC()
	sess := &model.Session{
		ID: uuid.New(), Started: now, LastCalled: now,
		UserID: userID, ModelUUID: b.modelUUID, SessionParameters: sessionParameters,
	}
	b.mu.Lock()
	b.sessions[sess.ID] = sess
	b.mu.Unlock()
	return sess.ID, nil
}

func (b *Backend) GetSessions(ctx context.Context, userID uuid.UUID) ([]model.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []model.Session
	for _, s := range b.sessions {
		if userID == uuid.Nil || s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (b *Backend) PromptSession(ctx context.Context, req backend.PromptRequest) (<-chan model.LLMEvent, error) {
	b.mu.Lock()
	sess, ok := b.sessions[req.SessionID]
	if !ok {
		b.mu.Unlock()
		return nil, ferrors.New(ferrors.UnknownSession, req.SessionID.String())
	}
	if b.busy[req.SessionID] {
		b.mu.Unlock()
		return nil, ferrors.New(ferrors.BusySession, req.SessionID.String())
	}
	b.busy[req.SessionID] = true
	b.mu.Unlock()

	out := make(chan model.LLMEvent, 100)
	go func() {
		defer close(out)
		defer func() {
			b.mu.Lock()
			b.busy[req.SessionID] = false
			b.mu.Unlock()
		}()

		itemID := uuid.New()
		var previous string
		b.engine.Generate(ctx, req.Prompt, b.sampler, req.Cancel, func(token string) bool {
			out <- model.LLMEvent{StreamID: itemID, ModelUUID: b.modelUUID, Session: *sess, Payload: model.Progress{Previous: previous, Next: token}}
			previous += token
			return true
		})

		if req.Cancel.Cancelled() {
			out <- model.LLMEvent{StreamID: itemID, ModelUUID: b.modelUUID, Session: *sess, Payload: model.Completion{Previous: previous}}
			out <- model.LLMEvent{StreamID: itemID, ModelUUID: b.modelUUID, Session: *sess, Payload: model.ChannelClose{}}
			return
		}
		out <- model.LLMEvent{StreamID: itemID, ModelUUID: b.modelUUID, Session: *sess, Payload: model.Completion{Previous: previous}}
		out <- model.LLMEvent{StreamID: itemID, ModelUUID: b.modelUUID, Session: *sess, Payload: model.ChannelClose{}}
	}()

	return out, nil
}
