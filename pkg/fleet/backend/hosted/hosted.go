// Package hosted implements the remote-hosted Backend Adapter: an
// OpenAI-like API fronted by an endpoint/model/api_key_ref config contract.
//
// Grounded on original_source/src-tauri/src/connectors/openai.rs, including
// its deterministic "boop" response used by spec.md §8 scenario 1. A real
// deployment supplies a Caller that speaks to the actual hosted API; the
// default Caller preserves the original's stub behavior so the daemon is
// exercisable without network access.
package hosted

import (
	"context"
	"encoding/binary"
	"encoding/gob"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moby/sys/atomicwriter"
	"github.com/modelfleet/fleetd/pkg/fleet/backend"
	"github.com/modelfleet/fleetd/pkg/fleet/ferrors"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/modelfleet/fleetd/pkg/logging"
)

// sessionFileVersionV1 is the leading byte of a persisted session file,
// resolving spec.md §9 Open Question (b).
const sessionFileVersionV1 byte = 0x01

func init() {
	// Parameter maps hold caller-supplied JSON-like values; register the
	// concrete types gob needs to round-trip an interface{} field.
	gob.Register(int(0))
	gob.Register(float64(0))
	gob.Register(string(""))
	gob.Register(bool(false))
	gob.Register([]any(nil))
	gob.Register(map[string]any(nil))
}

// Caller issues one completion request against the hosted API and returns
// the full response text. Adapters that need real streaming can still
// satisfy this by buffering internally; PromptSession always emits at
// least one Progress event followed by a Completion event regardless of
// how many chunks Caller itself produced.
type Caller interface {
	Complete(ctx context.Context, endpoint, modelName, apiKeyRef, prompt string, parameters map[string]any) (string, error)
}

// StubCaller reproduces the original connector's deterministic "boop"
// response, used as the default Caller for tests and for scenario fixtures.
type StubCaller struct{}

func (StubCaller) Complete(ctx context.Context, endpoint, modelName, apiKeyRef, prompt string, parameters map[string]any) (string, error) {
	return "boop", nil
}

// Backend is the hosted Adapter. One Backend instance per loaded model.
type Backend struct {
	log      logging.Logger
	caller   Caller
	dataPath string

	endpoint  string
	modelName string
	apiKeyRef string

	mu       sync.RWMutex
	sessions map[uuid.UUID]*model.Session
	locks    map[uuid.UUID]*sync.Mutex
	modelUUID uuid.UUID
}

// New constructs a hosted Backend. dataDir is the directory holding
// persisted session files (spec.md §6); caller may be nil to use StubCaller.
func New(log logging.Logger, dataDir string, caller Caller) backend.Factory {
	if caller == nil {
		caller = StubCaller{}
	}
	return func(descriptor *model.Descriptor) (backend.Adapter, error) {
		endpoint, _ := descriptor.Config["endpoint"].(string)
		modelName, _ := descriptor.Config["model"].(string)
		apiKeyRef, _ := descriptor.Config["api_key_ref"].(string)
		if endpoint == "" {
			return nil, ferrors.New(ferrors.ConfigInvalid, "hosted backend requires config[\"endpoint\"]")
		}
		b := &Backend{
			log:       log,
			caller:    caller,
			dataPath:  filepath.Join(dataDir, fmt.Sprintf("hosted-%s", descriptor.UUID)),
			endpoint:  endpoint,
			modelName: modelName,
			apiKeyRef: apiKeyRef,
			sessions:  make(map[uuid.UUID]*model.Session),
			locks:     make(map[uuid.UUID]*sync.Mutex),
			modelUUID: descriptor.UUID,
		}
		return b, nil
	}
}

func (b *Backend) Load(ctx context.Context, descriptor *model.Descriptor) error {
	sessions, err := loadSessionFile(b.dataPath)
	if err != nil {
		if b.log != nil {
			b.log.WithError(err).Warnf("hosted: treating session file %s as empty", b.dataPath)
		}
		sessions = nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range sessions {
		s := sessions[i]
		b.sessions[s.ID] = &s
		b.locks[s.ID] = &sync.Mutex{}
	}
	return nil
}

func (b *Backend) Unload(ctx context.Context) error {
	return b.persist()
}

func (b *Backend) CreateSession(ctx context.Context, userID uuid.UUID, sessionParameters map[string]any) (uuid.UUID, error) {
	now := time.Now().UTC()
	sess := &model.Session{
		ID:                uuid.New(),
		Started:           now,
		LastCalled:        now,
		UserID:            userID,
		ModelUUID:         b.modelUUID,
		SessionParameters: sessionParameters,
	}

	b.mu.Lock()
	b.sessions[sess.ID] = sess
	b.locks[sess.ID] = &sync.Mutex{}
	b.mu.Unlock()

	if err := b.persist(); err != nil {
		return uuid.Nil, ferrors.Wrap(ferrors.BackendUnavailable, err, "persisting new session")
	}
	return sess.ID, nil
}

func (b *Backend) GetSessions(ctx context.Context, userID uuid.UUID) ([]model.Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []model.Session
	for _, s := range b.sessions {
		if userID == uuid.Nil || s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (b *Backend) PromptSession(ctx context.Context, req backend.PromptRequest) (<-chan model.LLMEvent, error) {
	b.mu.RLock()
	sess, ok := b.sessions[req.SessionID]
	lock := b.locks[req.SessionID]
	b.mu.RUnlock()
	if !ok {
		return nil, ferrors.New(ferrors.UnknownSession, req.SessionID.String())
	}

	out := make(chan model.LLMEvent, 100)
	go func() {
		defer close(out)
		lock.Lock()
		defer lock.Unlock()

		itemID := uuid.New()
		now := time.Now().UTC()
		item := model.SessionHistoryItem{
			ID: itemID, UpdatedTimestamp: now, CallTimestamp: now,
			Parameters: req.Parameters, Input: req.Prompt,
		}

		b.mu.Lock()
		sess.Items = append(sess.Items, item)
		sess.LastCalled = now
		b.mu.Unlock()

		select {
		case <-req.Cancel.Done():
			out <- model.LLMEvent{StreamID: itemID, ModelUUID: b.modelUUID, Session: *sess, Payload: model.Completion{Previous: ""}}
			out <- model.LLMEvent{StreamID: itemID, ModelUUID: b.modelUUID, Session: *sess, Payload: model.ChannelClose{}}
			return
		default:
		}

		text, err := b.caller.Complete(ctx, b.endpoint, b.modelName, b.apiKeyRef, req.Prompt, req.Parameters)
		if err != nil {
			out <- model.LLMEvent{StreamID: itemID, ModelUUID: b.modelUUID, Session: *sess, Payload: model.Error{Message: err.Error()}}
			out <- model.LLMEvent{StreamID: itemID, ModelUUID: b.modelUUID, Session: *sess, Payload: model.ChannelClose{}}
			return
		}

		out <- model.LLMEvent{StreamID: itemID, ModelUUID: b.modelUUID, Session: *sess, Payload: model.Progress{Previous: "", Next: text}}
		out <- model.LLMEvent{StreamID: itemID, ModelUUID: b.modelUUID, Session: *sess, Payload: model.Completion{Previous: text}}
		out <- model.LLMEvent{StreamID: itemID, ModelUUID: b.modelUUID, Session: *sess, Payload: model.ChannelClose{}}

		b.mu.Lock()
		for i := range sess.Items {
			if sess.Items[i].ID == itemID {
				sess.Items[i].Output = text
				sess.Items[i].Complete = true
			}
		}
		b.mu.Unlock()
		if err := b.persist(); err != nil && b.log != nil {
			b.log.WithError(err).Warnf("hosted: failed to persist session %s after prompt", sess.ID)
		}
	}()

	return out, nil
}

func (b *Backend) persist() error {
	b.mu.RLock()
	sessions := make([]model.Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, *s)
	}
	b.mu.RUnlock()

	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(sessions); err != nil {
		return err
	}

	var framed bytes.Buffer
	framed.WriteByte(sessionFileVersionV1)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(body.Len()))
	framed.Write(lenBuf[:])
	framed.Write(body.Bytes())

	return atomicwriter.WriteFile(b.dataPath, framed.Bytes(), 0o600)
}

func loadSessionFile(path string) ([]model.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) < 5 {
		return nil, fmt.Errorf("hosted: session file %s too short", path)
	}
	if data[0] != sessionFileVersionV1 {
		return nil, fmt.Errorf("hosted: session file %s has unknown version byte %#x", path, data[0])
	}
	n := binary.BigEndian.Uint32(data[1:5])
	if uint32(len(data)-5) < n {
		return nil, fmt.Errorf("hosted: session file %s is truncated", path)
	}
	var sessions []model.Session
	if err := gob.NewDecoder(bytes.NewReader(data[5 : 5+n])).Decode(&sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}
