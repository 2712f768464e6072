package local

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/modelfleet/fleetd/pkg/fleet/backend"
	"github.com/modelfleet/fleetd/pkg/fleet/ferrors"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/stretchr/testify/require"
)

func newLocalDescriptor() *model.Descriptor {
	return &model.Descriptor{
		ID: "local_echo", UUID: uuid.New(), ModelPath: "unused.gguf",
		Config: map[string]any{"model_architecture": "llama", "top_k": 20, "temperature": 0.5},
	}
}

func TestNewRejectsMissingArchitecture(t *testing.T) {
	factory := New(nil, EchoEngine{})
	_, err := factory(&model.Descriptor{ModelPath: "x.gguf", Config: map[string]any{}})
	require.True(t, ferrors.Is(err, ferrors.ConfigInvalid))
}

func TestNewRejectsConflictingVocabularySource(t *testing.T) {
	factory := New(nil, EchoEngine{})
	_, err := factory(&model.Descriptor{
		ModelPath: "x.gguf",
		Config: map[string]any{
			"model_architecture": "llama", "vocabulary_path": "a", "vocabulary_repository": "b",
		},
	})
	require.True(t, ferrors.Is(err, ferrors.ConfigInvalid))
}

func TestEchoEngineRoundTripsPrompt(t *testing.T) {
	factory := New(nil, EchoEngine{})
	adapter, err := factory(newLocalDescriptor())
	require.NoError(t, err)

	ctx := context.Background()
	userID := uuid.New()
	sessionID, err := adapter.CreateSession(ctx, userID, nil)
	require.NoError(t, err)

	events, err := adapter.PromptSession(ctx, backend.PromptRequest{
		SessionID: sessionID, UserID: userID, Prompt: "hi there", Cancel: model.NewCancelToken(),
	})
	require.NoError(t, err)

	var completion string
	for ev := range events {
		if c, ok := ev.Payload.(model.Completion); ok {
			completion = c.Previous
		}
	}
	require.Equal(t, "hi there", completion)
}

func TestConcurrentPromptOnSameSessionIsBusy(t *testing.T) {
	engine := blockingEngine{unblock: make(chan struct{})}
	t.Cleanup(func() { close(engine.unblock) })
	factory := New(nil, engine)
	adapter, err := factory(newLocalDescriptor())
	require.NoError(t, err)

	ctx := context.Background()
	userID := uuid.New()
	sessionID, err := adapter.CreateSession(ctx, userID, nil)
	require.NoError(t, err)

	_, err = adapter.PromptSession(ctx, backend.PromptRequest{SessionID: sessionID, UserID: userID, Prompt: "a", Cancel: model.NewCancelToken()})
	require.NoError(t, err)

	_, err = adapter.PromptSession(ctx, backend.PromptRequest{SessionID: sessionID, UserID: userID, Prompt: "b", Cancel: model.NewCancelToken()})
	require.True(t, ferrors.Is(err, ferrors.BusySession))
}

type blockingEngine struct{ unblock chan struct{} }

func (b blockingEngine) Generate(ctx context.Context, prompt string, sampler Sampler, cancel *model.CancelToken, emit func(token string) bool) {
	<-b.unblock
}
