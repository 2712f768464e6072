package hosted

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/modelfleet/fleetd/pkg/fleet/backend"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/stretchr/testify/require"
)

func newTestDescriptor() *model.Descriptor {
	return &model.Descriptor{
		ID: "openai_ada", UUID: uuid.New(),
		Config: map[string]any{"endpoint": "https://api.openai.com/v1/completions", "model": "ada"},
	}
}

func TestBoopScenario(t *testing.T) {
	factory := New(nil, t.TempDir(), nil)
	adapter, err := factory(newTestDescriptor())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, adapter.Load(ctx, newTestDescriptor()))

	userID := uuid.New()
	sessionID, err := adapter.CreateSession(ctx, userID, map[string]any{})
	require.NoError(t, err)

	events, err := adapter.PromptSession(ctx, backend.PromptRequest{
		SessionID: sessionID, UserID: userID, Prompt: "hi", Cancel: model.NewCancelToken(),
	})
	require.NoError(t, err)

	var payloads []model.EventPayload
	for ev := range events {
		payloads = append(payloads, ev.Payload)
	}

	require.Len(t, payloads, 3)
	progress, ok := payloads[0].(model.Progress)
	require.True(t, ok)
	require.Equal(t, "boop", progress.Next)
	completion, ok := payloads[1].(model.Completion)
	require.True(t, ok)
	require.Equal(t, "boop", completion.Previous)
	_, ok = payloads[2].(model.ChannelClose)
	require.True(t, ok)
}

func TestCreateSessionPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	descriptor := newTestDescriptor()
	factory := New(nil, dir, nil)

	adapter, err := factory(descriptor)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, adapter.Load(ctx, descriptor))

	userID := uuid.New()
	sessionID, err := adapter.CreateSession(ctx, userID, map[string]any{"k": "v"})
	require.NoError(t, err)

	reopened, err := factory(descriptor)
	require.NoError(t, err)
	require.NoError(t, reopened.Load(ctx, descriptor))

	sessions, err := reopened.GetSessions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, sessionID, sessions[0].ID)
}

func TestLoadTreatsCorruptFileAsEmpty(t *testing.T) {
	dir := t.TempDir()
	descriptor := newTestDescriptor()
	path := dir + "/hosted-" + descriptor.UUID.String()
	require.NoError(t, writeGarbage(path))

	factory := New(nil, dir, nil)
	adapter, err := factory(descriptor)
	require.NoError(t, err)
	require.NoError(t, adapter.Load(context.Background(), descriptor))

	sessions, err := adapter.GetSessions(context.Background(), uuid.Nil)
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func writeGarbage(path string) error {
	return os.WriteFile(path, []byte("not a real session file"), 0o600)
}
