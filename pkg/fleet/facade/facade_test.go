package facade

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/modelfleet/fleetd/pkg/fleet/backend/hosted"
	"github.com/modelfleet/fleetd/pkg/fleet/backend/local"
	"github.com/modelfleet/fleetd/pkg/fleet/ferrors"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/modelfleet/fleetd/pkg/fleet/supervisor"
	"github.com/stretchr/testify/require"
)

func newHostedSupervisor(ctx context.Context, t *testing.T) *supervisor.Supervisor {
	return supervisor.New(ctx, nil, supervisor.BackendFactories{
		model.BackendHosted: hosted.New(nil, t.TempDir(), nil),
	})
}

func openAIAdaDescriptor() *model.Descriptor {
	factories := model.FactoryDescriptors()
	for _, d := range factories {
		if d.ID == "openai_ada" {
			return d
		}
	}
	panic("openai_ada fixture missing")
}

func TestBoopEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	sup := newHostedSupervisor(ctx, t)
	descriptor := openAIAdaDescriptor()

	activated, err := Activate(ctx, descriptor, sup)
	require.NoError(t, err)

	user := model.User{ID: uuid.New(), Permissions: model.Permissions{PermSession: true}}
	result, err := activated.CallLLM(ctx, "hi", map[string]any{}, map[string]any{}, user)
	require.NoError(t, err)

	var gotCompletion bool
	for ev := range result.Events {
		if c, ok := ev.Payload.(model.Completion); ok {
			require.Equal(t, "boop", c.Previous)
			gotCompletion = true
		}
	}
	require.True(t, gotCompletion)
}

func TestParameterReconciliationDropsNonWhitelistedKeys(t *testing.T) {
	ctx := context.Background()
	sup := newHostedSupervisor(ctx, t)
	descriptor := openAIAdaDescriptor() // UserParameters: max_tokens, temperature

	activated, err := Activate(ctx, descriptor, sup)
	require.NoError(t, err)

	user := model.User{ID: uuid.New(), Permissions: model.Permissions{PermSession: true}}
	created, err := activated.CreateSession(ctx, map[string]any{}, user)
	require.NoError(t, err)

	result, err := activated.PromptSession(ctx, created.SessionID, "hi", map[string]any{
		"temperature": 0.99, // whitelisted: overlays
		"top_p":       0.1,  // not whitelisted: must be dropped
	}, user)
	require.NoError(t, err)

	require.Equal(t, 0.99, result.Parameters["temperature"])
	_, hasTopP := result.Parameters["top_p"]
	require.False(t, hasTopP)
	require.Equal(t, 64, result.Parameters["max_tokens"]) // default preserved

	for range result.Events {
	}
}

func TestInterruptSessionCancelsInFlightGeneration(t *testing.T) {
	ctx := context.Background()
	sup := supervisor.New(ctx, nil, supervisor.BackendFactories{
		model.BackendLocal: local.New(nil, blockingEngine{}),
	})
	descriptor := &model.Descriptor{
		ID: "local_echo", UUID: uuid.New(), ModelPath: writeTestGGUF(t), Backend: model.BackendLocal,
		Config: map[string]any{"model_architecture": "llama"},
	}

	activated, err := Activate(ctx, descriptor, sup)
	require.NoError(t, err)

	user := model.User{ID: uuid.New(), Permissions: model.Permissions{PermSession: true}}
	created, err := activated.CreateSession(ctx, nil, user)
	require.NoError(t, err)

	prompted, err := activated.PromptSession(ctx, created.SessionID, "hi", nil, user)
	require.NoError(t, err)

	interrupted, err := activated.InterruptSession(ctx, created.SessionID, user)
	require.NoError(t, err)
	require.True(t, interrupted)

	for range prompted.Events {
	}

	again, err := activated.InterruptSession(ctx, created.SessionID, user)
	require.NoError(t, err)
	require.False(t, again)
}

func TestCreateSessionDeniesWithoutSessionPermission(t *testing.T) {
	ctx := context.Background()
	sup := newHostedSupervisor(ctx, t)
	descriptor := openAIAdaDescriptor()

	activated, err := Activate(ctx, descriptor, sup)
	require.NoError(t, err)

	user := model.User{ID: uuid.New()} // no permissions granted
	_, err = activated.CreateSession(ctx, map[string]any{}, user)
	require.True(t, ferrors.Is(err, ferrors.PermissionDenied))
}

// writeTestGGUF writes a minimal GGUF v3 file (no tensors, one
// general.architecture entry) that the local backend's Load can parse.
func writeTestGGUF(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	putString := func(s string) {
		binary.Write(&buf, binary.LittleEndian, uint64(len(s)))
		buf.WriteString(s)
	}
	buf.WriteString("GGUF")
	binary.Write(&buf, binary.LittleEndian, uint32(3)) // version
	binary.Write(&buf, binary.LittleEndian, uint64(0)) // tensor count
	binary.Write(&buf, binary.LittleEndian, uint64(1)) // metadata entry count
	putString("general.architecture")
	binary.Write(&buf, binary.LittleEndian, uint32(8)) // string value type
	putString("llama")
	for buf.Len()%32 != 0 {
		buf.WriteByte(0)
	}
	path := filepath.Join(t.TempDir(), "model.gguf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

type blockingEngine struct{}

func (blockingEngine) Generate(ctx context.Context, prompt string, sampler local.Sampler, cancel *model.CancelToken, emit func(token string) bool) {
	<-cancel.Done()
}
