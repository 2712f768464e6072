package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/modelfleet/fleetd/pkg/fleet/backend"
	"github.com/modelfleet/fleetd/pkg/fleet/backend/local"
	"github.com/modelfleet/fleetd/pkg/fleet/ferrors"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/stretchr/testify/require"
)

func newEchoDescriptor() *model.Descriptor {
	return &model.Descriptor{
		ID: "local_echo", UUID: uuid.New(), ModelPath: "x.gguf",
		Config: map[string]any{"model_architecture": "llama"},
	}
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

func TestWorkerLifecycle(t *testing.T) {
	ctx := context.Background()
	descriptor := newEchoDescriptor()
	descriptor.ModelPath = writeTestGGUF(t)
	h := Spawn(ctx, nil, descriptor, local.New(nil, local.EchoEngine{}))

	require.Equal(t, Fresh, h.State())
	require.NoError(t, h.Load(ctx))
	require.Equal(t, Ready, h.State())

	userID := uuid.New()
	sessionID, err := h.CreateSession(ctx, userID, nil)
	require.NoError(t, err)

	events, err := h.PromptSession(ctx, backend.PromptRequest{SessionID: sessionID, UserID: userID, Prompt: "hi", Cancel: model.NewCancelToken()})
	require.NoError(t, err)
	var sawCompletion bool
	for ev := range events {
		if _, ok := ev.Payload.(model.Completion); ok {
			sawCompletion = true
		}
	}
	require.True(t, sawCompletion)

	require.NoError(t, h.Unload(ctx))
	require.Equal(t, Gone, h.State())
}

func TestWorkerOperationsBeforeLoadAreRejected(t *testing.T) {
	ctx := context.Background()
	h := Spawn(ctx, nil, newEchoDescriptor(), local.New(nil, local.EchoEngine{}))

	_, err := h.CreateSession(ctx, uuid.New(), nil)
	require.True(t, ferrors.Is(err, ferrors.NotLoaded))
}

func TestWorkerLoadFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	descriptor := &model.Descriptor{UUID: uuid.New(), Config: map[string]any{}} // missing model_architecture
	h := Spawn(ctx, nil, descriptor, local.New(nil, local.EchoEngine{}))

	err := h.Load(ctx)
	require.Error(t, err)
	require.Equal(t, Gone, h.State())

	_, err = h.CreateSession(ctx, uuid.New(), nil)
	require.True(t, ferrors.Is(err, ferrors.WorkerDead))
}
