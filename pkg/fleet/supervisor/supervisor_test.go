package supervisor

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/modelfleet/fleetd/pkg/fleet/backend/local"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/stretchr/testify/require"
)

func newEchoDescriptor() *model.Descriptor {
	return &model.Descriptor{
		ID: "local_echo", UUID: uuid.New(), ModelPath: "x.gguf", Backend: model.BackendLocal,
		Config: map[string]any{"model_architecture": "llama"},
	}
}

func newInvalidDescriptor() *model.Descriptor {
	return &model.Descriptor{
		ID: "local_bad", UUID: uuid.New(), ModelPath: "x.gguf", Backend: model.BackendLocal,
		Config: map[string]any{}, // missing model_architecture: local.New's factory rejects this
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

func newTestSupervisor(ctx context.Context) *Supervisor {
	return New(ctx, nil, BackendFactories{
		model.BackendLocal: local.New(nil, local.EchoEngine{}),
	})
}

func TestCreateWorkerIsIdempotentUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	s := newTestSupervisor(ctx)
	descriptor := newEchoDescriptor()

	const n = 16
	handles := make([]*uuid.UUID, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			h, err := s.CreateWorker(descriptor)
			require.NoError(t, err)
			handles[i] = &h.ModelUUID
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Equal(t, *handles[0], *handles[i])
	}

	s.mu.RLock()
	count := len(s.workers)
	s.mu.RUnlock()
	require.Equal(t, 1, count)
}

func TestGetWorkerAndRemoveWorker(t *testing.T) {
	ctx := context.Background()
	s := newTestSupervisor(ctx)
	descriptor := newEchoDescriptor()
	descriptor.ModelPath = writeTestGGUF(t)

	_, ok := s.GetWorker(descriptor.UUID)
	require.False(t, ok)

	_, err := s.CreateWorker(descriptor)
	require.NoError(t, err)

	h, ok := s.GetWorker(descriptor.UUID)
	require.True(t, ok)
	require.NoError(t, h.Load(ctx))

	require.NoError(t, s.RemoveWorker(descriptor.UUID))
	_, ok = s.GetWorker(descriptor.UUID)
	require.False(t, ok)
}

// TestCreateWorkerKeepsHandleAfterLoadFailure is spec.md §8's scenario:
// CreateWorker succeeds, Load then fails with ConfigInvalid, the
// supervisor's map still holds the handle, and a second Load on that same
// handle returns the same error rather than re-attempting construction.
func TestCreateWorkerKeepsHandleAfterLoadFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestSupervisor(ctx)
	descriptor := newInvalidDescriptor()

	h, err := s.CreateWorker(descriptor)
	require.NoError(t, err)

	firstErr := h.Load(ctx)
	require.Error(t, firstErr)

	again, ok := s.GetWorker(descriptor.UUID)
	require.True(t, ok)
	require.Same(t, h, again)

	secondErr := h.Load(ctx)
	require.Error(t, secondErr)
	require.Equal(t, firstErr.Error(), secondErr.Error())
}

func TestPingListsActiveWorkers(t *testing.T) {
	ctx := context.Background()
	s := newTestSupervisor(ctx)
	descriptor := newEchoDescriptor()
	_, err := s.CreateWorker(descriptor)
	require.NoError(t, err)

	lines := s.Ping()
	require.Len(t, lines, 1)
}
