package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDescriptorCloneIsIndependent(t *testing.T) {
	d := &Descriptor{
		ID:           "openai_ada",
		UUID:         uuid.New(),
		Capabilities: map[string]int{"completion": 1},
		Parameters:   map[string]any{"temperature": 0.7},
	}
	clone := d.Clone()
	clone.Capabilities["completion"] = 0
	clone.Parameters["temperature"] = 0.1

	require.Equal(t, 1, d.Capabilities["completion"])
	require.Equal(t, 0.7, d.Parameters["temperature"])
}

func TestDescriptorTouchCalledIsConcurrencySafe(t *testing.T) {
	d := &Descriptor{UUID: uuid.New()}
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.TouchCalled(time.Now())
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		d.LastCalled()
	}
	<-done

	_, ok := d.LastCalled()
	require.True(t, ok)
}

func TestCancelTokenIdempotent(t *testing.T) {
	tok := NewCancelToken()
	require.False(t, tok.Cancelled())
	tok.Cancel()
	tok.Cancel()
	require.True(t, tok.Cancelled())
	select {
	case <-tok.Done():
	default:
		t.Fatal("Done channel should be closed")
	}
}

func TestPermissionsSuperuserAllowsEverything(t *testing.T) {
	p := Permissions{Superuser: true}
	require.True(t, p.Allows("load"))
	require.True(t, p.Allows("request_download"))
	require.False(t, Permissions{}.Allows("load"))
}

func TestPermissionsSessionBitCoversCreateAndPrompt(t *testing.T) {
	p := Permissions{PermSession: true}
	require.True(t, p.Allows(OpSession))
	require.False(t, p.Allows(OpView))
	require.False(t, p.Allows(OpDownload))
}

func TestPermissionsCoversEveryNamedBit(t *testing.T) {
	for _, op := range []string{
		OpLoad, OpUnload, OpDownload, OpSession, OpView, OpBareModel,
		OpRequestDownload, OpRequestLoad, OpRequestUnload,
	} {
		require.False(t, Permissions{}.Allows(op), "op %s should default to denied", op)
	}
}

func TestFactoryDescriptorsIncludeOpenAIAda(t *testing.T) {
	factories := FactoryDescriptors()
	var found bool
	for _, d := range factories {
		if d.ID == "openai_ada" {
			found = true
			require.Equal(t, BackendHosted, d.Backend)
		}
	}
	require.True(t, found)
}
