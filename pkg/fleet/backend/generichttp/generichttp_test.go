package generichttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/modelfleet/fleetd/pkg/fleet/backend"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/stretchr/testify/require"
)

func TestPromptSessionExtractsTokenFromResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"delta":{"content":"hello"}}]}` + "\n"))
	}))
	defer server.Close()

	factory := New(nil)
	descriptor := &model.Descriptor{
		UUID: uuid.New(),
		Config: map[string]any{
			"endpoint":            server.URL,
			"request_template":    `{"prompt":"{{.prompt}}"}`,
			"response_token_path": "choices.0.delta.content",
			"stream":              false,
		},
	}
	adapter, err := factory(descriptor)
	require.NoError(t, err)

	ctx := context.Background()
	userID := uuid.New()
	sessionID, err := adapter.CreateSession(ctx, userID, nil)
	require.NoError(t, err)

	events, err := adapter.PromptSession(ctx, backend.PromptRequest{
		SessionID: sessionID, UserID: userID, Prompt: "hi", Cancel: model.NewCancelToken(),
	})
	require.NoError(t, err)

	var completion string
	for ev := range events {
		if c, ok := ev.Payload.(model.Completion); ok {
			completion = c.Previous
		}
	}
	require.Equal(t, "hello", completion)
}

func TestNewRejectsMissingEndpoint(t *testing.T) {
	factory := New(nil)
	_, err := factory(&model.Descriptor{Config: map[string]any{}})
	require.Error(t, err)
}
