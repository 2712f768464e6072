package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelfleet/fleetd/pkg/fleet/backend/generichttp"
	"github.com/modelfleet/fleetd/pkg/fleet/backend/hosted"
	"github.com/modelfleet/fleetd/pkg/fleet/backend/local"
	"github.com/modelfleet/fleetd/pkg/fleet/events"
	"github.com/modelfleet/fleetd/pkg/fleet/facade"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/modelfleet/fleetd/pkg/fleet/supervisor"
)

func newPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt MODEL_ID MESSAGE",
		Short: "Activate a model, open a session, and stream a completion",
		Long: `prompt is call_llm from the command line: it activates the named
model, creates a session, sends MESSAGE, and prints each streamed token as
it arrives via the same Event Pipeline a real front door would consume.

Example:
  fleetd prompt openai_gpt4 "hello there"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrompt(cmd, args[0], args[1])
		},
	}
	return cmd
}

func runPrompt(cmd *cobra.Command, modelID, message string) error {
	ctx := cmd.Context()

	descriptor, err := findDescriptorByID(ctx, modelID)
	if err != nil {
		return err
	}

	factories := supervisor.BackendFactories{
		model.BackendHosted:      hosted.New(log, "./data", hosted.StubCaller{}),
		model.BackendLocal:       local.New(log, local.EchoEngine{}),
		model.BackendGenericHTTP: generichttp.New(log),
	}
	sup := supervisor.New(ctx, log, factories)

	activated, err := facade.Activate(ctx, descriptor, sup)
	if err != nil {
		return fmt.Errorf("activating %s: %w", modelID, err)
	}

	// The CLI is a direct, non-networked caller: per the original's
	// get_local_user, it runs as the local superuser rather than asserting
	// any permission bits of its own.
	result, err := activated.CallLLM(ctx, message, nil, nil, model.LocalUser())
	if err != nil {
		return fmt.Errorf("calling %s: %w", modelID, err)
	}

	bus := &consoleBus{printer: cmd}
	events.Forward(ctx, log, bus, "prompts", result.SessionID.String(), result.Events, events.ConvertLLMEvent)
	return nil
}

// consoleBus is a Bus that renders streamed tokens and terminal events to
// the CLI's own stdout, standing in for the out-of-scope front door that
// would otherwise relay Envelopes to a remote caller.
type consoleBus struct {
	printer interface{ Println(i ...any) }
}

func (b *consoleBus) Publish(channel string, envelope events.Envelope) {
	switch envelope.Type {
	case events.PromptProgress:
		b.printer.Println(envelope.Next)
	case events.PromptCompletion:
		b.printer.Println()
		b.printer.Println("[done]")
	case events.PromptError:
		b.printer.Println("[error] " + envelope.Message)
	case events.PromptOther:
		b.printer.Println("[" + envelope.Kind + "]")
	case events.ChannelClose:
		// terminal marker already reflected by the completion/error case above
	}
}
