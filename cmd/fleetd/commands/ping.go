package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelfleet/fleetd/pkg/fleet/backend/generichttp"
	"github.com/modelfleet/fleetd/pkg/fleet/backend/hosted"
	"github.com/modelfleet/fleetd/pkg/fleet/backend/local"
	"github.com/modelfleet/fleetd/pkg/fleet/facade"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/modelfleet/fleetd/pkg/fleet/supervisor"
)

func newPingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping MODEL_ID",
		Short: "Activate a model by ID and ping its worker",
		Long: `ping activates the named model (loading it if necessary) and prints
the worker's identification string, the Go analogue of the original's
PingMessage round trip.

Example:
  fleetd ping openai_gpt4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing(cmd, args[0])
		},
	}
	return cmd
}

func runPing(cmd *cobra.Command, modelID string) error {
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

	reply, err := activated.Ping(ctx)
	if err != nil {
		return fmt.Errorf("pinging %s: %w", modelID, err)
	}
	cmd.Println(reply)
	return nil
}

// findDescriptorByID looks up a seeded Model Descriptor by its ID field
// (e.g. "openai_gpt4"), the CLI's stand-in for a real model-name resolver.
func findDescriptorByID(ctx context.Context, modelID string) (*model.Descriptor, error) {
	descriptors, err := st.ListDescriptors(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range descriptors {
		if d.ID == modelID {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no known model descriptor with id %q", modelID)
}
