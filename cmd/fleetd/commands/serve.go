package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/modelfleet/fleetd/pkg/fleet/backend/generichttp"
	"github.com/modelfleet/fleetd/pkg/fleet/backend/hosted"
	"github.com/modelfleet/fleetd/pkg/fleet/backend/local"
	"github.com/modelfleet/fleetd/pkg/fleet/metrics"
	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/modelfleet/fleetd/pkg/fleet/supervisor"
)

type serveFlags struct {
	dataDir string
}

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fleet supervisor and block until interrupted",
		Long: `serve builds the Fleet Supervisor with every backend kind (hosted,
local, generic-http) registered, exposes a Prometheus /metrics endpoint on
FLEETD_ADDR, and blocks until the process receives SIGINT/SIGTERM.

Example:
  fleetd serve --data-dir /var/lib/fleetd`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.dataDir, "data-dir", "./data", "Directory hosted-backend sessions are persisted under")

	return cmd
}

func runServe(cmd *cobra.Command, flags *serveFlags) error {
	ctx := cmd.Context()

	shutdownMetrics, err := metrics.InitProvider()
	if err != nil {
		return fmt.Errorf("initializing metrics provider: %w", err)
	}
	defer func() {
		if serr := shutdownMetrics(context.Background()); serr != nil {
			log.Warnf("shutting down metrics provider: %v", serr)
		}
	}()

	factories := supervisor.BackendFactories{
		model.BackendHosted:      hosted.New(log, flags.dataDir, hosted.StubCaller{}),
		model.BackendLocal:       local.New(log, local.EchoEngine{}),
		model.BackendGenericHTTP: generichttp.New(log),
	}

	sup := supervisor.New(ctx, log, factories)
	_ = sup // the supervisor activates workers lazily on first use; nothing to warm here

	descriptors, err := st.ListDescriptors(ctx)
	if err != nil {
		return fmt.Errorf("listing seeded descriptors: %w", err)
	}

	addr := os.Getenv("FLEETD_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if serr := srv.ListenAndServe(); serr != nil && serr != http.ErrServerClosed {
			log.Errorf("metrics server stopped: %v", serr)
		}
	}()

	cmd.Printf("fleetd serving, %d known model descriptor(s), metrics on %s/metrics\n", len(descriptors), addr)
	cmd.Println("Press Ctrl+C to stop...")

	<-ctx.Done()
	cmd.Println()
	cmd.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
