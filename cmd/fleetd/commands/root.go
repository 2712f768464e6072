// Package commands implements the fleetd CLI commands.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/modelfleet/fleetd/pkg/fleet/model"
	"github.com/modelfleet/fleetd/pkg/fleet/store/memstore"
	"github.com/modelfleet/fleetd/pkg/logging"
)

var (
	verbose bool
	logJSON bool

	log logging.Logger
	st  *memstore.Store
)

var rootCmd = &cobra.Command{
	Use:   "fleetd",
	Short: "Local daemon for managing a fleet of LLM backends",
	Long: `fleetd manages a fleet of heterogeneous LLM backends: loading models,
opening sessions, streaming completions, and cancelling in-flight
generations on behalf of multiple authenticated users.

Example:
  fleetd serve
  fleetd ping openai_gpt4
  fleetd list
  fleetd prompt openai_gpt4 "hello there"`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		logger := logrus.New()
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}
		if logJSON {
			logger.SetFormatter(&logrus.JSONFormatter{})
		}
		if level := os.Getenv("FLEETD_LOG_LEVEL"); level != "" {
			if lvl, err := logrus.ParseLevel(level); err == nil {
				logger.SetLevel(lvl)
			}
		}

		log = logging.NewLogrusAdapterFromEntry(logger.WithField("component", "fleetd"))
		return initStore()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command, cancelling its context on SIGINT/SIGTERM.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Output logs in JSON format")

	rootCmd.AddCommand(
		newServeCmd(),
		newPingCmd(),
		newListCmd(),
		newPromptCmd(),
	)
}

// initStore builds the standalone in-memory store, bootstrapping a
// superuser from FLEETD_SUPERUSER_ID / FLEETD_SUPERUSER_KEY when both are
// set (spec.md §6's bootstrap env vars).
func initStore() error {
	if st != nil {
		return nil
	}

	var superuser *model.User
	if idStr, key := os.Getenv("FLEETD_SUPERUSER_ID"), os.Getenv("FLEETD_SUPERUSER_KEY"); idStr != "" && key != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return err
		}
		u := model.LocalSuperuser(id, key)
		superuser = &u
	}
	st = memstore.New(superuser)
	return nil
}
