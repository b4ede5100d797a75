package main

import (
	"context"
	"errors"

	"github.com/ZanzyTHEbar/kvtrace/kvtrace/config"
	"github.com/ZanzyTHEbar/kvtrace/kvtrace/factory"
	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root pre-run has opened
// the store.
type app struct {
	configPath string

	cfg     *config.Config
	logger  zerolog.Logger
	factory *factory.Factory
	store   ports.Store
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "kvtrace",
		Short: "Instrumented key-value cache",
		Long: `kvtrace stores values in a key-value store, records every store call
(count, inputs, outputs) and replays that history. It also caches fetched
web pages for a fixed time window and counts how often each URL is requested.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.open,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a config file (default: ./config.yaml, /etc/kvtrace/config.yaml)")

	rootCmd.AddCommand(
		newStoreCmd(a),
		newGetCmd(a),
		newReplayCmd(a),
		newFetchCmd(a),
		newCountCmd(a),
		newFlushCmd(a),
	)
	return rootCmd
}

func (a *app) open(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = factory.NewLogger(cfg.Log, cmd.ErrOrStderr())
	a.factory = factory.NewFactory(cfg, a.logger, nil, factory.WithTraceOutput(cmd.ErrOrStderr()))

	st, err := a.factory.OpenStore(cmd.Context())
	if err != nil {
		return err
	}
	a.store = st
	return nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.factory != nil {
		errs = append(errs, a.factory.Shutdown(ctx))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
