package main

import (
	"fmt"
	"strconv"

	"github.com/ZanzyTHEbar/kvtrace/kvtrace/cache"
	"github.com/ZanzyTHEbar/kvtrace/kvtrace/instrument"
	"github.com/spf13/cobra"
)

func newStoreCmd(a *app) *cobra.Command {
	var (
		valueType string
		noFlush   bool
		replay    bool
	)

	cmd := &cobra.Command{
		Use:   "store VALUE...",
		Short: "Store values under new keys and print the keys",
		Long: `Store each VALUE under a freshly generated key. The store is flushed
first unless --no-flush is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := a.openCache(cmd, !noFlush)
			if err != nil {
				return err
			}

			for _, arg := range args {
				value, err := parseValue(arg, valueType)
				if err != nil {
					return err
				}
				key, err := c.Store(ctx, value)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}

			if replay {
				return instrument.Replay(ctx, a.store, c.Identity(), cmd.OutOrStdout(), instrument.WithLogger(a.logger))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&valueType, "type", "t", "string", "value type: string, bytes, int, float")
	cmd.Flags().BoolVar(&noFlush, "no-flush", false, "keep existing keys instead of flushing the store")
	cmd.Flags().BoolVar(&replay, "replay", false, "print the call history of Cache.Store afterwards")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	var as string

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored at KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := cache.Attach(a.store, cache.WithLogger(a.logger))

			var (
				value any
				ok    bool
				err   error
			)
			switch as {
			case "string":
				value, ok, err = c.GetString(ctx, args[0])
			case "int":
				value, ok, err = c.GetInt(ctx, args[0])
			case "float":
				value, ok, err = c.GetFloat(ctx, args[0])
			case "bytes":
				var raw []byte
				raw, ok, err = c.Get(ctx, args[0])
				value = fmt.Sprintf("%q", raw)
			default:
				return fmt.Errorf("unknown conversion %q", as)
			}
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: not found\n", args[0])
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	cmd.Flags().StringVar(&as, "as", "string", "conversion: string, int, float, bytes")
	return cmd
}

func newReplayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "replay [IDENTITY]",
		Short: "Print the recorded calls of an operation",
		Long:  "Print the call count and the recorded input/output pairs of IDENTITY (default Cache.Store).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity := cache.StoreIdentity
			if len(args) == 1 {
				identity = args[0]
			}
			return instrument.Replay(cmd.Context(), a.store, identity, cmd.OutOrStdout(), instrument.WithLogger(a.logger))
		},
	}
}

func newFlushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Remove every key from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.FlushAll(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info().Msg("Store flushed")
			return nil
		},
	}
}

func (a *app) openCache(cmd *cobra.Command, flush bool) (*cache.Cache, error) {
	metrics, err := a.factory.CreateInstrumentMetrics()
	if err != nil {
		return nil, err
	}

	tracer, err := a.factory.CreateTracer()
	if err != nil {
		return nil, err
	}

	opts := []cache.Option{
		cache.WithLogger(a.logger),
		cache.WithTracer(tracer),
		cache.WithInstrumentOptions(instrument.WithMetrics(metrics)),
	}
	if !flush {
		return cache.Attach(a.store, opts...), nil
	}
	return cache.New(cmd.Context(), a.store, opts...)
}

func parseValue(arg, valueType string) (any, error) {
	switch valueType {
	case "string":
		return arg, nil
	case "bytes":
		return []byte(arg), nil
	case "int":
		n, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q: %w", arg, err)
		}
		return n, nil
	case "float":
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", arg, err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown value type %q", valueType)
	}
}
