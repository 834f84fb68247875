package main

import (
	"context"
	"errors"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var wg conc.WaitGroup
			if a.Config.Content.Watch {
				a.Logger.Info().Str("dir", a.Bank.Dir()).Msg("Watching quiz content")
				wg.Go(func() {
					if err := a.Bank.Watch(ctx, nil); err != nil {
						a.Logger.Error().Err(err).Msg("Content watcher stopped")
					}
				})
			}

			err = a.Server().Run(ctx)
			stop()
			wg.Wait()

			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
