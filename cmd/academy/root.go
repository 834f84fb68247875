package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/crypto-academy/academy"
	"github.com/ZanzyTHEbar/crypto-academy/academy/app"
	"github.com/ZanzyTHEbar/crypto-academy/academy/config"
	"github.com/ZanzyTHEbar/crypto-academy/academy/logging"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           academy.DefaultAppName,
		Short:         "Crypto market rankings and learning quizzes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newPricesCmd(opts),
		newQuizCmd(opts),
		newProgressCmd(opts),
	)
	return cmd
}

// buildApp loads configuration and wires the application.
func buildApp(ctx context.Context, opts *rootOptions) (*app.App, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Logging)
	return app.NewFactory(cfg, logger).Build(ctx)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
