package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/PromoBrothers/Projeto-2026/internal/app"
	"github.com/spf13/cobra"
)

// NewWorkerCmd returns the parent "worker" command. Each subcommand runs one
// background component on its own, for deployments that split the API from
// the dispatchers.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background workers",
	}
	// attach subcommands
	cmd.AddCommand(productsCmd, cloneQueueCmd, ingestCmd)

	return cmd
}

// setup loads config and opens the shared components for a worker subcommand.
func setup(cmd *cobra.Command) (*app.App, context.Context, context.CancelFunc, error) {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, log, err := app.Bootstrap(cfgPath)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := app.Open(cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return a, ctx, stop, nil
}
