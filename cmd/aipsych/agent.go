package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aipsych-founder/AIPsych/internal/agent"
	"github.com/aipsych-founder/AIPsych/internal/config"
	"github.com/aipsych-founder/AIPsych/internal/worker"
)

func agentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the voice agent worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			supervisor := agent.NewSupervisor(cfg)
			return worker.Run(ctx, cfg, worker.Options{
				Entrypoint: func(ctx context.Context, job *worker.JobContext) error {
					return supervisor.Run(ctx, job)
				},
			})
		},
	}
}
