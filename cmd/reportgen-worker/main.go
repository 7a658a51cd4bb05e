package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/reportgen/pkg/cmd"
	"github.com/dukex/reportgen/pkg/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	// a missing .env is fine, real environment variables still apply
	_ = godotenv.Load()

	command := &cli.Command{
		Name:                  "reportgen-worker",
		EnableShellCompletion: true,
		Usage:                 "Run report pipeline stages and the scheduled template sync",
		Flags: append(cmd.Flags(),
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg := cmd.ConfigFromCommand(command)
			log.Setup(cfg.LogLevel)

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("reportgen-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing reportgen worker")

			services, err := cmd.NewServices(ctx, cfg, workerID, logger)
			if err != nil {
				return err
			}

			defer func() {
				err := services.Close(context.Background())
				if err != nil {
					logger.ErrorContext(ctx, "Failed to release resources", "error", err)
				}
			}()

			return NewWorker(services, cfg.SyncInterval, logger).Start(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
