package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dukex/reportgen/pkg/cmd"
	"github.com/dukex/reportgen/pkg/log"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	// a missing .env is fine, real environment variables still apply
	_ = godotenv.Load()

	command := &cli.Command{
		Name:                  "reportgen",
		EnableShellCompletion: true,
		Usage:                 "Operate the template cache and submit reports",
		Flags:                 cmd.Flags(),
		Commands: []*cli.Command{
			NewTemplatesCommand(),
			NewReportCommand(),
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withServices runs fn against freshly wired services and closes them afterwards.
func withServices(ctx context.Context, command *cli.Command, fn func(context.Context, *cmd.Services) error) error {
	cfg := cmd.ConfigFromCommand(command)
	log.Setup(cfg.LogLevel)

	logger := log.WithModule("reportgen")

	services, err := cmd.NewServices(ctx, cfg, "cli", logger)
	if err != nil {
		return err
	}

	defer func() {
		err := services.Close(context.Background())
		if err != nil {
			logger.ErrorContext(ctx, "Failed to release resources", "error", err)
		}
	}()

	return fn(ctx, services)
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}
