package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/reportgen/pkg/cmd"
	"github.com/dukex/reportgen/pkg/models"
	"github.com/dukex/reportgen/pkg/persistence"
	"github.com/urfave/cli/v3"
)

const pollInterval = 200 * time.Millisecond

func NewReportCommand() *cli.Command {
	return &cli.Command{
		Name:    "report",
		Aliases: []string{"r"},
		Usage:   "Submit and inspect reports",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a pending report and start its pipeline",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "template",
						Usage:    "Template ID",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "arg",
						Usage: "Template argument as key=value (repeatable)",
					},
					&cli.StringFlag{
						Name:  "args-json",
						Usage: "Template arguments as a JSON object; --arg entries override it",
					},
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Run the pipeline in this process and wait for the result",
					},
					&cli.DurationFlag{
						Name:  "wait-timeout",
						Usage: "Maximum time to wait with --wait",
						Value: 5 * time.Minute,
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					args, err := parseArgs(command.String("args-json"), command.StringSlice("arg"))
					if err != nil {
						return err
					}

					return withServices(ctx, command, func(ctx context.Context, services *cmd.Services) error {
						return createReport(ctx, command, services, command.String("template"), args)
					})
				},
			},
			{
				Name:  "show",
				Usage: "Print a stored report",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Internal report ID",
					},
					&cli.StringFlag{
						Name:  "hash",
						Usage: "External report hash ID",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					id, hash := command.String("id"), command.String("hash")
					if (id == "") == (hash == "") {
						return errors.New("exactly one of --id or --hash is required")
					}

					return withServices(ctx, command, func(ctx context.Context, services *cmd.Services) error {
						reports := services.Persistence.Reports()

						var (
							report *models.Report
							err    error
						)

						if id != "" {
							report, err = reports.ByID(ctx, id)
						} else {
							report, err = reports.ByHashID(ctx, hash)
						}

						if err != nil {
							return err
						}

						return printJSON(command.Root().Writer, report)
					})
				},
			},
		},
	}
}

func createReport(ctx context.Context, command *cli.Command, services *cmd.Services, templateID string, args map[string]any) error {
	wait := command.Bool("wait")

	if wait {
		err := services.Orchestrator.Register(services.Bus)
		if err != nil {
			return err
		}

		err = services.Bus.Subscribe(ctx)
		if err != nil {
			return err
		}
	} else if command.String("event-bus") == "memory" {
		return errors.New("the memory event bus needs --wait, no worker can see this process's events")
	}

	reports := services.Persistence.Reports()

	report := models.NewReport(templateID, args)

	err := reports.Create(ctx, report)
	if err != nil {
		return err
	}

	err = services.Orchestrator.Start(ctx, templateID, args, report.ID)
	if err != nil {
		return err
	}

	if !wait {
		return printJSON(command.Root().Writer, report)
	}

	settled, err := waitForReport(ctx, reports, report.ID, command.Duration("wait-timeout"))
	if err != nil {
		return err
	}

	return printJSON(command.Root().Writer, settled)
}

func waitForReport(ctx context.Context, reports persistence.ReportRepository, id string, timeout time.Duration) (*models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		report, err := reports.ByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if report.Status.Terminal() {
			return report, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("report %s still %s: %w", id, report.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

// parseArgs merges a JSON object with key=value pairs. Pair values stay strings.
func parseArgs(rawJSON string, pairs []string) (map[string]any, error) {
	args := make(map[string]any)

	if rawJSON != "" {
		err := models.DecodeJSON([]byte(rawJSON), &args)
		if err != nil {
			return nil, fmt.Errorf("invalid --args-json: %w", err)
		}

		models.NormalizeNumbers(args)
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --arg %q, expected key=value", pair)
		}

		args[key] = value
	}

	return args, nil
}
