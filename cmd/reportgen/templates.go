package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dukex/reportgen/pkg/cmd"
	"github.com/urfave/cli/v3"
)

func NewTemplatesCommand() *cli.Command {
	return &cli.Command{
		Name:    "templates",
		Aliases: []string{"t"},
		Usage:   "Inspect and refresh the template cache",
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Refresh the template index and every template's assets",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Refetch even when the cache is fresh",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return withServices(ctx, command, func(ctx context.Context, services *cmd.Services) error {
						force := command.Bool("force")

						index, err := services.Registry.SyncIndex(ctx, force)
						if err != nil {
							return err
						}

						synced, err := services.Registry.SyncAllAssets(ctx, force)

						fmt.Fprintf(command.Root().Writer, "synced %d of %d templates\n", synced, len(index.Templates))

						return err
					})
				},
			},
			{
				Name:  "list",
				Usage: "List the templates of the cached index",
				Action: func(ctx context.Context, command *cli.Command) error {
					return withServices(ctx, command, func(ctx context.Context, services *cmd.Services) error {
						list, err := services.Registry.ListTemplates(ctx)
						if err != nil {
							return err
						}

						w := tabwriter.NewWriter(command.Root().Writer, 0, 4, 2, ' ', 0)
						fmt.Fprintln(w, "ID\tMODULE\tVERSION\tREQUIRED ARGS")

						for _, tmpl := range list {
							fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tmpl.ID, tmpl.ModuleName(), tmpl.Version, strings.Join(tmpl.Args.Required, ","))
						}

						return w.Flush()
					})
				},
			},
		},
	}
}
