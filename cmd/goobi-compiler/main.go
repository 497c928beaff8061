// Package main provides the goobi-compiler command line tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/goobi/goobi-production/pkg/cmd"
	"github.com/goobi/goobi-production/pkg/log"
	"github.com/goobi/goobi-production/pkg/watch"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "goobi-compiler"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		log.WithModule(serviceName).Error("goobi-compiler failed", "error", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	outputFlag := &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output format (table, json, yaml)",
		Value:   formatTable,
	}

	return &cli.Command{
		Name:                  serviceName,
		Usage:                 "Compile workflow diagrams into production templates",
		EnableShellCompletion: true,
		Flags:                 cmd.CommonFlags(),
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"), command.String("log-format"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:      "compile",
				Aliases:   []string{"c"},
				Usage:     "Compile a diagram and store it as a new template",
				ArgsUsage: "<diagram>",
				Flags:     []cli.Flag{outputFlag},
				Action:    compileAction,
			},
			{
				Name:      "recompile",
				Aliases:   []string{"r"},
				Usage:     "Recompile every template of a workflow from its diagram",
				ArgsUsage: "<workflow-id>",
				Flags:     []cli.Flag{outputFlag},
				Action:    recompileAction,
			},
			{
				Name:      "preview",
				Aliases:   []string{"p"},
				Usage:     "Compile a diagram without storing anything",
				ArgsUsage: "<diagram>",
				Flags:     []cli.Flag{outputFlag},
				Action:    previewAction,
			},
			{
				Name:   "diagrams",
				Usage:  "List the diagrams available in the diagrams path",
				Action: diagramsAction,
			},
			{
				Name:  "watch",
				Usage: "Recompile workflows whenever their diagram changes",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "schedule",
						Usage:   "Cron schedule of the diagram scan",
						Value:   watch.DefaultSchedule,
						Sources: cli.EnvVars("WATCH_SCHEDULE"),
					},
					&cli.BoolFlag{
						Name:  "once",
						Usage: "Scan once and exit",
					},
				},
				Action: watchAction,
			},
		},
	}
}
