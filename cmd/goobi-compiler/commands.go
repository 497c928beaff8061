package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goobi/goobi-production/pkg/cmd"
	"github.com/goobi/goobi-production/pkg/log"
	"github.com/goobi/goobi-production/pkg/watch"
	cli "github.com/urfave/cli/v3"
)

// withApp wires the shared components for the duration of fn.
func withApp(ctx context.Context, command *cli.Command, fn func(app *cmd.App) error) (err error) {
	logger := log.WithModule(serviceName)

	app, err := cmd.Setup(ctx, logger, cmd.OptionsFromCommand(command, serviceName))
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := app.Close(context.WithoutCancel(ctx)); closeErr != nil {
			logger.ErrorContext(ctx, "Failed to close components", "error", closeErr)
		}
	}()

	return fn(app)
}

func requireArg(command *cli.Command, name string) (string, error) {
	value := strings.TrimSpace(command.Args().First())
	if value == "" {
		return "", fmt.Errorf("missing argument %s", name)
	}

	return value, nil
}

func compileAction(ctx context.Context, command *cli.Command) error {
	name, err := requireArg(command, "<diagram>")
	if err != nil {
		return err
	}

	return withApp(ctx, command, func(app *cmd.App) error {
		template, err := app.Templates.Create(ctx, name)
		if err != nil {
			return err
		}

		return printTemplates(command, template)
	})
}

func recompileAction(ctx context.Context, command *cli.Command) error {
	arg, err := requireArg(command, "<workflow-id>")
	if err != nil {
		return err
	}

	workflowID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || workflowID <= 0 {
		return fmt.Errorf("invalid workflow id %q", arg)
	}

	return withApp(ctx, command, func(app *cmd.App) error {
		templates, err := app.Templates.RecompileWorkflow(ctx, workflowID)
		if err != nil {
			return err
		}

		return printTemplates(command, templates...)
	})
}

func previewAction(ctx context.Context, command *cli.Command) error {
	name, err := requireArg(command, "<diagram>")
	if err != nil {
		return err
	}

	return withApp(ctx, command, func(app *cmd.App) error {
		preview, err := app.Templates.Preview(ctx, name)
		if err != nil {
			return err
		}

		return printPreview(command, preview)
	})
}

func diagramsAction(ctx context.Context, command *cli.Command) error {
	return withApp(ctx, command, func(app *cmd.App) error {
		names, err := app.Diagrams.List(ctx)
		if err != nil {
			return err
		}

		out := command.Root().Writer
		for _, name := range names {
			if _, err := fmt.Fprintln(out, name); err != nil {
				return err
			}
		}

		return nil
	})
}

func watchAction(ctx context.Context, command *cli.Command) error {
	logger := log.WithModule(serviceName)

	return withApp(ctx, command, func(app *cmd.App) error {
		watcher, err := watch.NewWatcher(logger, command.String("schedule"), app.Diagrams, app.Persistence, app.Templates)
		if err != nil {
			return err
		}

		if command.Bool("once") {
			count, err := watcher.Scan(ctx)
			_, printErr := fmt.Fprintf(command.Root().Writer, "%d workflows recompiled\n", count)

			if err != nil {
				return err
			}

			return printErr
		}

		if err := watcher.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return watcher.Stop(context.WithoutCancel(ctx))
	})
}
