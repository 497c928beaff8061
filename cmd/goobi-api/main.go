package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goobi/goobi-production/pkg/cmd"
	"github.com/goobi/goobi-production/pkg/log"
	"github.com/goobi/goobi-production/pkg/watch"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

const shutdownTimeout = 10 * time.Second

func main() {
	flags := append(cmd.CommonFlags(),
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "watch-schedule",
			Usage:   "Cron schedule for recompiling workflows whose diagram changed; disabled when empty",
			Sources: cli.EnvVars("WATCH_SCHEDULE"),
		},
	)

	command := &cli.Command{
		Name:                  "goobi-api",
		Usage:                 "Compile workflow diagrams into production templates over HTTP",
		EnableShellCompletion: true,
		Flags:                 flags,
		Action:                run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		log.WithModule("goobi-api").Error("Goobi API stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("goobi-api")
	logger.InfoContext(ctx, "Initializing Goobi API")

	app, err := cmd.Setup(ctx, logger, cmd.OptionsFromCommand(command, "goobi-api"))
	if err != nil {
		return err
	}

	defer func() {
		if err := app.Close(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to close components", "error", err)
		}
	}()

	if err := subscribeEvents(ctx, logger, app.EventBus); err != nil {
		return err
	}

	if schedule := command.String("watch-schedule"); schedule != "" {
		watcher, err := watch.NewWatcher(logger, schedule, app.Diagrams, app.Persistence, app.Templates)
		if err != nil {
			return err
		}

		if err := watcher.Start(ctx); err != nil {
			return err
		}

		defer func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			if err := watcher.Stop(stopCtx); err != nil {
				logger.ErrorContext(ctx, "Failed to stop diagram watcher", "error", err)
			}
		}()
	}

	api := NewAPI(logger, app.Workflows, app.Templates, app.Diagrams, app.Metrics)

	errCh := make(chan error, 1)

	go func() {
		errCh <- api.Start(command.Int("port"))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.InfoContext(ctx, "Shutting down Goobi API")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := api.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return nil
	}
}
