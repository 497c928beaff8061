package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/goobi/goobi-production/pkg/channels/kafka"
	"github.com/goobi/goobi-production/pkg/diagram/file"
	"github.com/goobi/goobi-production/pkg/eventbus"
	"github.com/goobi/goobi-production/pkg/metrics"
	"github.com/goobi/goobi-production/pkg/otelhelper"
	"github.com/goobi/goobi-production/pkg/persistence"
	"github.com/goobi/goobi-production/pkg/services"
	cli "github.com/urfave/cli/v3"
)

// Options configure the components shared by the API server and the compiler CLI.
type Options struct {
	DatabaseURL  string
	DiagramsPath string
	EventBus     string
	KafkaBrokers []string
	RedisURL     string
	Tracing      bool
	ServiceName  string
}

// CommonFlags are accepted by every goobi command.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (file path or postgres:// URL)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "diagrams-path",
			Usage:   "Directory containing .bpmn20.xml and .yaml diagrams",
			Value:   "./diagrams",
			Sources: cli.EnvVars("DIAGRAMS_PATH"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers for the kafka event bus",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for locks shared between instances; in-process locks when empty",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export OpenTelemetry traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

func OptionsFromCommand(command *cli.Command, serviceName string) Options {
	return Options{
		DatabaseURL:  command.String("database-url"),
		DiagramsPath: command.String("diagrams-path"),
		EventBus:     command.String("event-bus"),
		KafkaBrokers: kafka.ParseBrokers(command.String("kafka-brokers")),
		RedisURL:     command.String("redis-url"),
		Tracing:      command.Bool("tracing"),
		ServiceName:  serviceName,
	}
}

// App holds the wired components of a goobi process.
type App struct {
	Persistence persistence.Persistence
	Diagrams    *file.Loader
	EventBus    eventbus.EventBus
	Metrics     *metrics.Metrics
	Templates   *services.Templates
	Workflows   *services.Workflow

	closers []func(ctx context.Context) error
}

// Setup wires every component from opts. On error, whatever was opened is closed again.
func Setup(ctx context.Context, logger *slog.Logger, opts Options) (*App, error) {
	app := &App{Metrics: metrics.New()}

	p, err := NewPersistence(ctx, logger, opts.DatabaseURL)
	if err != nil {
		return nil, err
	}

	app.Persistence = p
	app.closers = append(app.closers, p.Close)

	bus, err := NewEventBus(opts.EventBus, opts.KafkaBrokers, logger)
	if err != nil {
		return nil, errors.Join(err, app.Close(ctx))
	}

	app.EventBus = bus
	app.closers = append(app.closers, func(context.Context) error { return bus.Close() })

	locker, closeLocker, err := NewLocker(ctx, logger, opts.RedisURL)
	if err != nil {
		return nil, errors.Join(err, app.Close(ctx))
	}

	app.closers = append(app.closers, func(context.Context) error { return closeLocker() })

	tracer := otelhelper.NoopTracer()

	if opts.Tracing {
		t, shutdown, err := otelhelper.NewTracer(ctx, opts.ServiceName)
		if err != nil {
			return nil, errors.Join(err, app.Close(ctx))
		}

		tracer = t
		app.closers = append(app.closers, shutdown)
	}

	app.Diagrams = file.NewLoader(opts.DiagramsPath, logger)
	app.Workflows = services.NewWorkflow(app.Persistence)
	app.Templates = services.NewTemplates(logger, app.Persistence, app.Diagrams,
		services.WithLocker(locker),
		services.WithPublisher(app.EventBus),
		services.WithTracer(tracer),
		services.WithMetrics(app.Metrics),
	)

	return app, nil
}

// Close releases the components in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}

	a.closers = nil

	return errors.Join(errs...)
}
