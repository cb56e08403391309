// Package main provides the Castline API server.
package main

import (
	"context"
	"os"

	"github.com/castline/castline/pkg/agents"
	"github.com/castline/castline/pkg/cmd"
	"github.com/castline/castline/pkg/content"
	"github.com/castline/castline/pkg/engine"
	"github.com/castline/castline/pkg/generation"
	"github.com/castline/castline/pkg/log"
	"github.com/castline/castline/pkg/otelhelper"
	"github.com/castline/castline/pkg/profiles"
	"github.com/castline/castline/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9092

func main() {
	command := &cli.Command{
		Name:                  "castline-api",
		Usage:                 "Create and run dialogue-generation workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Storage URL (memory://, file://<dir> or redis://...)",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "profiles-path",
				Usage:    "Path to the episode and speaker profiles YAML file",
				Required: true,
				Sources:  cli.EnvVars("PROFILES_PATH"),
			},
			&cli.StringFlag{
				Name:     "provider-api-key",
				Usage:    "API key for the generation provider",
				Required: true,
				Sources:  cli.EnvVars("PROVIDER_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "provider-base-url",
				Usage:   "Base URL of the OpenAI-compatible generation API",
				Value:   "https://api.openai.com/v1",
				Sources: cli.EnvVars("PROVIDER_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "provider-model",
				Usage:   "Default model when a profile has no override",
				Value:   "gpt-4o-mini",
				Sources: cli.EnvVars("PROVIDER_MODEL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("api")
	logger.Info("Initializing Castline API")

	if command.Bool("tracing") {
		tracerProvider, err := otelhelper.InitTracer(ctx, "castline-api")
		if err != nil {
			return err
		}

		defer func() {
			if err := tracerProvider.Shutdown(ctx); err != nil {
				logger.Error("Failed to shutdown tracer provider", "error", err)
			}
		}()
	}

	profileStore, err := profiles.Load(command.String("profiles-path"))
	if err != nil {
		return err
	}

	persistence, err := cmd.NewPersistence(ctx, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	provider := generation.NewOpenAIProvider(
		command.String("provider-base-url"),
		command.String("provider-api-key"),
		command.String("provider-model"),
	)

	planner := agents.NewPlanner(provider, logger)
	writer := agents.NewWriter(provider, logger)
	eng := engine.NewEngine(persistence, planner, writer, profileStore, eventBus, logger)

	workflowService := services.NewWorkflow(
		persistence,
		profileStore,
		content.NewFileResolver(),
		eng,
		eventBus,
		logger,
	)

	api := NewAPI(logger, workflowService)

	if err := api.Start(command.Int("port")); err != nil {
		logger.Error("Failed to start API server", "error", err)

		return err
	}

	return nil
}
