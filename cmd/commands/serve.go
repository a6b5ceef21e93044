package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	einocallbacks "github.com/cloudwego/eino/callbacks"
	"github.com/urfave/cli/v3"

	"github.com/bonsai-todo/bonsai/internal/ai"
	"github.com/bonsai-todo/bonsai/internal/callbacks"
	"github.com/bonsai-todo/bonsai/internal/chat"
	"github.com/bonsai-todo/bonsai/internal/config"
	"github.com/bonsai-todo/bonsai/internal/conversations"
	"github.com/bonsai-todo/bonsai/internal/events"
	"github.com/bonsai-todo/bonsai/internal/gateway"
	"github.com/bonsai-todo/bonsai/internal/heartbeat"
	"github.com/bonsai-todo/bonsai/internal/models"
	"github.com/bonsai-todo/bonsai/internal/reminders"
	"github.com/bonsai-todo/bonsai/internal/storage"
	"github.com/bonsai-todo/bonsai/internal/tasks"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the bonsai server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(_ context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg := loadConfig(cmd)

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = int(cmd.Int("port"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Event bus + audit log
	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	eventLog := storage.NewEventLogger(filepath.Join(config.BonsaiPath(), "events"), bus)
	defer eventLog.Close()

	// Surface model calls on the event stream
	einocallbacks.AppendGlobalHandlers(callbacks.NewEventBusHandler(bus))

	// SQLite store
	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = config.DatabasePath()
	}
	store, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	taskService := tasks.NewService(store, bus)
	conversationService := conversations.NewService(store)

	// Model registry: a missing or broken provider degrades the assistant,
	// never the server.
	thresholds := ai.Thresholds{High: cfg.AI.HighThreshold, Low: cfg.AI.LowThreshold}
	var interpreter chat.Interpreter
	registry := models.NewRegistry(cfg.Models)
	chatModel, err := registry.Default(ctx)
	if err != nil {
		slog.Warn("assistant unavailable, CLI-only mode", "error", models.HandleError(err))
	} else {
		in, err := ai.NewInterpreter(chatModel, cfg.AI.Timeout.Duration())
		if err != nil {
			slog.Warn("assistant unavailable, CLI-only mode", "error", err)
		} else {
			interpreter = in
			slog.Info("assistant ready", "provider", registry.DefaultName())
		}
	}

	chatService := chat.NewService(
		interpreter,
		ai.NewExecutor(taskService),
		ai.NewFallbackHandler(thresholds),
		taskService,
		conversationService,
		store,
		bus,
		chat.Options{
			MaxContextMessages: cfg.AI.MaxContextMessages,
			ContextTasks:       cfg.AI.ContextTasks,
			Thresholds:         thresholds,
		},
	)

	// Reminder scanner
	if cfg.Reminders.Enabled {
		scheduler, err := reminders.New(taskService, bus, cfg.Reminders)
		if err != nil {
			return fmt.Errorf("init reminders: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := gateway.NewServer(bus, chatService, taskService, conversationService, cfg.Gateway.Host, cfg.Gateway.Port,
		gateway.WithStats(func() (gateway.Stats, error) {
			st, err := store.CountStats()
			if err != nil {
				return gateway.Stats{}, err
			}
			return gateway.Stats(st), nil
		}),
	)

	hb := heartbeat.NewWriter(
		filepath.Join(config.BonsaiPath(), "heartbeat.json"),
		fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
	)
	hb.Start()
	defer hb.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// loadConfig loads the config file named by --config, falling back to
// defaults when it is missing.
func loadConfig(cmd *cli.Command) *config.Config {
	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Warn("config not found, using defaults", "path", configPath, "error", err)
		cfg = config.Default()
	}
	return cfg
}
