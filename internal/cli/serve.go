package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bblog/blogbot/internal/adapter/ai"
	"github.com/bblog/blogbot/internal/adapter/store"
	"github.com/bblog/blogbot/internal/adapter/vector"
	"github.com/bblog/blogbot/internal/handler"
	"github.com/bblog/blogbot/internal/service"
	"github.com/bblog/blogbot/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	slog.Info("starting BlogBot",
		"port", cfg.Port,
		"index", cfg.PineconeIndex,
		"chat_model", cfg.GroqModel,
		"notify_channel", cfg.NotifyChannel,
	)

	// Missing credentials degrade individual calls later instead of
	// aborting startup.
	if cfg.GroqAPIKey == "" {
		slog.Warn("GROQ_API_KEY not set, chat completions will fail until configured")
	}
	if cfg.PineconeAPIKey == "" {
		slog.Warn("PINECONE_API_KEY not set, indexing and retrieval will fail until configured")
	}

	// ── Collaborators ────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	index := vector.NewPineconeIndex(cfg.PineconeControlURL, cfg.PineconeAPIKey, cfg.PineconeEnv, cfg.PineconeIndex, cfg.DefaultDimension)
	embedModel := ai.NewOllamaEmbedder(cfg.OllamaEmbedURL, cfg.OllamaEmbedToken)
	groq := ai.NewGroqProvider(cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.GroqModel)

	// ── Services ─────────────────────────────────────────────────────────
	embedder := service.NewEmbedder(embedModel, index, cfg.EmbedModelLarge, cfg.EmbedModelSmall)
	syncSvc := service.NewSyncService(pgStore, embedder, index)
	chatSvc := service.NewChatService(embedder, index, pgStore, groq)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial sync runs in the background so the server comes up even
	// when the vector index is unreachable.
	go func() {
		if err := syncSvc.EnsureIndexed(ctx); err != nil {
			slog.Error("initial index sync failed", "error", err)
		}
	}()

	// ── Change notification listener ─────────────────────────────────────
	notifier := store.NewNotifyListener(cfg.DatabaseURL, cfg.NotifyChannel)
	listener := service.NewChangeListener(notifier, pgStore, syncSvc)
	go func() {
		if err := listener.Run(ctx); err != nil {
			slog.Error("notification listener stopped", "error", err)
		}
	}()

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))

	api := app.Group("/api")
	handler.NewChatHandler(chatSvc).Register(api)
	handler.NewSyncHandler(syncSvc, pgStore, index, groq).Register(api)
	handler.NewWSHandler(chatSvc).Register(app)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("listening", "port", cfg.Port)
	return app.Listen(":" + cfg.Port)
}
