package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentry "github.com/getsentry/sentry-go"
	telego "github.com/mymmrac/telego"

	appBot "github.com/syntaxa/coffeechest/bot"
	"github.com/syntaxa/coffeechest/internal/auth"
	"github.com/syntaxa/coffeechest/internal/config"
	"github.com/syntaxa/coffeechest/internal/database"
	"github.com/syntaxa/coffeechest/internal/handlers"
	"github.com/syntaxa/coffeechest/internal/haiku"
	"github.com/syntaxa/coffeechest/internal/locales"
	"github.com/syntaxa/coffeechest/internal/messenger"
	"github.com/syntaxa/coffeechest/internal/scheduler"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize localization bundle
	locales.Init()

	// Initialize Sentry (if DSN is provided)
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.Version,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	// Creating context for application lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	client, db, err := database.ConnectDB(ctx, cfg)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}
	defer func() {
		if err = client.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
			sentry.CaptureException(err)
		} else {
			log.Println("Disconnected from MongoDB.")
		}
	}()

	// Apply pending schema migrations before serving any traffic.
	schemaRepo := database.NewMongoSchemaVersionRepository(db)
	if err := database.RunMigrations(ctx, schemaRepo, database.DefaultMigrations(db)); err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Migration failed: %v", err)
	}

	userRepo := database.NewMongoUserRepository(db)

	// --- Bot Initialization ---
	// 1. Create the raw telego bot instance first
	var bot *telego.Bot
	if cfg.Debug {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	}
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create telego bot: %v", err)
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to get bot info: %v", err)
	}
	log.Printf("Authorized as @%s (version %s, env %s)", me.Username, cfg.Version, cfg.AppEnv)

	// 2. Create the delivery gateway
	gateway := messenger.New(bot, userRepo, cfg.AppEnv == config.Production, cfg.TestChatID)

	// 3. Create the admin checker and message handler
	adminChecker := auth.NewAdminChecker(cfg.AdminChatID)
	messageHandler := handlers.NewMessageHandler(userRepo, gateway, adminChecker)

	if err := messageHandler.SetupCommands(ctx, bot); err != nil {
		log.Printf("Failed to set bot commands: %v", err)
		sentry.CaptureException(err)
	}

	// 4. Create the reward scheduler
	var generator scheduler.Generator
	if cfg.GeminiAPIKey != "" {
		generator = haiku.New(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.HaikuTemperature, cfg.HaikuMaxTokens)
	}
	rewards := scheduler.New(userRepo, gateway, generator, scheduler.Config{
		WinMessage:    cfg.WinMessage,
		CookieMessage: cfg.CookieMessage,
		HaikuPrompt:   cfg.HaikuPrompt,
	})
	if err := rewards.Start(ctx); err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer rewards.Stop()

	// 5. Start long polling and create the bot wrapper
	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to start long polling: %v", err)
	}

	wrapper, err := appBot.New(appBot.BotDeps{
		Bot:         bot,
		UpdatesChan: updates,
		Debug:       cfg.Debug,
		Handler:     messageHandler,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}

	// Start the bot wrapper's processing loop in a separate goroutine
	go wrapper.Start(ctx)

	// Wait for context cancellation (e.g., SIGINT, SIGTERM)
	<-ctx.Done()

	log.Println("Shutting down bot...")
	log.Println("Bot shutdown complete.")
}
