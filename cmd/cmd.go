package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"badge-kiosk-backend/internal/avatar"
	"badge-kiosk-backend/internal/badge"
	"badge-kiosk-backend/internal/config"
	"badge-kiosk-backend/internal/handlers"
	"badge-kiosk-backend/internal/printing"
	"badge-kiosk-backend/internal/repository"
	"badge-kiosk-backend/internal/services"
	"badge-kiosk-backend/internal/storage"
	"badge-kiosk-backend/internal/wizard"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log)

	ctx := context.Background()

	// Visitor store
	var (
		visitorRepo repository.VisitorStore
		pinger      handlers.Pinger
	)
	switch cfg.Database.Driver {
	case "memory":
		mem := repository.NewMemoryVisitorRepository()
		visitorRepo, pinger = mem, mem
		log.Warn().Msg("Using in-memory visitor store, records are lost on restart")
	default:
		db, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		// Test database connection
		if err := db.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping database")
		}
		log.Info().Msg("Database connection established")

		if cfg.Database.Migrate {
			if err := repository.Migrate(ctx, db); err != nil {
				log.Fatal().Err(err).Msg("Failed to run migrations")
			}
		}

		pg := repository.NewVisitorRepository(db)
		visitorRepo, pinger = pg, pg
	}

	// Object storage
	var (
		backend   storage.Backend
		assetsDir string
	)
	switch cfg.Storage.Backend {
	case "s3":
		s3Backend, err := storage.NewS3Backend(ctx, storage.S3Config{
			Region:    cfg.AWS.Region,
			AccessKey: cfg.AWS.AccessKey,
			SecretKey: cfg.AWS.SecretKey,
			Endpoint:  cfg.AWS.Endpoint,
			PublicURL: cfg.AWS.PublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 storage")
		}
		backend = s3Backend
	default:
		local, err := storage.NewLocalBackend(cfg.Storage.LocalPath, cfg.Server.PublicURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create local storage")
		}
		backend, assetsDir = local, local.Dir()
		log.Info().Str("path", assetsDir).Msg("Serving assets from local storage")
	}
	gateway := storage.NewGateway(backend, storage.Buckets{
		Photos: cfg.Storage.PhotoBucket,
		QR:     cfg.Storage.QRBucket,
		Badges: cfg.Storage.BadgeBucket,
	})

	// Wizard session store
	var sessionStore wizard.Store
	var sessionLocks wizard.Locker
	switch cfg.Wizard.Store {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")
		sessionStore = wizard.NewRedisStore(rdb, cfg.Wizard.SessionTTL)
		sessionLocks = wizard.NewRedisLocker(rdb, cfg.Wizard.LockTTL)
	default:
		sessionStore = wizard.NewMemoryStore(cfg.Wizard.SessionTTL)
		sessionLocks = wizard.NewMemoryLocker()
	}

	layout, err := badge.LayoutByName(cfg.Badge.Layout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load badge layout")
	}

	if cfg.OpenAI.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set, avatar generation will fail")
	}

	// Initialize services
	validator := services.NewValidator()
	visitorService := services.NewVisitorService(visitorRepo, validator, cfg.Event.LegacyRefFormat)
	issuanceService := services.NewIssuanceService(visitorService, gateway, validator, cfg.Event.DefaultEventID, cfg.Event.QRSize)
	avatarClient := avatar.NewClient(avatar.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Quality: cfg.OpenAI.Quality,
		Timeout: cfg.OpenAI.Timeout,
	})
	compositor := badge.NewCompositor(layout, cfg.Badge.TemplatePath)
	printer := printing.NewDispatcher(printing.Config{
		Secret:     cfg.Printing.TicketSecret,
		TTL:        cfg.Printing.TicketTTL,
		PageWidth:  cfg.Printing.PageWidth,
		PageHeight: cfg.Printing.PageHeight,
		PublicURL:  cfg.Server.PublicURL,
		RawBT:      cfg.Printing.RawBT,
	})
	sessionHub := services.NewSessionHub()
	registrationService := services.NewRegistrationService(
		visitorService,
		avatarClient,
		compositor,
		gateway,
		printer,
		sessionStore,
		sessionLocks,
		sessionHub,
		services.RegistrationConfig{
			PrintingTick: cfg.Wizard.PrintingTick,
			Rotate:       cfg.Printing.Rotate,
		},
	)

	// Initialize handlers
	visitorHandler := handlers.NewVisitorHandler(issuanceService, visitorService, printer, handlers.VisitorHandlerConfig{
		EventID:   cfg.Event.DefaultEventID,
		PublicURL: cfg.Server.PublicURL,
		Rotate:    cfg.Printing.Rotate,
	})
	h := handlers.Handlers{
		Users:     handlers.NewUserHandler(visitorService),
		Storage:   handlers.NewStorageHandler(gateway),
		Badges:    handlers.NewBadgeHandler(avatarClient, compositor),
		Camera:    handlers.NewCameraHandler(gateway),
		Visitors:  visitorHandler,
		Print:     handlers.NewPrintHandler(printer, gateway),
		Sessions:  handlers.NewSessionHandler(registrationService),
		WebSocket: handlers.NewWebSocketHandler(sessionHub, registrationService),
		Health:    handlers.Health(pinger),
	}

	// Setup router
	r := handlers.NewRouter(h, handlers.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Printer:        printer,
		AssetsDir:      assetsDir,
	})

	// Create HTTP server; avatar generation holds a request open for the upstream timeout
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.OpenAI.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("public_url", cfg.Server.PublicURL).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop printing progress goroutines
	registrationService.Close()

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch cfg.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
