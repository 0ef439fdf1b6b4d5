package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"classificados/docs"
	"classificados/internal/config"
	"classificados/internal/database"
	"classificados/internal/database/migration"
	"classificados/internal/events"
	handlers "classificados/internal/http/handler"
	"classificados/internal/http/middleware"
	"classificados/internal/logging"
	appotel "classificados/internal/otel"
	"classificados/internal/repository"
	"classificados/internal/repository/file"
	"classificados/internal/repository/object"
	"classificados/internal/repository/postgres"
	listingredis "classificados/internal/repository/redis"
	"classificados/internal/repository/sqlite"
	"classificados/internal/service"
	"classificados/internal/storage"
)

// @title Classificados API
// @version 1.0
// @BasePath /
func main() {
	cfg := config.Load()
	logging.New(os.Stdout, cfg.LogLevel, cfg.Location())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := appotel.Init(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to open listing storage")
	}
	defer closeRepo()

	observed, err := repository.NewObservable(repo, cfg.Store.Backend, reg, otel.GetTracerProvider())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to instrument listing storage")
	}

	store := service.NewListingStore(observed)
	if err := store.Open(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load listings")
	}
	log.Info().Int("listings", len(store.Snapshot())).Str("backend", cfg.Store.Backend).Msg("listings loaded")

	attachmentStore, err := openAttachmentStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Upload.Backend).Msg("failed to initialize attachment storage")
	}
	attachments := service.NewAttachmentService(attachmentStore, service.AttachmentLimits{
		MaxFiles:    cfg.Upload.MaxFiles,
		MaxFileSize: cfg.Upload.MaxFileSize,
	})

	publisher := openPublisher(cfg)
	defer publisher.Close()

	metrics, err := service.NewMetrics(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register service metrics")
	}
	listingSvc := service.NewListingService(store, attachments, publisher, metrics)

	app := fiber.New(fiber.Config{
		AppName:      "classificados",
		BodyLimit:    cfg.BodyLimit(),
		ErrorHandler: handlers.ErrorHandler(),
	})

	app.Use(recover.New())
	app.Use(otelfiber.Middleware())
	app.Use(cors.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(cfg.Location()))
	if cfg.MetricsEnabled {
		prom, err := middleware.NewPrometheusMiddleware(reg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to register http metrics")
		}
		app.Use(prom.Handler())
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	} else {
		app.Use(middleware.Noop())
	}

	handlers.RegisterRoutes(app, listingSvc, observed, cfg.Version)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("version", cfg.Version).Msg("server starting")
		if err := app.Listen(addr); err != nil {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
}

// openRepository builds the listing backend selected by STORE_BACKEND.
// The returned func releases its connections.
func openRepository(ctx context.Context, cfg *config.AppConfig) (repository.ListingRepository, func(), error) {
	noop := func() {}

	switch cfg.Store.Backend {
	case config.StoreFile:
		return file.NewListingFile(cfg.Store.DataFile), noop, nil

	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		if err := migration.EnsureMigrated(ctx, db, cfg.Database.Host); err != nil {
			db.Close()
			return nil, noop, err
		}
		return postgres.NewListingPostgres(db), closer(db), nil

	case config.StoreSQLite:
		db, err := database.NewSQLite(cfg.SQLite)
		if err != nil {
			return nil, noop, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, noop, err
		}
		repo, err := sqlite.NewListingSQLite(db)
		if err != nil {
			sqlDB.Close()
			return nil, noop, err
		}
		return repo, closer(sqlDB), nil

	case config.StoreObject:
		if cfg.Upload.Backend == config.UploadMinIO && service.ValidKey(cfg.Store.ObjectKey) {
			return nil, noop, fmt.Errorf("store object key %q would be served as an attachment from the shared bucket", cfg.Store.ObjectKey)
		}
		objStore, err := storage.NewMinIO(cfg.MinIO)
		if err != nil {
			return nil, noop, err
		}
		return object.NewListingObject(objStore, cfg.Store.ObjectKey), noop, nil

	case config.StoreRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return listingredis.NewListingRedis(client, cfg.Redis.Key), func() { client.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func closer(db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}
}

// openAttachmentStorage builds the image store selected by UPLOAD_BACKEND.
func openAttachmentStorage(cfg *config.AppConfig) (storage.Storage, error) {
	switch cfg.Upload.Backend {
	case config.UploadLocal:
		return storage.NewLocal(cfg.Upload.Dir)
	case config.UploadMinIO:
		return storage.NewMinIO(cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.Upload.Backend)
	}
}

// openPublisher connects to NATS when NATS_URL is set. Events are dropped otherwise,
// and also when the broker is unreachable at boot.
func openPublisher(cfg *config.AppConfig) events.Publisher {
	if cfg.NATS.URL == "" {
		return events.Noop{}
	}
	pub, err := events.NewNATSPublisher(cfg.NATS.URL)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("nats unavailable, events disabled")
		return events.Noop{}
	}
	return pub
}
