package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"catalog/internal/config"
	"catalog/internal/handlers"
	"catalog/internal/middleware"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/internal/storage"
	"catalog/pkg/rabbitmq"
	"catalog/web"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// requestBodyLimit leaves room for the multipart envelope around a maximum size image.
const requestBodyLimit = 1024 * 1024

// App is the assembled application: stores, services and the HTTP server.
type App struct {
	Fiber      *fiber.App
	Store      *repositories.Set
	Products   *services.ProductService
	Categories *services.CategoryService
	Auth       *services.AuthService
	MQ         *rabbitmq.Client

	cfg *config.Config
	log zerolog.Logger
}

// NewApp builds every client once from cfg and injects them downwards.
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	a := &App{Store: store, cfg: cfg, log: log}

	// A nil *rabbitmq.Client must not end up inside a non-nil interface.
	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log.With().Str("component", "rabbitmq").Logger())
		if err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		a.MQ = mq
		events = mq
	} else {
		log.Info().Msg("RABBITMQ_URL not set, domain events disabled")
	}

	a.Products = services.NewProductService(store.Products, images, events, log, cfg.MaxImageSize)
	a.Categories = services.NewCategoryService(store.Categories, store.Products, events, log, services.DeletePolicy(cfg.CategoryDeletePolicy))
	a.Auth = services.NewAuthService(store.Users, cfg.JWTSecret, cfg.JWTTTL, events, log)

	a.Fiber = a.newFiber()
	return a, nil
}

func (a *App) newFiber() *fiber.App {
	cfg := a.cfg

	app := fiber.New(fiber.Config{
		AppName:               "catalog",
		BodyLimit:             int(cfg.MaxImageSize) + requestBodyLimit,
		ErrorHandler:          handlers.ErrorHandler(a.log),
		Views:                 web.Views(),
		DisableStartupMessage: true,
	})

	sessions := middleware.NewSessions(cfg.SessionTTL, cfg.CookieSecure)
	loginLimit := middleware.NewRateLimiter(middleware.PerMinute(cfg.LoginRatePerMinute), cfg.LoginBurst).Middleware()

	app.Use(middleware.RequestLogging(a.log))
	app.Use(middleware.Recover(a.log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
			"store":  cfg.StoreDriver,
			"events": a.MQ != nil,
		})
	})

	if cfg.ImageStore == config.ImageStoreLocal && strings.HasPrefix(cfg.ImageBaseURL, "/") {
		app.Static(cfg.ImageBaseURL, cfg.ImageDir)
	}

	// Token API clients carry no session cookie.
	handlers.NewAPIHandler(a.Products, a.Categories, a.Auth, loginLimit, a.log).RegisterRoutes(app)

	app.Use(sessions.Load())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/products", fiber.StatusSeeOther)
	})
	handlers.NewAuthHandler(a.Auth, sessions, loginLimit, a.log).RegisterRoutes(app)
	handlers.NewProductHandler(a.Products, a.Categories, sessions, a.log).RegisterRoutes(app)
	handlers.NewCategoryHandler(a.Categories, sessions, a.log).RegisterRoutes(app)

	return app
}

// Close shuts down the broker connection and the store.
func (a *App) Close(ctx context.Context) error {
	if a.MQ != nil {
		if err := a.MQ.Close(); err != nil {
			a.log.Error().Err(err).Msg("failed to close RabbitMQ client")
		}
	}
	return a.Store.Close(ctx)
}

// openStore connects the configured backing store and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories.Set, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return repositories.NewMemorySet(), nil

	case config.DriverMongo:
		client, err := repositories.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := repositories.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		log.Info().Str("database", cfg.MongoDatabase).Msg("connected to mongo")
		return repositories.NewMongoSet(client, db), nil

	default:
		db, err := openGORM(cfg)
		if err != nil {
			return nil, err
		}
		if err := repositories.Migrate(db); err != nil {
			return nil, err
		}
		log.Info().Str("driver", cfg.StoreDriver).Msg("connected to database")
		return repositories.NewGORMSet(db), nil
	}
}

func openGORM(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseDSN)
	case config.DriverMySQL:
		dialector = mysql.Open(cfg.DatabaseDSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func newImageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, error) {
	if cfg.ImageStore == config.ImageStoreS3 {
		client, err := storage.NewS3Client(ctx, cfg.AWSRegion, cfg.S3Endpoint)
		if err != nil {
			return nil, err
		}
		return storage.NewS3ImageStore(client, cfg.S3Bucket, cfg.AWSRegion, cfg.S3Endpoint), nil
	}
	return storage.NewLocalImageStore(afero.NewOsFs(), cfg.ImageDir, cfg.ImageBaseURL), nil
}
