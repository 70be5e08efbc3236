package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pmv/internal/app"
	"pmv/internal/backend"
	"pmv/internal/config"
	"pmv/internal/domain"
	"pmv/internal/handler"
	"pmv/internal/middleware"
	"pmv/internal/rabbitmq"
	internalRedis "pmv/internal/redis"
	"pmv/internal/service"
	"pmv/internal/smartfeatures"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := app.Migrate(ctx, db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}
	logger.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	var journeyPub, stationPub publisher = noopPublisher{}, noopPublisher{}
	if cfg.RabbitMQ.Enabled {
		mq, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.ConnectAttempts, logger)
		if err != nil {
			logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		defer func() { _ = mq.Close() }()

		if journeyPub, err = rabbitmq.NewPublisher(mq.Channel, cfg.RabbitMQ.JourneyExchange, rabbitmq.ExchangeTopic, logger); err != nil {
			logger.Fatal("failed to declare journey exchange", zap.Error(err))
		}
		if stationPub, err = rabbitmq.NewPublisher(mq.Channel, cfg.RabbitMQ.StationExchange, rabbitmq.ExchangeFanout, logger); err != nil {
			logger.Fatal("failed to declare station exchange", zap.Error(err))
		}
	}

	server, err := wireServer(db, redisClient, journeyPub, stationPub, nrApp, cfg, logger)
	if err != nil {
		logger.Fatal("failed to wire server", zap.Error(err))
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

type publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// noopPublisher drops messages when RabbitMQ is disabled.
type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, routingKey string, body []byte) error { return nil }

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	journeyPub, stationPub publisher,
	nrApp *newrelic.Application,
	cfg *config.Config,
	logger *zap.Logger,
) (*http.Server, error) {
	fleet := backend.NewServer(backend.Deps{
		Repos:     app.NewRepositories(db),
		RunInTx:   app.NewTxRunner(db),
		Locations: internalRedis.NewLocationStore(redisClient),
		Locks:     internalRedis.NewLockStore(redisClient),
		Cache:     internalRedis.NewCacheStore(redisClient),
		Logger:    logger.Named("backend"),
	})

	rider, err := domain.NewUserAccount(cfg.Rider.Username)
	if err != nil {
		return nil, err
	}
	wallet, err := app.NewWallet(cfg.Rider)
	if err != nil {
		return nil, err
	}

	tariff := service.Tariff{RatePerKm: cfg.Fare.RatePerKm, RatePerMinute: cfg.Fare.RatePerMinute}
	notifications := service.NewNotificationService(journeyPub, logger.Named("notification"))

	journeys := service.NewJourneyService(service.JourneyDeps{
		Server:   fleet,
		Decoder:  smartfeatures.NewPayloadDecoder(),
		Signal:   smartfeatures.NewBeaconSignal(stationPub, logger.Named("beacon")),
		Tariff:   tariff,
		Rider:    rider,
		Wallet:   wallet,
		Notifier: notifications,
		Logger:   logger.Named("journey"),
	})
	receipts := service.NewReceiptService(tariff, notifications)
	control := service.NewControlService(smartfeatures.NewSimulatedController(logger.Named("controller")), logger.Named("control"))

	journeyHandler := handler.NewJourneyHandler(journeys, receipts, control, logger.Named("http"))
	vehicleHandler := handler.NewVehicleHandler(fleet, journeyHandler)

	router := app.NewRouter(app.RouterDeps{
		JourneyHandler: journeyHandler,
		VehicleHandler: vehicleHandler,
		Idempotency:    middleware.NewRedisResponseStore(redisClient),
		NewRelicApp:    nrApp,
		Logger:         logger.Named("idempotency"),
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, nil
}
