package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/database"
	"github.com/Ramsey-B/clover/internal/middleware"
	"github.com/Ramsey-B/clover/internal/repositories/reconjob"
	"github.com/Ramsey-B/clover/internal/startup"
	"github.com/Ramsey-B/clover/internal/tracing"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/routes/reconciliation"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, flush, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	ctx := context.Background()

	shutdownTracing, err := tracing.Setup(ctx, cfg.AppName, cfg.OTLPEndpoint, cfg.OTLPProtocol)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	app := newApp(cfg, logger)

	orchestrator := startup.New(logger, cfg.StartupMaxAttempts)
	orchestrator.AddDependency(&databaseDependency{app: app})
	if cfg.KafkaEnabled {
		orchestrator.AddDependency(&kafkaDependency{app: app})
	}
	orchestrator.AddDependency(&serverDependency{app: app})

	if err := orchestrator.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}

	logger.WithFields(map[string]any{
		"app":  cfg.AppName,
		"port": cfg.Port,
	}).Info("Service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := orchestrator.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown completed with errors")
	}
}

func newLogger(cfg config.Config) (ectologger.Logger, func(), error) {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, err
	}

	flush := func() { _ = zapLogger.Sync() }
	return zapadapter.NewZapEctoLogger(zapLogger, nil), flush, nil
}

// app holds the wired service components shared across startup dependencies.
type app struct {
	cfg    config.Config
	logger ectologger.Logger

	db       *database.DatabaseInstance
	producer *kafka.Producer
	emitter  matching.Emitter
	echo     *echo.Echo
	checker  *health.Checker
}

func newApp(cfg config.Config, logger ectologger.Logger) *app {
	return &app{cfg: cfg, logger: logger}
}

type databaseDependency struct {
	app *app
}

func (d *databaseDependency) GetName() string     { return "database" }
func (d *databaseDependency) DependsOn() []string { return nil }

func (d *databaseDependency) Start(ctx context.Context) error {
	cfg := d.app.cfg

	db, err := database.Connect(database.Config{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, d.app.logger)
	if err != nil {
		return err
	}

	migrations := database.NewMigrationService(d.app.logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             cfg.DatabaseMigrationVersion,
		Force:               cfg.DatabaseMigrationForce,
	})
	if err := migrations.Migrate(cfg.DatabaseName, db); err != nil {
		return err
	}

	d.app.db = db
	return nil
}

func (d *databaseDependency) Stop(ctx context.Context) error {
	if d.app.db == nil {
		return nil
	}
	return d.app.db.Close()
}

type kafkaDependency struct {
	app *app
}

func (d *kafkaDependency) GetName() string     { return "kafka" }
func (d *kafkaDependency) DependsOn() []string { return nil }

func (d *kafkaDependency) Start(ctx context.Context) error {
	cfg := d.app.cfg

	d.app.producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, d.app.logger)
	d.app.emitter = events.NewEmitter(d.app.producer)
	return nil
}

func (d *kafkaDependency) Stop(ctx context.Context) error {
	if d.app.producer == nil {
		return nil
	}
	return d.app.producer.Close()
}

type serverDependency struct {
	app *app
}

func (d *serverDependency) GetName() string { return "http-server" }

func (d *serverDependency) DependsOn() []string {
	deps := []string{"database"}
	if d.app.cfg.KafkaEnabled {
		deps = append(deps, "kafka")
	}
	return deps
}

func (d *serverDependency) Start(ctx context.Context) error {
	cfg := d.app.cfg
	logger := d.app.logger

	jobs := reconjob.NewRepository(d.app.db, logger)
	service := matching.NewService(logger, jobs, d.app.emitter, matching.PipelineConfig{
		StrongThreshold:   cfg.StrongMatchThreshold,
		ModerateThreshold: cfg.ModerateMatchThreshold,
		ScoreWorkers:      cfg.ScoreWorkerCount,
		TimeBudget:        time.Duration(cfg.RunTimeBudgetSeconds) * time.Second,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	checker := health.NewChecker(d.app.db, version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	reconciliation.NewHandler(service, jobs, logger).RegisterRoutes(api)

	d.app.echo = e
	d.app.checker = checker

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}()

	checker.SetReady(true)
	return nil
}

func (d *serverDependency) Stop(ctx context.Context) error {
	if d.app.echo == nil {
		return nil
	}
	if d.app.checker != nil {
		d.app.checker.SetReady(false)
	}
	return d.app.echo.Shutdown(ctx)
}
