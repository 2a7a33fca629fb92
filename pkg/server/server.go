// Package server wires the application together and runs the HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/pkg/automations"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/instagram"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/media"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/queue"
	"github.com/Ramsey-B/fern/pkg/ratelimit"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/scheduler"
	"github.com/Ramsey-B/fern/pkg/smartai"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tokens"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

// Server owns the application's long-running pieces
type Server struct {
	cfg    *config.Config
	logger ectologger.Logger

	echo      *echo.Echo
	db        *sqlx.DB
	redis     *redis.Client
	processor *queue.Processor
	scheduler *scheduler.Scheduler
	consumer  *kafka.Consumer
	producer  *kafka.Producer
	checker   *health.Checker
	startup   *startup.Startup
	tp        *sdktrace.TracerProvider
}

// New creates a new server
func New(cfg *config.Config, logger ectologger.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Run builds the dependency graph, starts everything, and blocks until the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.initTracing(ctx); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	s.startup = startup.NewStartup[any](s.logger, s.cfg.StartupMaxAttempts)
	s.startup.AddDependency(&dependency{name: "database", start: s.startDatabase, stop: s.stopDatabase})
	s.startup.AddDependency(&dependency{name: "redis", dependsOn: []string{"database"}, start: s.startRedis, stop: s.stopRedis})
	s.startup.AddDependency(&dependency{name: "services", dependsOn: []string{"database", "redis"}, start: s.startServices, stop: s.stopServices})
	s.startup.AddDependency(&dependency{name: "http", dependsOn: []string{"services"}, start: s.startHTTP, stop: s.stopHTTP})

	if err := s.startup.Start(ctx); err != nil {
		return err
	}

	s.checker.SetReady(true)
	s.logger.WithContext(ctx).Infof("%s is up on port %d", s.cfg.AppName, s.cfg.Port)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.startup.Stop(shutdownCtx)
}

func (s *Server) initTracing(ctx context.Context) error {
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(s.cfg.AppName),
	))
	if err != nil {
		return err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if s.cfg.OTLPEnabled {
		exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: s.cfg.OTLPEndpoint,
			Protocol: s.cfg.OTLPProtocol,
			Insecure: s.cfg.OTLPInsecure,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	s.tp = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(s.tp)
	tracing.SetTracer(s.tp.Tracer(s.cfg.AppName))
	return nil
}

func (s *Server) startDatabase(ctx context.Context) error {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		s.cfg.DatabaseHost, s.cfg.DatabasePort, s.cfg.DatabaseUserName,
		s.cfg.DatabasePassword, s.cfg.DatabaseName, s.cfg.DatabaseSSLMode)

	db, err := sqlx.ConnectContext(ctx, s.cfg.DatabaseDriver, dsn)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	db.SetMaxOpenConns(s.cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(s.cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.DatabaseConnMaxLifetime)
	s.db = db

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	migrations := database.NewMigrationService(s.logger, &database.MigrationConfig{
		MigrationFolderPath: s.cfg.DatabaseMigrationFolderPath,
		Version:             uint(s.cfg.DatabaseMigrationVersion),
		Force:               s.cfg.DatabaseMigrationForce,
		AutoRollback:        s.cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrations.Migrate(s.cfg.DatabaseName, driver); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return nil
}

func (s *Server) stopDatabase(ctx context.Context) error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) startRedis(ctx context.Context) error {
	client, err := redis.NewClient(redis.Config{
		Host:     s.cfg.RedisHost,
		Port:     s.cfg.RedisPort,
		Password: s.cfg.RedisPassword,
		DB:       s.cfg.RedisDB,
	}, s.logger)
	if err != nil {
		return err
	}
	s.redis = client
	return nil
}

func (s *Server) stopRedis(ctx context.Context) error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

// startServices builds the domain graph: repositories, Instagram client,
// token/media services, the automation engine, queue workers, the token
// refresh scheduler, and the optional Kafka ingestion path.
func (s *Server) startServices(ctx context.Context) error {
	dbi := database.NewDatabaseInstance(s.db, s.logger)

	integrationRepo := repositories.NewIntegrationRepository(dbi, s.logger)
	automationRepo := repositories.NewAutomationRepository(dbi, s.logger)
	listenerRepo := repositories.NewListenerRepository(dbi, s.logger)
	triggerRepo := repositories.NewTriggerRepository(dbi, s.logger)
	keywordRepo := repositories.NewKeywordRepository(dbi, s.logger)
	postRepo := repositories.NewPostRepository(dbi, s.logger)

	httpc := httpclient.NewClient(httpclient.DefaultConfig(), s.logger)
	httpc.SetTimeout(s.cfg.InstagramRequestTimeout)

	igClient, err := instagram.NewClient(instagram.Config{
		BaseURL:          s.cfg.InstagramBaseURL,
		TokenURL:         s.cfg.InstagramTokenURL,
		ClientID:         s.cfg.InstagramClientID,
		ClientSecret:     s.cfg.InstagramClientSecret,
		EmbeddedOAuthURL: s.cfg.InstagramEmbeddedOAuthURL,
	}, httpc, s.logger)
	if err != nil {
		return fmt.Errorf("instagram client: %w", err)
	}

	locker := redis.NewLocker(s.redis, "")
	streams := redis.NewStreams(s.redis)
	dlq := redis.NewDeadLetterQueue(s.redis, redis.DefaultDLQStream, s.logger)

	tokenService := tokens.NewService(igClient, integrationRepo, tokens.RedisLocker(locker), s.logger)
	mediaService := media.NewService(igClient, tokenService, s.logger)
	throttle := ratelimit.NewManager(s.redis, s.cfg.SendRateLimit, s.cfg.SendRateWindow, s.logger)

	var generator smartai.Generator
	if s.cfg.SmartAIURL != "" {
		generator = smartai.NewClient(smartai.Config{
			URL:       s.cfg.SmartAIURL,
			APIKey:    s.cfg.SmartAIKey,
			Model:     s.cfg.SmartAIModel,
			MaxTokens: s.cfg.SmartAIMaxTokens,
		}, httpc, s.logger)
	} else {
		s.logger.WithContext(ctx).Warn("SMART_AI_URL is not set, SMARTAI listeners will fail until it is configured")
	}

	producer := kafka.NewProducer(kafka.ParseConfig(s.cfg.KafkaBrokers, s.cfg.KafkaDispatchTopic), s.logger)
	s.producer = producer

	engine := automations.NewEngine(
		integrationRepo, automationRepo, listenerRepo,
		igClient, generator, throttle, producer, s.logger,
	)

	processorCfg := queue.DefaultProcessorConfig()
	processorCfg.Stream = s.cfg.RedisStreamsJobQueue
	processorCfg.ConsumerGroup = s.cfg.RedisStreamsConsumerGroup
	if s.cfg.RedisStreamsConsumerName != "" {
		processorCfg.ConsumerName = s.cfg.RedisStreamsConsumerName
	}
	processorCfg.WorkerCount = s.cfg.QueueWorkerCount
	processorCfg.MaxRetries = s.cfg.QueueMaxRetries

	s.processor = queue.NewProcessor(streams, dlq, engine, processorCfg, s.logger)
	if err := s.processor.Start(ctx); err != nil {
		return fmt.Errorf("queue processor: %w", err)
	}

	if s.cfg.SchedulerEnabled {
		s.scheduler = scheduler.NewScheduler(integrationRepo, tokenService, locker, scheduler.Config{
			PollInterval:  s.cfg.SchedulerPollInterval,
			RefreshWindow: s.cfg.TokenRefreshWindow,
		}, s.logger)
		if err := s.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
	}

	if s.cfg.KafkaConsumerEnabled {
		consumerCfg := kafka.DefaultConsumerConfig()
		consumerCfg.Brokers = strings.Split(s.cfg.KafkaBrokers, ",")
		consumerCfg.Topic = s.cfg.KafkaEventTopic
		consumerCfg.GroupID = s.cfg.KafkaConsumerGroup

		consumer, err := kafka.NewConsumer(consumerCfg, s.logger)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		s.consumer = consumer

		// Kafka events funnel into the same Redis stream as webhooks so the
		// queue owns retries and the DLQ for both ingestion paths.
		handler := func(ctx context.Context, msg *kafka.ReceivedMessage) error {
			_, err := queue.PublishInboundEvent(ctx, streams, s.cfg.RedisStreamsJobQueue, msg.Event.ToEvent())
			return err
		}
		if err := s.consumer.Start(ctx, handler); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
	}

	s.checker = health.NewChecker(s.db, s.redis, streams, s.cfg.RedisStreamsJobQueue, "")

	s.echo = s.buildEcho(
		handlers.NewIntegrationHandler(tokenService, mediaService, igClient, integrationRepo, s.logger),
		handlers.NewAutomationHandler(automationRepo, listenerRepo, triggerRepo, keywordRepo, postRepo),
		handlers.NewWebhookHandler(streams, s.cfg.RedisStreamsJobQueue, s.cfg.InstagramWebhookVerifyToken, s.logger),
		handlers.NewDLQHandler(dlq, streams, s.cfg.RedisStreamsJobQueue, s.logger),
	)

	return nil
}

func (s *Server) stopServices(ctx context.Context) error {
	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("kafka consumer shutdown failed")
		}
	}
	if s.scheduler != nil {
		if err := s.scheduler.Stop(ctx); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("scheduler shutdown failed")
		}
	}
	if s.processor != nil {
		if err := s.processor.Stop(ctx); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("queue processor shutdown failed")
		}
	}
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("kafka producer shutdown failed")
		}
	}
	if s.tp != nil {
		if err := s.tp.Shutdown(ctx); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("tracer shutdown failed")
		}
	}
	return nil
}

func (s *Server) buildEcho(
	integrationHandler *handlers.IntegrationHandler,
	automationHandler *handlers.AutomationHandler,
	webhookHandler *handlers.WebhookHandler,
	dlqHandler *handlers.DLQHandler,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: s.cfg.AllowOrigins,
		AllowMethods: s.cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(s.cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(s.logger))
	e.HTTPErrorHandler = middleware.Error(s.logger)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.checker.RegisterRoutes(e)
	webhookHandler.RegisterRoutes(e)

	api := e.Group("/api/v1")
	if s.cfg.AuthEnabled {
		api.Use(middleware.Authentication(s.logger, s.cfg.AuthIssuerURL, s.cfg.AuthClientID))
	}

	integrationHandler.RegisterRoutes(api)
	automationHandler.RegisterRoutes(api)
	dlqHandler.RegisterRoutes(api)

	return e
}

func (s *Server) startHTTP(ctx context.Context) error {
	s.echo.Server.ReadTimeout = time.Duration(s.cfg.HttpServerReadTimeoutSeconds) * time.Second
	s.echo.Server.WriteTimeout = time.Duration(s.cfg.HttpServerWriteTimeoutSeconds) * time.Second
	s.echo.Server.IdleTimeout = time.Duration(s.cfg.HttpServerIdleTimeoutSeconds) * time.Second
	s.echo.Server.ReadHeaderTimeout = time.Duration(s.cfg.ReadHeaderTimeoutSeconds) * time.Second
	s.echo.Server.MaxHeaderBytes = s.cfg.MaxHeaderBytes

	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.cfg.Port)); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("http server exited")
		}
	}()
	return nil
}

func (s *Server) stopHTTP(ctx context.Context) error {
	if s.echo != nil {
		return s.echo.Shutdown(ctx)
	}
	return nil
}

// dependency adapts closures to the startup graph
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string     { return d.name }
func (d *dependency) DependsOn() []string { return d.dependsOn }
func (d *dependency) Start(ctx context.Context) error {
	return d.start(ctx)
}
func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}
