package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/rxchain/rxchain/internal/config"
	"github.com/rxchain/rxchain/internal/domain/batch"
	"github.com/rxchain/rxchain/internal/domain/inventory"
	"github.com/rxchain/rxchain/internal/domain/medrequest"
	"github.com/rxchain/rxchain/internal/domain/organization"
	"github.com/rxchain/rxchain/internal/platform/auth"
	"github.com/rxchain/rxchain/internal/platform/clock"
	"github.com/rxchain/rxchain/internal/platform/db"
	"github.com/rxchain/rxchain/internal/platform/events"
	"github.com/rxchain/rxchain/internal/platform/ledger"
	"github.com/rxchain/rxchain/internal/platform/middleware"
	"github.com/rxchain/rxchain/internal/platform/notification"
	"github.com/rxchain/rxchain/internal/platform/response"
	"github.com/rxchain/rxchain/internal/platform/telemetry"
)

// app holds every long-lived dependency of the server.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	clock  clock.Clock
	tracer trace.TracerProvider

	pool   *pgxpool.Pool
	ledger ledger.Gateway
	bus    *events.Bus
	idem   middleware.IdempotencyStore

	orgs          *organization.Service
	stock         *inventory.Service
	batches       *batch.Service
	requests      *medrequest.Service
	notifications *notification.Service

	closers []func(context.Context) error
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func closeFunc(c io.Closer) func(context.Context) error {
	return func(context.Context) error { return c.Close() }
}

// newApp builds the stores, ledger, event plumbing and services selected by
// cfg. Call Close to release them.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, clock: clock.NewSystem()}

	tp, shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "rxchain",
		ServiceVersion: version,
		Environment:    cfg.Env,
		Endpoint:       cfg.OTelEndpoint,
		Insecure:       !cfg.IsProduction(),
	})
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	a.tracer = tp
	a.onClose(shutdown)

	if err := a.openLedger(); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.openIdempotency(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	var (
		orgRepo   organization.Repository
		stockRepo inventory.Repository
		reqRepo   medrequest.Repository
		noteStore notification.Store
	)
	switch cfg.StoreDriver {
	case "memory":
		orgRepo = organization.NewMemoryRepo()
		stockRepo = inventory.NewMemoryRepo(a.clock)
		reqRepo = medrequest.NewMemoryRepo()
		noteStore = notification.NewMemoryStore()
		logger.Warn().Msg("using in-memory stores, data is lost on restart")
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.pool = pool
		a.onClose(func(context.Context) error { pool.Close(); return nil })
		orgRepo = organization.NewRepoPG(pool)
		stockRepo = inventory.NewRepoPG(pool)
		reqRepo = medrequest.NewRepoPG(pool)
		noteStore = notification.NewStorePG(pool)
		logger.Info().Msg("connected to database")
	}

	a.orgs = organization.NewService(orgRepo)
	a.notifications = notification.NewService(noteStore, a.clock, logger)

	a.bus = events.NewBus(logger)
	a.bus.Subscribe(notification.NewDispatcher(a.notifications, organization.NewRecipients(a.orgs), nil, logger))
	if err := a.openBroker(); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.stock = inventory.NewService(stockRepo, a.orgs, inventory.Thresholds{LowStock: cfg.LowStockThreshold}, logger)
	a.batches = batch.NewService(a.ledger, a.stock, a.bus, a.clock, logger)
	a.requests = medrequest.NewService(reqRepo, a.stock, a.bus, a.clock, logger)
	return a, nil
}

func (a *app) openLedger() error {
	var gw ledger.Gateway
	switch a.cfg.ResolvedLedgerDriver() {
	case "memory":
		gw = ledger.NewMemory(a.clock)
		a.logger.Warn().Msg("using in-memory ledger")
	default:
		f, err := ledger.NewFabric(ledger.FabricConfig{
			PeerEndpoint:     a.cfg.FabricPeerEndpoint,
			PeerHostOverride: a.cfg.FabricPeerHostOverride,
			TLSCertPath:      a.cfg.FabricTLSCertPath,
			CertPath:         a.cfg.FabricCertPath,
			KeyPath:          a.cfg.FabricKeyPath,
			MSPID:            a.cfg.FabricMSPID,
			Channel:          a.cfg.FabricChannel,
			Chaincode:        a.cfg.FabricChaincode,
			Contract:         a.cfg.FabricContract,
			Timeout:          a.cfg.LedgerTimeout,
		})
		if err != nil {
			return fmt.Errorf("connect to ledger: %w", err)
		}
		a.onClose(closeFunc(f))
		gw = f
		a.logger.Info().Str("peer", a.cfg.FabricPeerEndpoint).Str("channel", a.cfg.FabricChannel).Msg("connected to ledger")
	}
	a.ledger = ledger.NewTraced(gw, a.tracer)
	return nil
}

// openIdempotency uses Redis when REDIS_URL is set and reachable, and an
// in-process store otherwise. An in-process store only protects a single
// replica.
func (a *app) openIdempotency(ctx context.Context) error {
	if a.cfg.RedisURL == "" {
		a.idem = middleware.NewMemoryIdempotencyStore(a.clock)
		return nil
	}
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		a.logger.Warn().Err(err).Msg("redis unreachable, idempotency keys kept in process")
		a.idem = middleware.NewMemoryIdempotencyStore(a.clock)
		return nil
	}
	a.onClose(closeFunc(client))
	a.idem = middleware.NewRedisIdempotencyStore(client)
	return nil
}

func (a *app) openBroker() error {
	switch a.cfg.EventBroker {
	case "amqp":
		p, err := events.NewAMQPPublisher(a.cfg.AMQPURL, a.cfg.AMQPExchange)
		if err != nil {
			return err
		}
		a.bus.Subscribe(p)
		a.onClose(closeFunc(p))
	case "kafka":
		p := events.NewKafkaPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaTopic)
		a.bus.Subscribe(p)
		a.onClose(closeFunc(p))
	}
	return nil
}

// Close releases dependencies in reverse order of acquisition.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}

func (a *app) authMiddleware() echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:   a.cfg.AuthIssuer,
		Audience: a.cfg.AuthAudience,
		JWKSURL:  a.cfg.AuthJWKSURL,
	}
	if a.cfg.AuthSigningKey != "" {
		jwtCfg.SigningKey = []byte(a.cfg.AuthSigningKey)
	}
	if a.cfg.ResolvedAuthMode() == "development" {
		return auth.DevAuthMiddleware(jwtCfg)
	}
	return auth.JWTMiddleware(jwtCfg)
}

func (a *app) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = response.ErrorHandler(a.logger)

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(telemetry.Middleware(a.tracer))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", middleware.IdempotencyKeyHeader},
	}))
	e.Use(a.authMiddleware())

	e.GET("/health", func(c echo.Context) error {
		return response.OK(c, "ok", map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", a.dbHealth)

	rl := middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.RateLimitRPS,
		BurstSize:         a.cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	api := e.Group("/api/v1", middleware.RateLimit(rl))

	idem := middleware.Idempotency(a.idem, middleware.DefaultIdempotencyTTL, a.logger)
	batch.NewHandler(a.batches, idem).RegisterRoutes(api)
	inventory.NewHandler(a.stock).RegisterRoutes(api)
	medrequest.NewHandler(a.requests).RegisterRoutes(api)
	notification.NewHandler(a.notifications).RegisterRoutes(api)
	organization.NewHandler(a.orgs).RegisterRoutes(api)
	return e
}

func (a *app) dbHealth(c echo.Context) error {
	if a.pool == nil {
		return response.OK(c, "in-memory store", map[string]string{"driver": "memory"})
	}
	return db.HealthHandler(a.pool)(c)
}

var errNeedsPostgres = errors.New("this command needs STORE_DRIVER=postgres")
