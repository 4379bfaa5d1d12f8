package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/Checker-Finance/swap-router/internal/analytics"
	"github.com/Checker-Finance/swap-router/internal/api"
	"github.com/Checker-Finance/swap-router/internal/jobs"
	"github.com/Checker-Finance/swap-router/internal/onchain"
	"github.com/Checker-Finance/swap-router/internal/publisher"
	"github.com/Checker-Finance/swap-router/internal/quote"
	"github.com/Checker-Finance/swap-router/internal/quotelog"
	"github.com/Checker-Finance/swap-router/internal/rate"
	"github.com/Checker-Finance/swap-router/internal/routingapi"
	"github.com/Checker-Finance/swap-router/internal/store"
	"github.com/Checker-Finance/swap-router/internal/tracing"
	"github.com/Checker-Finance/swap-router/pkg/config"
	"github.com/Checker-Finance/swap-router/pkg/logger"
	"github.com/Checker-Finance/swap-router/pkg/secrets"
	"github.com/Checker-Finance/swap-router/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Infof("starting [%s]...", cfg.ServiceName)

	if err := cfg.Validate(); err != nil {
		logg.Fatalw("invalid configuration", "error", err)
	}

	// --- Tracing ---
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    cfg.OTELInsecure,
		Headers:     cfg.OTELHeaders,
		Enabled:     cfg.TracingEnabled,
	})
	if err != nil {
		logg.Fatalw("failed to init tracing", "error", err)
	}

	// --- Routing API key (env or AWS Secrets Manager) ---
	apiKey := cfg.RoutingAPIKey
	if cfg.RoutingAPIKeySecret != "" {
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion, cfg.SecretsCacheTTL)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		apiKey, err = secrets.Lookup(ctx, awsProvider, cfg.RoutingAPIKeySecret, cfg.RoutingAPIKeySecretField)
		if err != nil {
			logg.Fatalw("failed to resolve routing api key", "secret", cfg.RoutingAPIKeySecret, "error", err)
		}
		logg.Infow("routing api key resolved", "secret", cfg.RoutingAPIKeySecret, "key", utils.MaskKey(apiKey))
	}

	// --- Rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RoutingAPIRequestsPerSec,
		Burst:             cfg.RoutingAPIBurst,
	})

	// --- Routing API client ---
	remote, err := routingapi.NewClient(logger.Named("routingapi"), routingapi.Options{
		BaseURL:       cfg.RoutingAPIURL,
		APIKey:        apiKey,
		RequestSource: cfg.RequestSource,
		HTTPClient:    &http.Client{Timeout: cfg.RoutingAPITimeout},
		RateLimiter:   rateMgr,
	})
	if err != nil {
		logg.Fatalw("failed to init routing api client", "error", err)
	}

	// --- On-chain fallback engine ---
	engine := onchain.NewEngine(onchain.Options{
		RPCURLs:           cfg.RPCURLs,
		QuoterV2Addresses: cfg.QuoterV2Addresses,
		V2RouterAddresses: cfg.V2RouterAddresses,
		Timeout:           cfg.OnchainTimeout,
		Logger:            logger.Named("onchain"),
	})
	logg.Infow("onchain engine ready", "chains", engine.Chains())

	// --- Diagnostics sinks ---
	var (
		nc    *nats.Conn
		pub   *publisher.Publisher
		sinks []analytics.Sink
	)
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		pub, err = publisher.New(nc, cfg.ServiceName)
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
		if err := pub.EnsureStream(cfg.NATSStream, "evt.quote.>"); err != nil {
			logg.Fatalw("failed to ensure stream", "stream", cfg.NATSStream, "error", err)
		}
		sinks = append(sinks, analytics.NewNATSSink(pub, cfg.NoRouteSubject))
	} else {
		logg.Warn("NATS_URL not configured; no-route events are not published to NATS")
	}

	var amqpSink *analytics.AMQPSink
	if cfg.AMQPURL != "" {
		amqpSink, err = analytics.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger.Named("analytics"))
		if err != nil {
			logg.Fatalw("failed to init amqp sink", "error", err)
		}
		sinks = append(sinks, amqpSink)
	}
	diagnostics := analytics.NewFanout(logger.Named("analytics"), sinks...)
	logg.Infow("diagnostics sinks", "sinks", diagnostics.Sinks())

	// --- Quote log (Postgres) ---
	var (
		pool       *pgxpool.Pool
		recorder   quote.Recorder
		pruner     *jobs.QuoteLogPruner
		writerDone chan struct{}
	)
	if cfg.DatabaseURL != "" {
		logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
		pool, err = store.NewPGPool(ctx, cfg.DatabaseURL, store.PGPoolConfig{
			MaxConns:          int32(cfg.PGMaxConns),
			MinConns:          int32(cfg.PGMinConns),
			MaxConnLifetime:   cfg.PGMaxConnLifetime,
			MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
			HealthCheckPeriod: cfg.PGHealthCheckPeriod,
		})
		if err != nil {
			logg.Fatalw("failed to init postgres", "error", err)
		}

		writer := quotelog.NewWriter(pool, logger.Named("quotelog"), cfg.ServiceName, 0)
		writerDone = make(chan struct{})
		go func() {
			writer.Run(ctx)
			close(writerDone)
		}()
		recorder = writer

		var prunedPub jobs.EventPublisher
		if pub != nil {
			prunedPub = pub
		}
		pruner = jobs.NewQuoteLogPruner(logger.Named("jobs"), pool, prunedPub, cfg.QuoteLogPruneInterval, cfg.QuoteLogRetention)
		go pruner.Start(ctx)
	}

	// --- Result store (Redis or in-memory) ---
	var st store.Store
	if cfg.RedisAddr != "" {
		st, err = store.NewRedis(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, logger.Named("store"))
		if err != nil {
			logg.Fatalw("failed to init store", "error", err)
		}
	} else {
		st = store.NewMemory(cfg.CleanupFreq)
	}
	results := store.NewResults(st, cfg.QuoteResultTTL, logger.Named("store"))

	// --- Orchestrator ---
	orch, err := quote.NewOrchestrator(quote.Options{
		BaseURL:         cfg.RoutingAPIURL,
		Remote:          remote,
		Local:           engine,
		Diagnostics:     diagnostics,
		Recorder:        recorder,
		SyntheticChains: cfg.SyntheticChainSet(),
		Tracer:          otel.Tracer(cfg.ServiceName),
		Logger:          logger.Named("quote"),
	})
	if err != nil {
		logg.Fatalw("failed to init orchestrator", "error", err)
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})
	quoteHandler := api.NewQuoteHandler(logger.Named("api"), orch, results)
	api.RegisterRoutes(app, nc, st, quoteHandler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow(fmt.Sprintf("[%s] running", cfg.ServiceName),
		"env", cfg.Env,
		"routing_api", cfg.RoutingAPIURL,
		"nats", cfg.NATSURL != "",
		"quote_log", pool != nil)

	// --- Main process stays alive until interrupted ---
	<-ctx.Done()
	logg.Infof("shutting down [%s]...", cfg.ServiceName)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if pruner != nil {
		pruner.Stop()
	}
	if amqpSink != nil {
		if err := amqpSink.Close(); err != nil {
			logg.Warnw("amqp.close_failed", "error", err)
		}
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logg.Warnw("nats.drain_failed", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
	if pool != nil {
		<-writerDone
		pool.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logg.Warnw("tracing.shutdown_failed", "error", err)
	}
}
