package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Checker-Finance/swap-router/pkg/model"
)

// ErrMissingRoutingAPIURL is returned by Validate when ROUTING_API_URL is unset.
// The service refuses to start without it.
var ErrMissingRoutingAPIURL = errors.New("ROUTING_API_URL is not configured")

// Config holds the core runtime configuration for a service instance.
// It supports environment-based initialization, with sensible defaults.
type Config struct {
	ServiceName string // e.g. "swap-router"
	Env         string // e.g. "dev", "uat", "prod"
	LogLevel    string // "debug", "info", etc.
	Port        int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	// Routing API
	RoutingAPIURL            string
	RoutingAPIKey            string
	RoutingAPIKeySecret      string // AWS Secrets Manager name holding the key, optional
	RoutingAPIKeySecretField string
	RequestSource            string // x-request-source header value
	RoutingAPITimeout        time.Duration
	RoutingAPIRequestsPerSec int
	RoutingAPIBurst          int

	// Quote acquisition
	SyntheticChainIDs []model.ChainID
	QuoteResultTTL    time.Duration

	// On-chain fallback engine
	RPCURLs           map[model.ChainID]string
	QuoterV2Addresses map[model.ChainID]string
	V2RouterAddresses map[model.ChainID]string
	OnchainTimeout    time.Duration

	// Result retention; in-memory when RedisAddr is empty
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CleanupFreq time.Duration

	// Diagnostics
	NATSURL        string
	NATSStream     string
	NoRouteSubject string
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Quote log (Postgres); disabled when DatabaseURL is empty
	DatabaseURL           string
	PGMaxConns            int
	PGMinConns            int
	PGMaxConnLifetime     time.Duration
	PGMaxConnIdleTime     time.Duration
	PGHealthCheckPeriod   time.Duration
	QuoteLogRetention     time.Duration
	QuoteLogPruneInterval time.Duration

	AWSRegion       string
	SecretsCacheTTL time.Duration

	// Tracing
	TracingEnabled bool
	OTELEndpoint   string
	OTELInsecure   bool
	OTELHeaders    map[string]string
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	return &Config{
		ServiceName:      GetEnv("SERVICE_NAME", "swap-router"),
		Env:              GetEnv("ENV", "dev"),
		LogLevel:         GetEnv("LOG_LEVEL", "info"),
		Port:             GetEnvInt("PORT", 9030),
		HTTPReadTimeout:  GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: GetEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		HTTPIdleTimeout:  GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:    GetEnvInt("HTTP_BODY_LIMIT", 64*1024),

		RoutingAPIURL:            GetEnv("ROUTING_API_URL", ""),
		RoutingAPIKey:            GetEnv("ROUTING_API_KEY", ""),
		RoutingAPIKeySecret:      GetEnv("ROUTING_API_KEY_SECRET", ""),
		RoutingAPIKeySecretField: GetEnv("ROUTING_API_KEY_SECRET_FIELD", "api_key"),
		RequestSource:            GetEnv("REQUEST_SOURCE", "swap-router"),
		RoutingAPITimeout:        GetEnvDuration("ROUTING_API_TIMEOUT", 10*time.Second),
		RoutingAPIRequestsPerSec: GetEnvInt("ROUTING_API_RPS", 20),
		RoutingAPIBurst:          GetEnvInt("ROUTING_API_BURST", 40),

		SyntheticChainIDs: parseChainIDs(GetEnvList("SYNTHETIC_CHAIN_IDS", []string{"1"})),
		QuoteResultTTL:    GetEnvDuration("QUOTE_RESULT_TTL", 10*time.Second),

		RPCURLs:           parseChainMap(GetEnvMap("RPC_URLS")),
		QuoterV2Addresses: parseChainMap(GetEnvMap("QUOTER_V2_ADDRESSES")),
		V2RouterAddresses: parseChainMap(GetEnvMap("V2_ROUTER_ADDRESSES")),
		OnchainTimeout:    GetEnvDuration("ONCHAIN_TIMEOUT", 15*time.Second),

		RedisAddr:   GetEnv("REDIS_ADDR", ""),
		RedisDB:     GetEnvInt("REDIS_DB", 0),
		RedisPass:   GetEnv("REDIS_PASS", ""),
		CleanupFreq: GetEnvDuration("CACHE_CLEANUP_FREQ", time.Minute),

		NATSURL:        GetEnv("NATS_URL", ""),
		NATSStream:     GetEnv("NATS_STREAM", "QUOTE_EVENTS"),
		NoRouteSubject: GetEnv("NO_ROUTE_SUBJECT", "evt.quote.no_route.v1"),
		AMQPURL:        GetEnv("AMQP_URL", ""),
		AMQPExchange:   GetEnv("AMQP_EXCHANGE", "quote.events"),
		AMQPRoutingKey: GetEnv("AMQP_ROUTING_KEY", "quote.no_route"),

		DatabaseURL:           GetEnv("DATABASE_URL", ""),
		PGMaxConns:            GetEnvInt("PG_MAX_CONNS", 10),
		PGMinConns:            GetEnvInt("PG_MIN_CONNS", 2),
		PGMaxConnLifetime:     GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:     GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod:   GetEnvDuration("PG_HEALTH_CHECK_PERIOD", 1*time.Minute),
		QuoteLogRetention:     GetEnvDuration("QUOTE_LOG_RETENTION", 30*24*time.Hour),
		QuoteLogPruneInterval: GetEnvDuration("QUOTE_LOG_PRUNE_INTERVAL", time.Hour),

		AWSRegion:       GetEnv("AWS_REGION", "us-east-2"),
		SecretsCacheTTL: GetEnvDuration("SECRETS_CACHE_TTL", time.Hour),

		TracingEnabled: GetEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:   GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTELInsecure:   GetEnvBool("OTEL_INSECURE", true),
		OTELHeaders:    GetEnvMap("OTEL_EXPORTER_OTLP_HEADERS"),
	}
}

// Validate reports configuration that makes the service unable to start.
func (c *Config) Validate() error {
	if c.RoutingAPIURL == "" {
		return ErrMissingRoutingAPIURL
	}
	u, err := url.Parse(c.RoutingAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ROUTING_API_URL %q is not an absolute URL", c.RoutingAPIURL)
	}
	if c.Port <= 0 {
		return fmt.Errorf("PORT must be positive, got %d", c.Port)
	}
	if c.QuoteResultTTL <= 0 {
		return fmt.Errorf("QUOTE_RESULT_TTL must be positive, got %v", c.QuoteResultTTL)
	}
	return nil
}

// SyntheticChainSet returns SyntheticChainIDs as a lookup set.
func (c *Config) SyntheticChainSet() map[model.ChainID]struct{} {
	set := make(map[model.ChainID]struct{}, len(c.SyntheticChainIDs))
	for _, id := range c.SyntheticChainIDs {
		set[id] = struct{}{}
	}
	return set
}

func parseChainIDs(raw []string) []model.ChainID {
	out := make([]model.ChainID, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		out = append(out, model.ChainID(id))
	}
	return out
}

func parseChainMap(raw map[string]string) map[model.ChainID]string {
	out := make(map[model.ChainID]string, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		out[model.ChainID(id)] = v
	}
	return out
}
