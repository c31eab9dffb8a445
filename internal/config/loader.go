// Package config loads environment driven configuration for the brokerage
// service.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config captures the runtime settings of the brokerage API process.
type Config struct {
	HTTPAddr   string        `envconfig:"BROKERAGE_HTTP_ADDR" default:":8080"`
	SQLitePath string        `envconfig:"BROKERAGE_SQLITE_PATH" default:"brokerage.db"`
	JWTSecret  string        `envconfig:"BROKERAGE_JWT_SECRET" required:"true"`
	SessionTTL time.Duration `envconfig:"BROKERAGE_SESSION_TTL" default:"24h"`

	// AMQPURL is optional; when empty, lifecycle events are dropped.
	AMQPURL      string `envconfig:"BROKERAGE_AMQP_URL"`
	AMQPExchange string `envconfig:"BROKERAGE_AMQP_EXCHANGE" default:"brokerage.events"`

	// OTLPEndpoint is optional; when empty, tracing is disabled.
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Environment  string `envconfig:"BROKERAGE_ENV" default:"dev"`
}

// Load parses configuration values from the current process environment.
func Load() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
