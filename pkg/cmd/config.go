// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"time"

	"github.com/dukex/reportgen/pkg/renderer"
	"github.com/urfave/cli/v3"
)

// Config is the process configuration shared by the worker and the operator CLI.
type Config struct {
	LogLevel         string
	DatabaseURL      string
	RedisURL         string
	EventBus         string
	KafkaBrokers     string
	IndexURL         string
	TemplatesToken   string
	FetchTimeout     time.Duration
	SyncInterval     time.Duration
	GeneratorHost    string
	MaxRetries       int
	Backoff          time.Duration
	HTTPTimeout      time.Duration
	DataSourceDriver string
	DataSourceDSN    string
	S3Endpoint       string
	S3AccessKey      string
	S3SecretKey      string
	S3UseSSL         bool
	OtelEnabled      bool
}

// Flags declares one flag per Config setting, each overridable from the environment.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Report storage URL (postgres://... or file://path)",
			Value:   "file://./data",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Template asset cache URL (redis://... or memory)",
			Value:   "redis://localhost:6379/0",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (kafka, memory)",
			Value:   "memory",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:     "templates-index-url",
			Usage:    "URL of the remote template index document",
			Required: true,
			Sources:  cli.EnvVars("TEMPLATES_INDEX_URL"),
		},
		&cli.StringFlag{
			Name:    "templates-token",
			Usage:   "Bearer token sent when fetching templates",
			Sources: cli.EnvVars("TEMPLATES_TOKEN", "GITHUB_TOKEN"),
		},
		&cli.DurationFlag{
			Name:    "templates-fetch-timeout",
			Usage:   "Timeout of a single template fetch",
			Value:   30 * time.Second,
			Sources: cli.EnvVars("TEMPLATES_FETCH_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    "templates-sync-interval",
			Usage:   "Interval of the scheduled template sync",
			Value:   5 * time.Minute,
			Sources: cli.EnvVars("TEMPLATES_SYNC_INTERVAL"),
		},
		&cli.StringFlag{
			Name:    "generator-host",
			Usage:   "Address of the PDF renderer service",
			Value:   "generator:3000",
			Sources: cli.EnvVars("GENERATOR_HOST"),
		},
		&cli.IntFlag{
			Name:    "request-max-retries",
			Usage:   "Retries of a failed render request",
			Value:   renderer.DefaultMaxRetries,
			Sources: cli.EnvVars("REQUEST_MAX_RETRIES"),
		},
		&cli.DurationFlag{
			Name:    "request-backoff",
			Usage:   "Initial backoff between render retries",
			Value:   renderer.DefaultBackoff,
			Sources: cli.EnvVars("REQUEST_BACKOFF"),
		},
		&cli.DurationFlag{
			Name:    "http-timeout",
			Usage:   "Timeout of a single render request",
			Value:   renderer.DefaultTimeout,
			Sources: cli.EnvVars("HTTP_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:    "datasource-driver",
			Usage:   "Database driver exposed to template scripts (sqlserver, postgres)",
			Value:   "sqlserver",
			Sources: cli.EnvVars("DATASOURCE_DRIVER"),
		},
		&cli.StringFlag{
			Name:    "datasource-dsn",
			Usage:   "DSN of the database exposed to template scripts",
			Sources: cli.EnvVars("DATASOURCE_DSN", "MSSQL_DSN"),
		},
		&cli.StringFlag{
			Name:    "s3-endpoint",
			Usage:   "S3-compatible endpoint serving s3:// template URLs",
			Sources: cli.EnvVars("S3_ENDPOINT"),
		},
		&cli.StringFlag{
			Name:    "s3-access-key",
			Sources: cli.EnvVars("S3_ACCESS_KEY"),
		},
		&cli.StringFlag{
			Name:    "s3-secret-key",
			Sources: cli.EnvVars("S3_SECRET_KEY"),
		},
		&cli.BoolFlag{
			Name:    "s3-use-ssl",
			Value:   true,
			Sources: cli.EnvVars("S3_USE_SSL"),
		},
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}
}

func ConfigFromCommand(command *cli.Command) Config {
	return Config{
		LogLevel:         command.String("log-level"),
		DatabaseURL:      command.String("database-url"),
		RedisURL:         command.String("redis-url"),
		EventBus:         command.String("event-bus"),
		KafkaBrokers:     command.String("kafka-brokers"),
		IndexURL:         command.String("templates-index-url"),
		TemplatesToken:   command.String("templates-token"),
		FetchTimeout:     command.Duration("templates-fetch-timeout"),
		SyncInterval:     command.Duration("templates-sync-interval"),
		GeneratorHost:    command.String("generator-host"),
		MaxRetries:       command.Int("request-max-retries"),
		Backoff:          command.Duration("request-backoff"),
		HTTPTimeout:      command.Duration("http-timeout"),
		DataSourceDriver: command.String("datasource-driver"),
		DataSourceDSN:    command.String("datasource-dsn"),
		S3Endpoint:       command.String("s3-endpoint"),
		S3AccessKey:      command.String("s3-access-key"),
		S3SecretKey:      command.String("s3-secret-key"),
		S3UseSSL:         command.Bool("s3-use-ssl"),
		OtelEnabled:      command.Bool("otel-enabled"),
	}
}
