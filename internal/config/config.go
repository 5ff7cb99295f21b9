package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	Database DatabaseConfig
	MinIO    MinIOConfig
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
	Catalog  CatalogConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`

	// MaxUploadBytes bounds a whole multipart request body.
	MaxUploadBytes int64 `envconfig:"API_MAX_UPLOAD_BYTES" default:"55834574848"`
}

type WorkerConfig struct {
	MaxRetries      int           `envconfig:"WORKER_MAX_RETRIES" default:"5"`
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
	MetricsPort     int           `envconfig:"WORKER_METRICS_PORT" default:"9091"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"catalog"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"catalog"`
	DBName   string `envconfig:"POSTGRES_DB" default:"catalog"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
	MinConns int32  `envconfig:"POSTGRES_MIN_CONNS" default:"2"`

	// Migrate applies embedded migrations on API startup.
	Migrate bool `envconfig:"POSTGRES_MIGRATE" default:"true"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type MinIOConfig struct {
	Endpoint       string        `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	PublicEndpoint string        `envconfig:"MINIO_PUBLIC_ENDPOINT"`
	AccessKey      string        `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey      string        `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket         string        `envconfig:"MINIO_BUCKET" default:"videos"`
	UseSSL         bool          `envconfig:"MINIO_USE_SSL" default:"false"`
	PublicURL      string        `envconfig:"MINIO_PUBLIC_URL"`
	URLExpiry      time.Duration `envconfig:"MINIO_URL_EXPIRY" default:"1h"`
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"catalog"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"catalog"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
	Queue    string `envconfig:"RABBITMQ_CLEANUP_QUEUE" default:"file_cleanup"`

	// DeadLetterQueue collects tasks the worker gave up on. Empty disables it.
	DeadLetterQueue string `envconfig:"RABBITMQ_DEAD_LETTER_QUEUE" default:"file_cleanup.dead"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// CatalogConfig tunes the video persistence saga and the read cache.
type CatalogConfig struct {
	UploadConcurrency   int           `envconfig:"CATALOG_UPLOAD_CONCURRENCY" default:"1"`
	CompensationTimeout time.Duration `envconfig:"CATALOG_COMPENSATION_TIMEOUT" default:"30s"`
	CacheTTL            time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"5m"`
}

func (c CatalogConfig) validate() error {
	if c.UploadConcurrency < 1 {
		return fmt.Errorf("CATALOG_UPLOAD_CONCURRENCY must be at least 1, got %d", c.UploadConcurrency)
	}
	if c.CompensationTimeout <= 0 {
		return errors.New("CATALOG_COMPENSATION_TIMEOUT must be positive")
	}
	return nil
}

// Load reads configuration from the environment.
// Variables in a .env file fill in anything the environment does not set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Catalog.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
