package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuongbtq/scrapequeue/internal/batchclient"
	"github.com/cuongbtq/scrapequeue/shared/logger"
	"github.com/cuongbtq/scrapequeue/shared/postgresql"
	"github.com/cuongbtq/scrapequeue/shared/rabbitmq"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// SinkLog logs job results
	SinkLog = "log"
	// SinkRabbitMQ publishes job results to RabbitMQ
	SinkRabbitMQ = "rabbitmq"
)

// Config represents the complete application configuration
type Config struct {
	App          AppConfig          `yaml:"app"`
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Logging      LoggingConfig      `yaml:"logging"`
	Queue        JobQueueConfig     `yaml:"queue"`
	BatchService BatchServiceConfig `yaml:"batch_service"`
	Worker       WorkerConfig       `yaml:"worker"`
	Sink         SinkConfig         `yaml:"sink"`
	RabbitMQ     RabbitMQConfig     `yaml:"rabbitmq"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableSource bool   `yaml:"enable_source"`
	NoColor      bool   `yaml:"no_color"`
}

// JobQueueConfig holds job queue configuration
type JobQueueConfig struct {
	LeaseDuration time.Duration `yaml:"lease_duration"`
}

// BatchServiceConfig holds remote batch service configuration
type BatchServiceConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Source   string        `yaml:"source"`
	Timeout  time.Duration `yaml:"timeout"`
	Retry    RetryConfig   `yaml:"retry"`
}

// RetryConfig holds retry settings for idempotent remote calls
type RetryConfig struct {
	Attempts uint          `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	CycleTimeout    time.Duration `yaml:"cycle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SinkConfig selects where job results go
type SinkConfig struct {
	Type string `yaml:"type"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name    string `yaml:"name"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	MaxInterval   time.Duration `yaml:"max_interval"`
}

// Load reads and parses the configuration file, then applies environment
// overrides for connection settings and secrets
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASS")
	setString(&c.Database.Database, "DB_NAME")
	if err := setInt(&c.Database.Port, "DB_PORT"); err != nil {
		return err
	}

	setString(&c.BatchService.Username, "OXYLABS_USERNAME")
	setString(&c.BatchService.Password, "OXYLABS_PASSWORD")

	setString(&c.RabbitMQ.Host, "RABBITMQ_HOST")
	setString(&c.RabbitMQ.User, "RABBITMQ_USER")
	setString(&c.RabbitMQ.Password, "RABBITMQ_PASSWORD")

	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

// ValidateAPIConfig checks the settings the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	return c.validateBatchService()
}

// ValidateWorkerConfig checks the settings the worker service needs
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateBatchService(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker poll_interval must be greater than 0")
	}

	if c.Worker.CycleTimeout <= 0 {
		return fmt.Errorf("worker cycle_timeout must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	return c.validateSink()
}

// ValidateCLIConfig checks the settings one-shot commands need
func (c *Config) ValidateCLIConfig() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateBatchService(); err != nil {
		return err
	}

	return c.validateSink()
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Queue.LeaseDuration < 0 {
		return fmt.Errorf("queue lease_duration must not be negative")
	}

	return nil
}

func (c *Config) validateBatchService() error {
	if c.BatchService.Username == "" || c.BatchService.Password == "" {
		return fmt.Errorf("batch service credentials are required")
	}

	return nil
}

func (c *Config) validateSink() error {
	switch c.Sink.Type {
	case "", SinkLog:
		return nil
	case SinkRabbitMQ:
	default:
		return fmt.Errorf("unsupported sink type: %q", c.Sink.Type)
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	return nil
}

// LoggerConfig maps the logging section onto the shared logger
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:        c.Logging.Level,
		Format:       c.Logging.Format,
		Output:       c.Logging.Output,
		EnableSource: c.Logging.EnableSource,
		NoColor:      c.Logging.NoColor,
	}
}

// PostgresConfig maps the database section onto the shared postgres client
func (c *Config) PostgresConfig() *postgresql.Config {
	return &postgresql.Config{
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		ConnectTimeout:  c.Database.ConnectTimeout,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}

// BatchClientConfig maps the batch_service section onto the batch client
func (c *Config) BatchClientConfig() batchclient.Config {
	return batchclient.Config{
		BaseURL:  c.BatchService.BaseURL,
		Username: c.BatchService.Username,
		Password: c.BatchService.Password,
		Source:   c.BatchService.Source,
		Timeout:  c.BatchService.Timeout,
		Retry: batchclient.RetryConfig{
			Attempts: c.BatchService.Retry.Attempts,
			Delay:    c.BatchService.Retry.Delay,
			MaxDelay: c.BatchService.Retry.MaxDelay,
		},
	}
}

// RabbitMQClientConfig maps the rabbitmq section onto the shared publisher
func (c *Config) RabbitMQClientConfig() *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:              c.RabbitMQ.Host,
		Port:              c.RabbitMQ.Port,
		User:              c.RabbitMQ.User,
		Password:          c.RabbitMQ.Password,
		VHost:             c.RabbitMQ.VHost,
		ExchangeName:      c.RabbitMQ.Exchange.Name,
		ExchangeType:      c.RabbitMQ.Exchange.Type,
		ExchangeDurable:   c.RabbitMQ.Exchange.Durable,
		QueueName:         c.RabbitMQ.Queue.Name,
		QueueDurable:      c.RabbitMQ.Queue.Durable,
		RoutingKey:        c.RabbitMQ.RoutingKey,
		RetryAttempts:     c.RabbitMQ.Connection.RetryAttempts,
		RetryInterval:     c.RabbitMQ.Connection.RetryInterval,
		Heartbeat:         c.RabbitMQ.Connection.Heartbeat,
		PublishRetries:    c.RabbitMQ.Publish.RetryAttempts,
		PublishRetryDelay: c.RabbitMQ.Publish.RetryInterval,
		PublishMaxDelay:   c.RabbitMQ.Publish.MaxInterval,
	}
}
