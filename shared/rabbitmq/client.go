package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v5"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned when publishing on a closed client
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// Config holds RabbitMQ connection configuration
type Config struct {
	Host              string
	Port              int
	User              string
	Password          string
	VHost             string
	ExchangeName      string
	ExchangeType      string
	ExchangeDurable   bool
	QueueName         string // optional; declared and bound when set
	QueueDurable      bool
	RoutingKey        string
	RetryAttempts     int
	RetryInterval     time.Duration
	Heartbeat         time.Duration
	PublishRetries    int
	PublishRetryDelay time.Duration
	PublishMaxDelay   time.Duration
}

// URL renders the AMQP connection URL
func (c *Config) URL() string {
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}

	return fmt.Sprintf("amqp://%s@%s:%d/%s",
		url.UserPassword(c.User, c.Password).String(),
		c.Host,
		c.Port,
		url.PathEscape(vhost),
	)
}

// publishRetrier retries a failed publish with exponential backoff, PublishRetries
// times after the first attempt. Context errors are never retried.
func (c *Config) publishRetrier(ctx context.Context) *retry.Retrier {
	retries := c.PublishRetries
	if retries < 0 {
		retries = 0
	}

	delay := c.PublishRetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	maxDelay := c.PublishMaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	return retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(retries)+1),
		retry.Delay(delay),
		retry.MaxDelay(maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
		retry.LastErrorOnly(true),
	)
}

// connectRetrier retries dialing at a fixed interval
func (c *Config) connectRetrier(ctx context.Context) *retry.Retrier {
	return retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(c.connectAttempts())),
		retry.Delay(c.RetryInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

func (c *Config) connectAttempts() int {
	if c.RetryAttempts <= 0 {
		return 1
	}
	return c.RetryAttempts
}

type dialFunc func(url string, config amqp.Config) (*amqp.Connection, error)

// Client is a publisher bound to one exchange
type Client struct {
	config  *Config
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
	dial    dialFunc

	mu sync.Mutex
}

// NewClient connects and declares the exchange (and queue if configured)
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
		dial:   amqp.DialConfig,
	}

	if err := client.connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

func (c *Client) connect(ctx context.Context) error {
	if err := c.dialWithRetry(ctx); err != nil {
		return err
	}

	var err error
	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.setup(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return fmt.Errorf("failed to setup exchange: %w", err)
	}

	c.logger.Info("RabbitMQ publisher initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.String("routing_key", c.config.RoutingKey),
	)

	return nil
}

func (c *Client) dialWithRetry(ctx context.Context) error {
	attempts := c.config.connectAttempts()
	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}

	attempt := 0
	err := c.config.connectRetrier(ctx).Do(func() error {
		attempt++
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		conn, err := c.dial(c.config.URL(), amqpConfig)
		if err != nil {
			c.logger.Error("Failed to connect to RabbitMQ",
				slog.Any("error", err),
				slog.Int("attempt", attempt),
			)
			return err
		}

		c.conn = conn
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempt, err)
	}

	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.config.ExchangeName,    // name
		c.config.ExchangeType,    // type
		c.config.ExchangeDurable, // durable
		false,                    // auto-deleted
		false,                    // internal
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if c.config.QueueName == "" {
		return nil
	}

	_, err = c.channel.QueueDeclare(
		c.config.QueueName,    // name
		c.config.QueueDurable, // durable
		false,                 // auto-delete
		false,                 // exclusive
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.config.QueueName,    // queue name
		c.config.RoutingKey,   // routing key
		c.config.ExchangeName, // exchange
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
}

// Publish publishes a persistent message, retrying with exponential backoff
func (c *Client) Publish(ctx context.Context, body []byte, contentType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return c.publishWithRetry(ctx, func() error {
		return c.channel.PublishWithContext(
			ctx,
			c.config.ExchangeName, // exchange
			c.config.RoutingKey,   // routing key
			false,                 // mandatory
			false,                 // immediate
			amqp.Publishing{
				ContentType:  contentType,
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
			},
		)
	}, len(body))
}

func (c *Client) publishWithRetry(ctx context.Context, publish func() error, bodySize int) error {
	attempt := 0
	err := c.config.publishRetrier(ctx).Do(func() error {
		attempt++
		err := publish()
		if err != nil {
			c.logger.Warn("Failed to publish message to RabbitMQ",
				slog.Int("attempt", attempt),
				slog.Int("max_retries", c.config.PublishRetries),
				slog.Any("error", err),
			)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to publish message after %d attempts: %w", attempt, err)
	}

	c.logger.Debug("Message published to RabbitMQ",
		slog.Int("body_size", bodySize),
		slog.Int("attempt", attempt),
	)
	return nil
}

// Close closes the channel and the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			c.logger.Error("Failed to close RabbitMQ channel",
				slog.Any("error", err),
			)
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			c.logger.Error("Failed to close RabbitMQ connection",
				slog.Any("error", err),
			)
			return err
		}
	}

	c.logger.Info("RabbitMQ connection closed")
	return nil
}
