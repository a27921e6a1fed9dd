package messaging

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitConfig holds configuration for the RabbitMQ client.
type RabbitConfig struct {
	URL string

	// Resilience
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	HeartbeatTimeout  time.Duration
}

// DefaultRabbitConfig returns a default configuration.
func DefaultRabbitConfig(url string) RabbitConfig {
	return RabbitConfig{
		URL:               url,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 60 * time.Second,
		HeartbeatTimeout:  10 * time.Second,
	}
}

// RabbitClient is a reconnecting AMQP connection with a single channel.
type RabbitClient struct {
	config RabbitConfig
	conn   *amqp.Connection
	ch     *amqp.Channel
	mu     sync.RWMutex

	notifyConnClose chan *amqp.Error
	isClosed        bool
}

func NewRabbitClient(config RabbitConfig) (*RabbitClient, error) {
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = time.Second
	}
	if config.MaxReconnectDelay == 0 {
		config.MaxReconnectDelay = 60 * time.Second
	}
	if config.HeartbeatTimeout == 0 {
		config.HeartbeatTimeout = 10 * time.Second
	}

	client := &RabbitClient{config: config}
	if err := client.connect(); err != nil {
		return nil, err
	}

	go client.handleReconnect()
	return client, nil
}

func (r *RabbitClient) connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	log.Printf("Connecting to RabbitMQ at %s", r.maskURL(r.config.URL))

	conn, err := amqp.DialConfig(r.config.URL, amqp.Config{
		Heartbeat: r.config.HeartbeatTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	r.conn = conn
	r.ch = ch
	r.notifyConnClose = make(chan *amqp.Error)
	r.conn.NotifyClose(r.notifyConnClose)

	log.Println("Successfully connected to RabbitMQ")
	return nil
}

func (r *RabbitClient) handleReconnect() {
	for {
		r.mu.RLock()
		if r.isClosed {
			r.mu.RUnlock()
			return
		}
		notifyClose := r.notifyConnClose
		r.mu.RUnlock()

		err, ok := <-notifyClose
		if !ok || err == nil {
			return
		}
		log.Printf("RabbitMQ connection closed: %v. Reconnecting...", err)

		delay := r.config.ReconnectDelay
		for {
			r.mu.RLock()
			closed := r.isClosed
			r.mu.RUnlock()
			if closed {
				return
			}
			if err := r.connect(); err == nil {
				break
			} else {
				log.Printf("RabbitMQ reconnect failed: %v (retrying in %v)", err, delay)
			}
			time.Sleep(delay)
			delay *= 2
			if delay > r.config.MaxReconnectDelay {
				delay = r.config.MaxReconnectDelay
			}
		}
	}
}

// DeclareQueue declares a durable queue.
func (r *RabbitClient) DeclareQueue(name string) (amqp.Queue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ch.QueueDeclare(name, true, false, false, false, nil)
}

// Publish sends a persistent JSON message directly to the named queue.
func (r *RabbitClient) Publish(ctx context.Context, queueName string, body []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consume delivers messages from the named queue to handler until ctx is done.
// Messages are acked on success and nacked (without requeue) on handler error.
func (r *RabbitClient) Consume(ctx context.Context, queueName string, handler func(body []byte) error) error {
	r.mu.RLock()
	ch := r.ch
	r.mu.RUnlock()

	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming from %s: %w", queueName, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer channel for %s closed", queueName)
			}
			if err := handler(msg.Body); err != nil {
				log.Printf("Failed to handle message from %s: %v", queueName, err)
				msg.Nack(false, false)
				continue
			}
			msg.Ack(false)
		}
	}
}

// IsHealthy reports whether the underlying connection is open.
func (r *RabbitClient) IsHealthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn != nil && !r.conn.IsClosed()
}

func (r *RabbitClient) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.isClosed = true
	if r.ch != nil {
		r.ch.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}

// maskURL hides credentials when logging connection targets.
func (r *RabbitClient) maskURL(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at == -1 || scheme == -1 {
		return url
	}
	return url[:scheme+3] + "***:***" + url[at:]
}
