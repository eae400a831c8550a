package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dialRetries   = 5
	retryInterval = 2 * time.Second
)

// ErrNotConnected is returned when publishing while the broker is unreachable.
var ErrNotConnected = errors.New("rabbitmq: not connected")

type connection interface {
	Channel() (channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	IsClosed() bool
	Close() error
}

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// amqpConnection adapts *amqp.Connection to connection.
type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// RabbitPublisher publishes ride events to a durable topic exchange. It
// reopens the channel when the broker closes it and redials when the
// connection drops.
type RabbitPublisher struct {
	dial func() (connection, error)
	log  *slog.Logger

	mu      sync.RWMutex
	conn    connection
	channel channel

	done chan struct{}
	once sync.Once
}

var _ Publisher = (*RabbitPublisher)(nil)

// NewRabbitPublisher dials the broker and declares the ride exchange.
func NewRabbitPublisher(url string, log *slog.Logger) (*RabbitPublisher, error) {
	return newRabbitPublisher(func() (connection, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, err
		}
		return amqpConnection{conn}, nil
	}, log, retryInterval)
}

func newRabbitPublisher(dial func() (connection, error), log *slog.Logger, wait time.Duration) (*RabbitPublisher, error) {
	if log == nil {
		log = slog.Default()
	}
	p := &RabbitPublisher{
		dial: dial,
		log:  log.With("component", "rabbitmq"),
		done: make(chan struct{}),
	}

	var err error
	for i := 0; i < dialRetries; i++ {
		if err = p.connect(); err == nil {
			go p.watch()
			return p, nil
		}
		p.log.Warn("rabbitmq connect failed", "attempt", i+1, "error", err)
		time.Sleep(wait)
	}
	return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", dialRetries, err)
}

func (p *RabbitPublisher) connect() error {
	conn, err := p.dial()
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	ch, err := openChannel(conn)
	if err != nil {
		conn.Close()
		return err
	}

	p.mu.Lock()
	p.conn, p.channel = conn, ch
	p.mu.Unlock()
	return nil
}

func openChannel(conn connection) (channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(RideExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", RideExchange, err)
	}
	return ch, nil
}

// watch reopens the channel when the broker closes it, and redials with
// capped backoff when the connection itself is lost.
func (p *RabbitPublisher) watch() {
	for {
		p.mu.RLock()
		conn, ch := p.conn, p.channel
		p.mu.RUnlock()

		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chanClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-p.done:
			return

		case amqpErr := <-chanClosed:
			if amqpErr == nil {
				return
			}
			p.log.Warn("rabbitmq channel closed", "error", amqpErr)
			if !conn.IsClosed() {
				next, err := openChannel(conn)
				if err == nil {
					p.mu.Lock()
					p.channel = next
					p.mu.Unlock()
					p.log.Info("rabbitmq channel reopened")
					continue
				}
				p.log.Warn("rabbitmq channel reopen failed", "error", err)
				conn.Close()
			}
			if !p.reconnect() {
				return
			}

		case amqpErr := <-connClosed:
			if amqpErr == nil {
				return
			}
			p.log.Error("rabbitmq connection lost", "error", amqpErr)
			if !p.reconnect() {
				return
			}
		}
	}
}

// reconnect redials until it succeeds or the publisher is closed. It reports
// whether a new connection is in place.
func (p *RabbitPublisher) reconnect() bool {
	p.mu.Lock()
	p.channel = nil
	p.mu.Unlock()

	backoff := time.Second
	for {
		select {
		case <-p.done:
			return false
		case <-time.After(backoff):
		}
		if err := p.connect(); err != nil {
			p.log.Warn("rabbitmq reconnect failed", "error", err, "backoff", backoff)
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		p.log.Info("rabbitmq reconnected")
		return true
	}
}

// Publish sends event as persistent JSON on the ride exchange.
func (p *RabbitPublisher) Publish(ctx context.Context, event RideEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.channel == nil {
		return ErrNotConnected
	}

	return p.channel.PublishWithContext(ctx, RideExchange, event.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		MessageId:    event.RideID + ":" + event.Type,
		Body:         body,
	})
}

// Close stops reconnecting and closes the connection.
func (p *RabbitPublisher) Close() error {
	p.once.Do(func() { close(p.done) })

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
