// Package eventbus publishes domain events onto a durable AMQP queue for the
// (out of scope) delivery fan-out worker to consume.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/weavehub/weave/common"
)

// Event is the envelope published for every domain event.
type Event struct {
	Name      string      `json:"name"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher publishes events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(name string, payload interface{}) error
	Close() error
}

type amqpConnection interface {
	Channel() (amqpChannel, error)
	Close() error
}

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type realConnection struct{ *amqp.Connection }

func (c realConnection) Channel() (amqpChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Dialer abstracts amqp.Dial for testing.
type Dialer interface {
	Dial(url string) (amqpConnection, error)
}

type realDialer struct{}

func (realDialer) Dial(url string) (amqpConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return realConnection{conn}, nil
}

// Recorder persists a copy of every published event for audit and replay,
// independent of whether the AMQP delivery itself succeeds. db.EventLogWriter
// implements this.
type Recorder interface {
	Record(ctx context.Context, name string, payload interface{}) error
}

// RabbitPublisher publishes events to a single durable queue and, when a
// Recorder is configured, writes an audit copy alongside the publish.
type RabbitPublisher struct {
	connection amqpConnection
	channel    amqpChannel
	queueName  string
	recorder   Recorder
	logger     *common.ContextLogger
}

func NewRabbitPublisher(url, queueName string, recorder Recorder, logger *common.ContextLogger) (*RabbitPublisher, error) {
	return newRabbitPublisherWithDialer(url, queueName, realDialer{}, recorder, logger)
}

func newRabbitPublisherWithDialer(url, queueName string, dialer Dialer, recorder Recorder, logger *common.ContextLogger) (*RabbitPublisher, error) {
	conn, err := dialer.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring queue: %w", err)
	}

	return &RabbitPublisher{connection: conn, channel: ch, queueName: queueName, recorder: recorder, logger: logger}, nil
}

func (p *RabbitPublisher) Publish(name string, payload interface{}) error {
	body, err := json.Marshal(Event{Name: name, Payload: payload, Timestamp: time.Now()})
	if err != nil {
		return fmt.Errorf("marshaling event %s: %w", name, err)
	}

	if p.recorder != nil {
		if err := p.recorder.Record(context.Background(), name, payload); err != nil && p.logger != nil {
			p.logger.WithError(err).WithField("event", name).Warn("failed to record event in audit log")
		}
	}

	return p.channel.Publish("", p.queueName, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func (p *RabbitPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.connection != nil {
		p.connection.Close()
	}
	return nil
}

// NoopPublisher discards events; useful for tests and disabled delivery.
type NoopPublisher struct{}

func (NoopPublisher) Publish(string, interface{}) error { return nil }
func (NoopPublisher) Close() error                      { return nil }
