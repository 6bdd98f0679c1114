package eventbus

import (
	"context"
	"fmt"
	"testing"

	"github.com/streadway/amqp"
)

type mockChannel struct {
	published  []amqp.Publishing
	publishErr error
	declareErr error
	queueName  string
}

func (m *mockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	m.queueName = name
	if m.declareErr != nil {
		return amqp.Queue{}, m.declareErr
	}
	return amqp.Queue{Name: name}, nil
}

func (m *mockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, msg)
	return nil
}

func (m *mockChannel) Close() error { return nil }

type mockConnection struct {
	channel    amqpChannel
	channelErr error
}

func (m *mockConnection) Channel() (amqpChannel, error) {
	if m.channelErr != nil {
		return nil, m.channelErr
	}
	return m.channel, nil
}

func (m *mockConnection) Close() error { return nil }

type mockDialer struct {
	conn   amqpConnection
	dialErr error
}

func (m *mockDialer) Dial(url string) (amqpConnection, error) {
	if m.dialErr != nil {
		return nil, m.dialErr
	}
	return m.conn, nil
}

type fakeRecorder struct {
	names []string
	err   error
}

func (f *fakeRecorder) Record(ctx context.Context, name string, payload interface{}) error {
	f.names = append(f.names, name)
	return f.err
}

func newTestPublisher(t *testing.T, ch *mockChannel, recorder Recorder) *RabbitPublisher {
	t.Helper()
	dialer := &mockDialer{conn: &mockConnection{channel: ch}}
	p, err := newRabbitPublisherWithDialer("amqp://test", "events", dialer, recorder, nil)
	if err != nil {
		t.Fatalf("unexpected error constructing publisher: %v", err)
	}
	return p
}

func TestRabbitPublisherDeclaresQueueAndPublishes(t *testing.T) {
	ch := &mockChannel{}
	p := newTestPublisher(t, ch, nil)

	if err := p.Publish("thread.renamed", map[string]string{"id": "t-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.queueName != "events" {
		t.Fatalf("expected queue %q to be declared, got %q", "events", ch.queueName)
	}
	if len(ch.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(ch.published))
	}
	if ch.published[0].ContentType != "application/json" {
		t.Fatalf("expected json content type, got %s", ch.published[0].ContentType)
	}
}

func TestRabbitPublisherPublishErrorPropagates(t *testing.T) {
	ch := &mockChannel{publishErr: fmt.Errorf("broker unavailable")}
	p := newTestPublisher(t, ch, nil)

	if err := p.Publish("thread.renamed", nil); err == nil {
		t.Fatalf("expected publish error to propagate")
	}
}

func TestRabbitPublisherRecordsEventOnSuccess(t *testing.T) {
	ch := &mockChannel{}
	recorder := &fakeRecorder{}
	p := newTestPublisher(t, ch, recorder)

	if err := p.Publish("thread.renamed", map[string]string{"id": "t-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recorder.names) != 1 || recorder.names[0] != "thread.renamed" {
		t.Fatalf("expected recorder to see the published event name, got %v", recorder.names)
	}
}

func TestRabbitPublisherRecorderFailureDoesNotFailPublish(t *testing.T) {
	ch := &mockChannel{}
	recorder := &fakeRecorder{err: fmt.Errorf("db unavailable")}
	p := newTestPublisher(t, ch, recorder)

	if err := p.Publish("thread.renamed", nil); err != nil {
		t.Fatalf("a failing audit write must not fail the publish: %v", err)
	}
}

func TestNoopPublisherDiscardsEvents(t *testing.T) {
	var p NoopPublisher
	if err := p.Publish("anything", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
