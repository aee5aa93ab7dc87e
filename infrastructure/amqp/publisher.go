package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-desk/ticketing/application"
)

// Publisher reenvía los eventos del fanout a una cola AMQP durable, para
// consumidores externos (analítica, bots, réplicas).
type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string

	mu       sync.Mutex
	declared map[string]bool
}

// NewPublisher conecta y declara la cola. Un error aquí deshabilita el sink;
// el resto del sistema sigue funcionando sin AMQP.
func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	p := &Publisher{
		conn:     conn,
		channel:  channel,
		queue:    queue,
		declared: make(map[string]bool),
	}
	if err := p.declare(queue); err != nil {
		p.Close()
		return nil, err
	}

	logrus.Infof("[AMQP] Connected, publishing events to queue %s", queue)
	return p, nil
}

func (p *Publisher) declare(queue string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.declared[queue] {
		return nil
	}
	_, err := p.channel.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	p.declared[queue] = true
	return nil
}

// Name implementa application.Sink.
func (p *Publisher) Name() string { return "amqp" }

// Deliver publica el evento como JSON en la cola configurada.
func (p *Publisher) Deliver(ctx context.Context, ev application.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return p.channel.PublishWithContext(ctx,
		"",      // exchange default
		p.queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
