package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// publishTimeout bounds a single relay publish
const publishTimeout = 5 * time.Second

// MessagePublisher sends a JSON body to an exchange
type MessagePublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// AMQPProducer publishes to one durable topic exchange
type AMQPProducer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewAMQPProducer dials RabbitMQ and declares the topic exchange
func NewAMQPProducer(amqpURL, exchange string) (*AMQPProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPProducer{conn: conn, channel: channel, exchange: exchange}, nil
}

// Publish implements MessagePublisher
func (p *AMQPProducer) Publish(ctx context.Context, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	return p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         jsonBody,
		})
}

// Close closes the channel and connection
func (p *AMQPProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// RoutingKey maps a hub event to its topic, e.g. "whatsapp.qr-code"
func RoutingKey(ev Event) string {
	return "whatsapp." + ev.Type
}

// AMQPRelay forwards hub events to a message broker
type AMQPRelay struct {
	hub       *Hub
	publisher MessagePublisher
	logger    *zap.Logger
}

// NewAMQPRelay creates a relay from hub to publisher
func NewAMQPRelay(hub *Hub, publisher MessagePublisher, logger *zap.Logger) *AMQPRelay {
	return &AMQPRelay{hub: hub, publisher: publisher, logger: logger}
}

// Run forwards events until ctx is cancelled. Publish failures are logged
// and the event is dropped.
func (r *AMQPRelay) Run(ctx context.Context) {
	events, cancel := r.hub.Subscribe(256)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			pubCtx, done := context.WithTimeout(ctx, publishTimeout)
			if err := r.publisher.Publish(pubCtx, RoutingKey(ev), ev); err != nil {
				r.logger.Warn("⚠️ Failed to relay session event",
					zap.String("type", ev.Type),
					zap.String("session", ev.SessionName),
					zap.Error(err))
			}
			done()
		}
	}
}
