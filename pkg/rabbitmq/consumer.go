package rabbitmq

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// retryCountHeader tracks how many times a message has been redelivered
// through the retry path.
const retryCountHeader = "x-retry-count"

// Handler processes one message body. A returned error triggers the retry
// path; nil acknowledges the message.
type Handler func(ctx context.Context, body []byte) error

// Consumer consumes from durable queues bound to a topic exchange. Failed
// messages are republished with exponential backoff up to MaxRetries, after
// which they land on the queue's dead-letter queue (`<queue>.dlq`).
type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	// MaxRetries bounds redeliveries per message before dead-lettering.
	MaxRetries int
	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", fmt.Errorf("invalid AMQP scheme: %s", parsed.Scheme)
	}
	return clean, nil
}

// NewConsumer dials RabbitMQ and opens a channel.
func NewConsumer(amqpURL string) (*Consumer, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Consumer{
		conn:        conn,
		ch:          ch,
		MaxRetries:  3,
		BaseBackoff: 2 * time.Second,
	}, nil
}

// ConsumeWithBindings declares the exchange, a durable queue, its dead-letter
// queue, binds the routing keys, and starts the delivery loop.
func (c *Consumer) ConsumeWithBindings(exchange, queueName string, bindings map[string]Handler) error {
	if len(bindings) == 0 {
		return fmt.Errorf("no bindings provided")
	}

	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}

	dlqName := queueName + ".dlq"
	if _, err := c.ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return err
	}

	handlers := make(map[string]Handler)
	for routingKey, handler := range bindings {
		if handler == nil {
			continue
		}
		handlers[routingKey] = handler
		if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return err
		}
	}

	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			handler, ok := handlers[d.RoutingKey]
			if !ok {
				log.Printf("level=warn component=rabbitmq_consumer msg=\"no handler for routing key; dropping\" routing_key=%s", d.RoutingKey)
				d.Ack(false)
				continue
			}

			if err := handler(context.Background(), d.Body); err != nil {
				c.retryOrDeadLetter(exchange, dlqName, d, err)
				continue
			}
			d.Ack(false)
		}
	}()

	return nil
}

// ConsumeStages gives every routing key its own durable queue (and DLQ),
// named `<queuePrefix>.<routingKey>`, so a slow stage backs up its own
// backlog instead of starving the others.
func (c *Consumer) ConsumeStages(exchange, queuePrefix string, bindings map[string]Handler) error {
	for routingKey, handler := range bindings {
		queueName := queuePrefix + "." + routingKey
		if err := c.ConsumeWithBindings(exchange, queueName, map[string]Handler{routingKey: handler}); err != nil {
			return fmt.Errorf("start consumer for %s: %w", routingKey, err)
		}
	}
	return nil
}

// retryOrDeadLetter republishes a failed delivery with an incremented retry
// counter after a backoff, or moves it to the dead-letter queue once the
// retry budget is spent. The original delivery is acked either way; losing it
// to a broken republish is preferred over an unbounded redelivery loop.
func (c *Consumer) retryOrDeadLetter(exchange, dlqName string, d amqp.Delivery, handlerErr error) {
	attempt := retryCount(d.Headers)

	if attempt >= c.MaxRetries {
		log.Printf("level=error component=rabbitmq_consumer msg=\"retries exhausted; dead-lettering\" routing_key=%s attempts=%d err=%v", d.RoutingKey, attempt, handlerErr)
		if err := c.ch.PublishWithContext(context.Background(), "", dlqName, false, false, amqp.Publishing{
			ContentType: d.ContentType,
			Timestamp:   time.Now(),
			Headers:     amqp.Table{retryCountHeader: int32(attempt), "x-original-routing-key": d.RoutingKey},
			Body:        d.Body,
		}); err != nil {
			log.Printf("level=error component=rabbitmq_consumer msg=\"dead-letter publish failed; re-queuing\" routing_key=%s err=%v", d.RoutingKey, err)
			d.Nack(false, true)
			return
		}
		d.Ack(false)
		return
	}

	backoff := c.BaseBackoff << attempt
	log.Printf("level=warn component=rabbitmq_consumer msg=\"handler failed; retrying\" routing_key=%s attempt=%d backoff=%s err=%v", d.RoutingKey, attempt+1, backoff, handlerErr)
	time.Sleep(backoff)

	if err := c.ch.PublishWithContext(context.Background(), exchange, d.RoutingKey, false, false, amqp.Publishing{
		ContentType: d.ContentType,
		Timestamp:   time.Now(),
		Headers:     amqp.Table{retryCountHeader: int32(attempt + 1)},
		Body:        d.Body,
	}); err != nil {
		log.Printf("level=error component=rabbitmq_consumer msg=\"retry publish failed; re-queuing\" routing_key=%s err=%v", d.RoutingKey, err)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

func retryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[retryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// Close shuts the channel and connection down.
func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
