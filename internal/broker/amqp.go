package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/strayhub/chat-core/internal/domain"
	"github.com/strayhub/chat-core/pkg/log"
)

// AMQPBroker implements Declarer, WirePublisher and ConsumerSource over
// a RabbitMQ connection. Declares and publishes share one channel
// guarded by a mutex (AMQP channels are not safe for concurrent use);
// each consumer gets its own channel so cancelling one never disturbs
// the others.
type AMQPBroker struct {
	conn *amqp.Connection

	mu sync.Mutex
	ch *amqp.Channel
}

// DialAMQP connects to the broker at the given URL.
func DialAMQP(url string) (*AMQPBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}

	return &AMQPBroker{conn: conn, ch: ch}, nil
}

// DeclareExchange declares an exchange on the broker. Re-declaring with
// identical parameters is a broker-side no-op.
func (b *AMQPBroker) DeclareExchange(exchange Exchange) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.ch.ExchangeDeclare(exchange.Name, exchange.Kind, exchange.Durable, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return nil
}

// DeclareQueue declares a queue on the broker.
func (b *AMQPBroker) DeclareQueue(queue Queue) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.ch.QueueDeclare(queue.Name, queue.Durable, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return nil
}

// BindQueue binds a queue to an exchange.
func (b *AMQPBroker) BindQueue(binding Binding) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.ch.QueueBind(binding.Queue, binding.RoutingKey, binding.Exchange, false, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return nil
}

// DeleteQueue deletes a queue, dropping any pending messages.
func (b *AMQPBroker) DeleteQueue(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.ch.QueueDelete(name, false, false, false); err != nil {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return nil
}

// DeleteExchange deletes an exchange.
func (b *AMQPBroker) DeleteExchange(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ch.ExchangeDelete(name, false, false); err != nil {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return nil
}

// Publish sends a persistent JSON payload to an exchange with an empty
// routing key.
func (b *AMQPBroker) Publish(ctx context.Context, exchange string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.ch.PublishWithContext(ctx, exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return nil
}

// StartConsumer opens a dedicated channel on the queue and pumps
// deliveries into the handler. A delivery is acked once handled and
// requeued on handler failure; the handler's idempotent insert absorbs
// the redelivery that follows a crash between handling and ack.
func (b *AMQPBroker) StartConsumer(queue, consumerTag string, handler MessageHandler) (func() error, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}

	deliveries, err := ch.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		for delivery := range deliveries {
			b.handleDelivery(ctx, consumerTag, delivery, handler)
		}
	}()

	stop := func() error {
		cancel()
		err := ch.Close()
		<-done
		return err
	}
	return stop, nil
}

func (b *AMQPBroker) handleDelivery(ctx context.Context, consumerTag string, delivery amqp.Delivery, handler MessageHandler) {
	l := log.L().With().Str(log.FieldListenerID, consumerTag).Logger()

	var wire domain.WireMessage
	if err := json.Unmarshal(delivery.Body, &wire); err != nil {
		l.Error().Err(err).Msg("failed to decode delivery, dropping")
		delivery.Ack(false)
		return
	}

	if err := handler.HandleMessage(ctx, &wire); err != nil {
		l.Error().Err(err).Str(log.FieldMessageID, wire.MessageID).Msg("handler failed, requeueing delivery")
		delivery.Nack(false, true)
		return
	}

	delivery.Ack(false)
}

// Close closes the shared channel and the connection. Consumer channels
// are closed by their stop functions via the Registry.
func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ch.Close(); err != nil {
		b.conn.Close()
		return err
	}
	return b.conn.Close()
}
