package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/food-ordering-api/internal/model"
	"github.com/flicky/food-ordering-api/internal/repository"
)

const (
	OrderEventsQueue = "order_events"
	dlxExchange      = "order_events.dlx"
	dlqQueueName     = "order_events.dlq"
	idempotencyTTL   = 24 * time.Hour
	paymentCurrency  = "usd"
)

// SetupRabbitMQ declares the order event queue and its dead-letter route.
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, OrderEventsQueue, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(OrderEventsQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": OrderEventsQueue,
	}); err != nil {
		return fmt.Errorf("declare order events queue: %w", err)
	}
	return nil
}

type OrderWorker struct {
	channel     *amqp.Channel
	paymentRepo repository.PaymentRepository
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

// NewOrderWorker builds a consumer. redisClient may be nil, in which case
// duplicate deliveries are caught only by the payment ledger check.
func NewOrderWorker(
	ch *amqp.Channel,
	paymentRepo repository.PaymentRepository,
	redisClient *redis.Client,
	log *slog.Logger,
) *OrderWorker {
	return &OrderWorker{
		channel:     ch,
		paymentRepo: paymentRepo,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

func (w *OrderWorker) Start(ctx context.Context) error {
	if err := w.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	msgs, err := w.channel.Consume(OrderEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("order worker started", "queue", OrderEventsQueue)
	return nil
}

func (w *OrderWorker) Stop() { close(w.done) }

func (w *OrderWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var event model.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		w.log.Error("unmarshal order event", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("event_id", event.ID, "event_type", event.Type, "order_id", event.OrderID)

	idempotencyKey := "order_event_processed:" + event.ID.String()
	if w.redisClient != nil {
		exists, err := w.redisClient.Exists(ctx, idempotencyKey).Result()
		if err != nil {
			log.Error("check idempotency key", "error", err)
			_ = msg.Nack(false, true)
			return
		}
		if exists > 0 {
			log.Info("event already processed, skipping")
			_ = msg.Ack(false)
			return
		}
	}

	if err := w.handleEvent(ctx, event); err != nil {
		log.Error("handle order event", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	if w.redisClient != nil {
		if err := w.redisClient.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
			log.Error("set idempotency key", "error", err)
		}
	}

	_ = msg.Ack(false)
	log.Info("order event processed")
}

func (w *OrderWorker) handleEvent(ctx context.Context, event model.OrderEvent) error {
	switch event.Type {
	case model.OrderEventCreated:
		if event.PaymentMethod != model.PaymentMethodGateway {
			return nil
		}
		return w.recordInitiatedPayment(ctx, event)
	case model.OrderEventStatusChanged:
		w.log.Info("order status changed", "order_id", event.OrderID, "status", event.Status)
		return nil
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
}

func (w *OrderWorker) recordInitiatedPayment(ctx context.Context, event model.OrderEvent) error {
	existing, err := w.paymentRepo.GetByOrderID(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("get payment: %w", err)
	}
	if existing != nil {
		return nil
	}

	err = w.paymentRepo.Create(ctx, &model.PaymentTransaction{
		OrderID:       event.OrderID,
		UserID:        event.UserID,
		Amount:        event.Amount,
		Currency:      paymentCurrency,
		PaymentStatus: model.PaymentStatusPending,
		Status:        model.PaymentTransactionInitiated,
		Metadata: map[string]string{
			"order_id": event.OrderID.String(),
			"user_id":  event.UserID.String(),
			"event_id": event.ID.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}
