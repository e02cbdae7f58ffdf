package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	OrderEventCreated       OrderEventType = "order.created"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
)

type OrderEvent struct {
	ID            uuid.UUID       `json:"id"`
	Type          OrderEventType  `json:"type"`
	OrderID       uuid.UUID       `json:"order_id"`
	UserID        uuid.UUID       `json:"user_id"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewOrderEvent(t OrderEventType, o *Order) OrderEvent {
	return OrderEvent{
		ID:            uuid.New(),
		Type:          t,
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		Amount:        o.TotalAmount,
		OccurredAt:    time.Now().UTC(),
	}
}
