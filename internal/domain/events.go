package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// AggregateTypeOrder - тип агрегата для сообщений outbox о заказах.
	AggregateTypeOrder = "order"
	// EventTypeOrderCreated публикуется после сохранения нового заказа.
	EventTypeOrderCreated = "order.created"
)

// OrderCreatedEvent - полезная нагрузка события order.created.
type OrderCreatedEvent struct {
	OrderID     int64           `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	UserID      int64           `json:"userId"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ItemCount   int             `json:"itemCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// NewOrderCreatedMessage строит сообщение outbox для сохранённого заказа.
func NewOrderCreatedMessage(order Order) (OutboxMessage, error) {
	payload, err := json.Marshal(OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		ItemCount:   len(order.Items),
		CreatedAt:   order.CreatedAt,
	})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal order created event: %w", err)
	}

	return OutboxMessage{
		AggregateType: AggregateTypeOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     EventTypeOrderCreated,
		Payload:       payload,
	}, nil
}
