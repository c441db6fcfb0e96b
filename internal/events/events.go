// Package events publishes completed sales to a broker for downstream
// consumers such as kitchen displays or accounting exports.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"rasapos/backend/internal/domain"
)

const SaleCompletedEvent = "sale.completed"

const (
	DriverNone     = "none"
	DriverRabbitMQ = "rabbitmq"
	DriverKafka    = "kafka"
)

type SaleCompleted struct {
	Event         string           `json:"event"`
	SaleID        string           `json:"sale_id"`
	OrderType     domain.OrderType `json:"order_type"`
	OrderID       string           `json:"order_id"`
	PaymentMethod string           `json:"payment_method"`
	TotalCents    int64            `json:"total_cents"`
	ItemCount     int              `json:"item_count"`
	CashierID     string           `json:"cashier_id,omitempty"`
	ShiftID       string           `json:"shift_id,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

func NewSaleCompleted(sale domain.Sale) SaleCompleted {
	count := 0
	for _, item := range sale.Items {
		count += item.Quantity
	}
	return SaleCompleted{
		Event:         SaleCompletedEvent,
		SaleID:        sale.ID,
		OrderType:     sale.OrderType,
		OrderID:       sale.OrderID,
		PaymentMethod: sale.PaymentMethod,
		TotalCents:    sale.TotalCents,
		ItemCount:     count,
		CashierID:     sale.CashierID,
		ShiftID:       sale.ShiftID,
		OccurredAt:    sale.CreatedAt.UTC(),
	}
}

func encodeSale(sale domain.Sale) ([]byte, error) {
	body, err := json.Marshal(NewSaleCompleted(sale))
	if err != nil {
		return nil, fmt.Errorf("encode sale event: %w", err)
	}
	return body, nil
}

type Publisher interface {
	PublishSale(ctx context.Context, sale domain.Sale) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) PublishSale(_ context.Context, _ domain.Sale) error { return nil }

func (NoopPublisher) Close() error { return nil }

type Options struct {
	Driver       string
	AMQPURL      string
	Exchange     string
	KafkaBrokers []string
	Topic        string
}

// Open builds the publisher for the configured driver.
func Open(opts Options) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverNone:
		return NoopPublisher{}, nil
	case DriverRabbitMQ:
		return DialRabbit(opts.AMQPURL, opts.Exchange)
	case DriverKafka:
		return NewKafkaPublisher(opts.KafkaBrokers, opts.Topic)
	default:
		return nil, fmt.Errorf("unknown events driver %q", opts.Driver)
	}
}
