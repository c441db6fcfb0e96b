package events

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"

	"rasapos/backend/internal/domain"
)

const DefaultTopic = "pos.sales"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required for the kafka events driver")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}}, nil
}

func (p *KafkaPublisher) PublishSale(ctx context.Context, sale domain.Sale) error {
	body, err := encodeSale(sale)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(sale.ID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(SaleCompletedEvent)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
